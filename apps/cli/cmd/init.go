package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitreq/packages/core/config"
	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file and a sample script",
	Long: `Create a config file and a sample script in the current directory.

This creates:
  - .hitreq.yaml   - Default configuration
  - hitreq.yaml    - Sample script for 'hitreq serve'

Examples:
  hitreq init
  hitreq init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".hitreq.yaml")
	scriptFile := filepath.Join(cwd, "hitreq.yaml")

	if !forceInit {
		for _, f := range []string{configFile, scriptFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "hitreq/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(scriptFile, []byte(parser.Sample()), 0644); err != nil {
		return fmt.Errorf("failed to create script file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", scriptFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitreq project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitreq serve' in one terminal and 'hitreq run hitreq.yaml' in another.\n")

	return nil
}
