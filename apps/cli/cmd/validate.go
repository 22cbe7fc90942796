package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate request scripts without sending anything",
	Long: `Validate YAML request scripts without executing them.

Examples:
  hitreq validate api.yaml
  hitreq validate ./scripts/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no .yaml or .yml scripts found"))
	}

	hasErrors := false
	for _, file := range files {
		script, err := parser.ParseFile(file)
		if err == nil {
			err = script.Validate()
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s:\n  %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d steps)\n", file, len(script.Steps))
	}

	if hasErrors {
		return exitWith(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}
