package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/abdul-hamid-achik/hitreq/packages/core/runner"
	"github.com/abdul-hamid-achik/hitreq/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run request scripts",
	Long: `Run YAML request scripts. Without arguments the built-in sample script
runs against http://localhost:8080 (start it with 'hitreq serve').

Examples:
  hitreq run
  hitreq run api.yaml
  hitreq run ./scripts/ --bail
  hitreq run api.yaml --var base=https://staging.example.test
  hitreq run api.yaml --repeat 100 --rate 10
  hitreq run api.yaml --watch`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	nameFlag   string
	bailFlag   bool
	watchFlag  bool
	repeatFlag int
	rateFlag   float64
	varFlags   []string
)

func init() {
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", getEnvString("HITREQ_NAME", ""), "Run only steps whose name matches (prefix* or *suffix) (env: HITREQ_NAME)")
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITREQ_BAIL", false), "Skip remaining steps after the first failure (env: HITREQ_BAIL)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")
	runCmd.Flags().IntVar(&repeatFlag, "repeat", getEnvInt("HITREQ_REPEAT", 0), "Run each script N times and report latency percentiles (env: HITREQ_REPEAT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITREQ_RATE", 0), "Script runs per second when repeating, 0 for unpaced (env: HITREQ_RATE)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Override a script variable (key=value, repeatable)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if repeatFlag > 0 {
		s.config.Repeat = repeatFlag
	}
	if rateFlag > 0 {
		s.config.Rate = rateFlag
	}

	overrides, err := parseKeyValues(varFlags)
	if err != nil {
		return exitWith(ExitUsageError, fmt.Errorf("--var: %w", err))
	}
	clientOpts, err := s.clientOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := s.logger
	r := runner.NewRunner(&runner.Config{
		Bail:          bailFlag,
		NameFilter:    nameFlag,
		Variables:     s.variables,
		Overrides:     overrides,
		ClientOptions: clientOpts,
		Logger:        &logger,
	})

	run := func() error {
		formatter, err := s.formatter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		formatter.FormatHeader(version)

		scripts, err := loadScripts(args)
		if err != nil {
			formatter.FormatError(err)
			return exitWith(ExitParseError, fmt.Errorf("%w: %w", errReported, err))
		}

		start := time.Now()
		failed := false
		var runErr error
		for _, script := range scripts {
			ok, err := runScript(ctx, r, formatter, script, s.config.Repeat, s.config.Rate)
			if err != nil {
				formatter.FormatError(err)
				runErr = err
				break
			}
			failed = failed || !ok
		}

		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(time.Since(start)); err != nil {
				return fmt.Errorf("error writing output: %w", err)
			}
		}

		switch {
		case runErr != nil && errors.Is(runErr, context.Canceled):
			return exitWith(ExitTestFailure, fmt.Errorf("%w: interrupted", errReported))
		case runErr != nil:
			return fmt.Errorf("%w: %w", errReported, runErr)
		case failed:
			return exitWith(ExitTestFailure, fmt.Errorf("%w: steps failed", errReported))
		}
		return nil
	}

	err = run()
	if !watchFlag {
		return err
	}
	if len(args) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("--watch needs at least one file or directory"))
	}
	return watch(ctx, cmd, args, run)
}

// runScript runs one script once, or repeatedly when repeat is above 1.
func runScript(ctx context.Context, r *runner.Runner, formatter output.Formatter, script *parser.Script, repeat int, perSecond float64) (bool, error) {
	if repeat <= 1 {
		result, err := r.Run(ctx, script)
		if err != nil {
			return false, err
		}
		formatter.FormatResult(result)
		return result.Success(), nil
	}

	result, err := r.Repeat(ctx, script, repeat, perSecond)
	if result != nil && result.Last != nil {
		formatter.FormatResult(result.Last)
		formatter.FormatRepeat(result)
	}
	if err != nil {
		return false, err
	}
	return result.Success(), nil
}

// loadScripts parses and validates every script named by args, or returns
// the built-in sample when args is empty.
func loadScripts(args []string) ([]*parser.Script, error) {
	if len(args) == 0 {
		return []*parser.Script{parser.Default()}, nil
	}

	files, err := collectFiles(args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yaml or .yml scripts found")
	}

	var scripts []*parser.Script
	var errs []error
	for _, file := range files {
		script, err := parser.ParseFile(file)
		if err == nil {
			err = script.Validate()
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scripts = append(scripts, script)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return scripts, nil
}

func watch(ctx context.Context, cmd *cobra.Command, args []string, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("cannot access %s: %w", arg, err))
		}
		if !info.IsDir() {
			dir := filepath.Dir(arg)
			if !watchedDirs[dir] {
				if err := watcher.Add(dir); err != nil {
					return fmt.Errorf("failed to watch %s: %w", dir, err)
				}
				watchedDirs[dir] = true
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && !watchedDirs[path] {
				if err := watcher.Add(path); err != nil {
					return err
				}
				watchedDirs[path] = true
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", arg, err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	changed := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !isScriptFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})

		case name := <-changed:
			fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running...\n\n", name)
			if err := run(); err != nil && !errors.Is(err, errReported) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isScriptFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isScriptFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isScriptFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// parseKeyValues turns key=value pairs into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}
