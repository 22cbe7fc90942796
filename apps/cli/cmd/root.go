package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/config"
	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/abdul-hamid-achik/hitreq/packages/output"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hitreq",
	Short: "Minimal HTTP requests, sessions and scripts.",
	Long: `hitreq sends HTTP requests and runs YAML request scripts.

One-off requests open a fresh connection each time. Script steps that name
a session share a connection pool and a cookie jar until the script ends.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFlag    string
	envFileFlag   string
	verboseFlag   int // 0=warn, 1=-v info, 2=-vv debug, 3=-vvv trace
	noColorFlag   bool
	outputFlag    string
	timeoutFlag   string
	requestIDFlag bool
)

// Execute runs the root command and exits with the code matching the
// returned error.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		code := exitCodeFor(err)
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(code)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("HITREQ_CONFIG", ""), "Path to config file (env: HITREQ_CONFIG)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("HITREQ_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITREQ_ENV_FILE)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv, -vvv for more detail)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("HITREQ_NO_COLOR", false), "Disable colored output (env: HITREQ_NO_COLOR)")
	flags.StringVarP(&outputFlag, "output", "o", getEnvString("HITREQ_OUTPUT", ""), "Output format: console, json (env: HITREQ_OUTPUT)")
	flags.StringVar(&timeoutFlag, "timeout", getEnvString("HITREQ_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITREQ_TIMEOUT)")
	flags.BoolVar(&requestIDFlag, "request-id", getEnvBool("HITREQ_REQUEST_ID", false), "Send an X-Request-Id header with each request (env: HITREQ_REQUEST_ID)")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// newLogger writes human-readable logs to w. Only warnings show by default;
// each -v lowers the level by one.
func newLogger(w io.Writer, verbosity int, noColor bool) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case verbosity >= 3:
		level = zerolog.TraceLevel
	case verbosity == 2:
		level = zerolog.DebugLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
	}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// settings is the configuration shared by every command: the config file
// merged with flags, plus variables from --env-file.
type settings struct {
	config    *config.Config
	variables map[string]string
	logger    zerolog.Logger
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, exitWith(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	flags := &config.Config{
		Timeout: timeoutFlag,
		Output:  outputFlag,
	}
	if cmd.Flags().Changed("no-color") || noColorFlag {
		flags.NoColor = config.BoolPtr(noColorFlag)
	}
	if cmd.Flags().Changed("request-id") || requestIDFlag {
		flags.RequestID = config.BoolPtr(requestIDFlag)
	}
	if verboseFlag > 0 {
		flags.Verbose = config.BoolPtr(true)
	}
	cfg = cfg.Merge(flags)
	if err := cfg.Validate(); err != nil {
		return nil, exitWith(ExitConfigError, err)
	}

	s := &settings{
		config:    cfg,
		variables: make(map[string]string),
		logger:    newLogger(cmd.ErrOrStderr(), verboseFlag, cfg.GetNoColor()),
	}
	for k, v := range cfg.Variables {
		s.variables[k] = v
	}
	if envFileFlag != "" {
		vars, err := env.LoadDotEnv(envFileFlag)
		if err != nil {
			return nil, exitWith(ExitConfigError, fmt.Errorf("loading env file: %w", err))
		}
		for k, v := range vars {
			s.variables[k] = v
		}
	}
	return s, nil
}

func (s *settings) clientOptions() ([]http.ClientOption, error) {
	opts, err := s.config.ClientOptions()
	if err != nil {
		return nil, exitWith(ExitConfigError, err)
	}
	return append(opts, http.WithLogger(s.logger)), nil
}

func (s *settings) formatter(w io.Writer) (output.Formatter, error) {
	f, err := output.New(s.config.Output, output.Options{
		Writer:  w,
		Verbose: s.config.GetVerbose(),
		NoColor: s.config.GetNoColor(),
	})
	if err != nil {
		return nil, exitWith(ExitUsageError, err)
	}
	return f, nil
}

// errReported marks errors the formatter has already shown.
var errReported = errors.New("reported")

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeFor maps an error to a process exit code. Client failures are
// network errors except for unsupported schemes, which are usage errors.
func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch http.KindOf(err) {
	case http.KindUnsupportedScheme, "":
		return ExitUsageError
	}
	return ExitNetworkError
}
