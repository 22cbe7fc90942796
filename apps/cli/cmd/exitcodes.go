package cmd

// Exit codes for the hitreq CLI
const (
	// ExitSuccess indicates every step passed
	ExitSuccess = 0

	// ExitTestFailure indicates a failed step, or a non-ok response with --fail
	ExitTestFailure = 1

	// ExitParseError indicates a script that does not parse or validate
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a connection, timeout or protocol failure
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage, including unsupported URL schemes
	ExitUsageError = 64
)
