// Package cmd implements the hitreq CLI commands using Cobra.
//
// Available commands:
//   - get, post, request: Send a single request and print the response
//   - run: Execute YAML request scripts, optionally repeated or watched
//   - validate: Check scripts without sending anything
//   - serve: Start the local example server
//   - init: Create a config file and a sample script
//   - version: Show hitreq version information
//
// Errors map to exit codes (see exitcodes.go): failed expectations exit 1,
// script errors 2, config errors 3, network failures 4 and usage errors 64.
package cmd
