package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/spf13/cobra"
)

var (
	paramFlags  []string
	headerFlags []string
	jsonFlag    string
	dataFlag    string
	failFlag    bool
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Send a GET request",
	Long: `Send a GET request and print the response.

Examples:
  hitreq get http://localhost:8080/data -p q=test -p limit=5
  hitreq get https://api.example.test/me -H "Authorization: Bearer {{$TOKEN}}"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, "GET", args[0])
	},
}

var postCmd = &cobra.Command{
	Use:   "post <url>",
	Short: "Send a POST request",
	Long: `Send a POST request and print the response.

Examples:
  hitreq post http://localhost:8080/submit --json '{"key": "value"}'
  hitreq post http://localhost:8080/submit --data 'plain text' -H "Content-Type: text/plain"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, "POST", args[0])
	},
}

var requestCmd = &cobra.Command{
	Use:   "request <method> <url>",
	Short: "Send a request with any method",
	Long: `Send a request with the given method and print the response.

Examples:
  hitreq request DELETE http://localhost:8080/items/1
  hitreq request PUT http://localhost:8080/items/1 --json '{"name": "new"}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, args[0], args[1])
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, postCmd, requestCmd} {
		c.Flags().StringArrayVarP(&paramFlags, "param", "p", nil, "Query parameter key=value, repeatable and sent in order")
		c.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, `Request header "Key: Value", repeatable`)
		c.Flags().BoolVar(&failFlag, "fail", false, "Exit with status 1 when the response is not ok (status outside 200-399)")
	}
	for _, c := range []*cobra.Command{postCmd, requestCmd} {
		c.Flags().StringVar(&jsonFlag, "json", "", "JSON request body, sent with Content-Type application/json")
		c.Flags().StringVar(&dataFlag, "data", "", "Raw request body")
		c.MarkFlagsMutuallyExclusive("json", "data")
	}
}

func sendCommand(cmd *cobra.Command, method, rawURL string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	clientOpts, err := s.clientOptions()
	if err != nil {
		return err
	}

	resolver := env.NewResolver()
	resolver.SetVariables(s.variables)
	resolver.SetWarnFunc(func(format string, args ...any) {
		s.logger.Warn().Msgf(format, args...)
	})

	req, err := buildCLIRequest(resolver, method, rawURL)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	formatter, err := s.formatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := http.NewClient(clientOpts...)
	resp, err := client.Do(ctx, req)
	if err != nil {
		formatter.FormatError(err)
		return exitWith(exitCodeFor(err), fmt.Errorf("%w: %w", errReported, err))
	}

	formatter.FormatResponse(resp)
	if failFlag && !resp.Ok() {
		return exitWith(ExitTestFailure, fmt.Errorf("%w: %s", errReported, resp.Status))
	}
	return nil
}

func buildCLIRequest(resolver *env.Resolver, method, rawURL string) (*http.Request, error) {
	req := http.NewRequest(method, resolver.Resolve(rawURL))

	for _, p := range paramFlags {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--param: expected key=value, got %q", p)
		}
		req.AddParam(key, resolver.Resolve(value))
	}

	for _, h := range headerFlags {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf(`--header: expected "Key: Value", got %q`, h)
		}
		req.SetHeader(key, resolver.Resolve(strings.TrimSpace(value)))
	}

	switch {
	case jsonFlag != "":
		body := resolver.Resolve(jsonFlag)
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("--json: not valid JSON")
		}
		req.SetJSON(json.RawMessage(body))
	case dataFlag != "":
		req.SetBody([]byte(resolver.Resolve(dataFlag)))
	}

	return req, nil
}
