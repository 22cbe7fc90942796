package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/mock"
	"github.com/spf13/cobra"
)

var (
	servePortFlag  int
	serveDelayFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local example server",
	Long: `Start a local HTTP server with the endpoints the sample script uses:

  GET  /                 route index
  GET  /data             echoes the query string
  POST /submit           echoes a JSON body
  GET  /login?user=NAME  sets a session cookie
  GET  /whoami           reads the session cookie
  GET  /headers          echoes request headers
  GET  /status/{code}    responds with the given status
  GET  /delay/{duration} responds after a delay

Examples:
  hitreq serve
  hitreq serve --port 3000 --delay 100ms`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().IntVar(&servePortFlag, "port", getEnvInt("HITREQ_PORT", 8080), "Port to listen on (env: HITREQ_PORT)")
	serveCmd.Flags().StringVar(&serveDelayFlag, "delay", "", "Delay added to every response (e.g., 100ms)")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	opts := []mock.Option{
		mock.WithPort(servePortFlag),
		// request logs show at -v
		mock.WithLogger(s.logger),
	}
	if serveDelayFlag != "" {
		d, err := time.ParseDuration(serveDelayFlag)
		if err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("invalid delay %q: %w", serveDelayFlag, err))
		}
		opts = append(opts, mock.WithDelay(d))
	}

	server := mock.NewServer(opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://localhost%s (press Ctrl+C to stop)\n", server.Addr())
	if err := server.StartWithContext(ctx); err != nil {
		return exitWith(ExitNetworkError, err)
	}
	return nil
}
