package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/persons/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve starts the HTTP API on SERVER_HOST:SERVER_PORT. On SIGINT or SIGTERM
it waits up to SERVER_SHUTDOWN_TIMEOUT for a running operation to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(ctxOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(app.service, app.cfg)
	return srv.Run(ctx, app.cfg.Server.Addr(), app.cfg.Server.ShutdownTimeout)
}
