package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mcpdock/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveStateDir overrides the default state directory
// (~/.config/mcpdock) holding config.yaml, catalogs and mount state.
var serveStateDir string

// serveTransport overrides the configured aggregator transport.
var serveTransport string

// serveCmd starts the aggregator server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mcpdock aggregator server",
	Long: `Starts the aggregator: loads the catalog, replays persisted mounts and
serves the aggregated MCP surface.

Mounted servers' tools appear as mcp_<prefix>_<tool> callables next to the
built-in dock_* management tools. Use dock_mount/dock_unmount from any MCP
client to change what is mounted; the active set is persisted and replayed
on the next start.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveStateDir, serveTransport, GetVersion())

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveStateDir, "state-dir", "", "State directory (default ~/.config/mcpdock)")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Aggregator transport: streamable-http, sse or stdio")
}
