package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invoicetrack/internal/app"
	"invoicetrack/internal/config"
	"invoicetrack/internal/logger"
)

var version = "1.0.0"

var appConfig config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "Operator tools for the invoice tracking engine",
	Long: `invoicectl runs the invoice engine's batch operations against the
configured Postgres and Redis: compliance scans, payment summaries,
spreadsheet exports and operator token management.

Connection settings come from the same environment variables as the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(cfg config.AppConfig) {
	appConfig = cfg
	log := logger.WithComponent("cmd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
}

// openApp wires the engine without a websocket hub.
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, appConfig, app.Options{})
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
