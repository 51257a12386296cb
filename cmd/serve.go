package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllhz8912/sena/internal/server"
	"github.com/jllhz8912/sena/internal/store"
)

// serveCmd serves the reports of the records loaded at startup until
// SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the coordinator reports over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withStore(ctx, func(st *store.Store) error {
			srv := server.New(cfg.HTTP.Addr, cfg.HTTP.Metrics, st, catalog, logger)
			return srv.Run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
