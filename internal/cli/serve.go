package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/internal/datasync"
	"github.com/monorkin/airgradient-dashboard/internal/globals"
	"github.com/monorkin/airgradient-dashboard/internal/server"
)

var listenAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API, including the sync endpoint
POST /api/sync/locations/{locationId} and the Prometheus /metrics endpoint.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	initializeApp()

	address := globals.Settings.ListenAddress
	if listenAddress != "" {
		address = listenAddress
	}

	datasync.InitMetrics(prometheus.DefaultRegisterer)

	handler := server.NewHandler(newSyncService(), newLocationService(), globals.Store, globals.Client, globals.Logger)
	router := server.NewRouter(handler, prometheus.DefaultGatherer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, address, router, globals.Logger); err != nil {
		fail("Server stopped", err)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "Address to listen on (overrides settings)")
}
