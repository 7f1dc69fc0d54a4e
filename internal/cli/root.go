package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/internal/datasync"
	"github.com/monorkin/airgradient-dashboard/internal/globals"
	"github.com/monorkin/airgradient-dashboard/internal/locations"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "airgradient-dashboard",
	Short: "AirGradient air quality dashboard",
	Long: `A dashboard backend for AirGradient air quality monitors.

It mirrors locations and measurements from the AirGradient public API into a
local database, serves them over HTTP, and can discover monitors on the local
network. Without a subcommand the HTTP server is started.`,
	Run: runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
}

// initializeApp loads settings and opens the database, exiting on failure.
func initializeApp() {
	if err := globals.Initialize(verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newSyncService() *datasync.Service {
	return datasync.NewService(globals.Client, globals.Store, datasync.WithLogger(globals.Logger))
}

func newLocationService() *locations.Service {
	return locations.NewService(globals.Client, globals.Store, globals.Logger)
}

// fail logs err and exits with status 1.
func fail(message string, err error) {
	globals.Logger.Error(message, "error", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}
