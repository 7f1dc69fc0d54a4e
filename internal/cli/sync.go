package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/internal/datasync"
	"github.com/monorkin/airgradient-dashboard/internal/globals"
)

var (
	syncFrom string
	syncTo   string
)

var syncCmd = &cobra.Command{
	Use:   "sync <location_id>",
	Short: "Sync measurements of a location",
	Long: `Fetch raw measurements of a location from the AirGradient API and store
them locally. Existing measurements are updated in place.

Examples:
  airgradient-dashboard sync 12345
  airgradient-dashboard sync 12345 --from 2025-01-01 --to 2025-01-31`,
	Args: cobra.ExactArgs(1),
	Run:  runSync,
}

func runSync(cmd *cobra.Command, args []string) {
	locationID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid location id: %s\n", args[0])
		os.Exit(1)
	}

	for _, value := range []string{syncFrom, syncTo} {
		if value == "" {
			continue
		}
		if _, err := datasync.ParseTimestamp(value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid date %q. Use ISO 8601 format.\n", value)
			os.Exit(1)
		}
	}

	initializeApp()

	result := newSyncService().SyncLocationData(context.Background(), datasync.SyncOptions{
		LocationID: locationID,
		From:       syncFrom,
		To:         syncTo,
	}, func(progress datasync.Progress) {
		if progress.Total > 0 {
			fmt.Fprintf(os.Stderr, "%s (%d/%d)\n", progress.Message, progress.Processed, progress.Total)
			return
		}
		fmt.Fprintln(os.Stderr, progress.Message)
	})

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fail("Failed to format result", err)
	}

	fmt.Println(string(output))

	globals.Logger.Debug("Sync command completed", "location_id", locationID, "success", result.Success)

	if !result.Success {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncFrom, "from", "", "Start of the date window (ISO 8601)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "End of the date window (ISO 8601)")
}
