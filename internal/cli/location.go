package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/internal/globals"
	"github.com/monorkin/airgradient-dashboard/internal/locations"
)

var locationCmd = &cobra.Command{
	Use:     "location",
	Aliases: []string{"l", "locations"},
	Short:   "Manage and list locations",
	Long:    `Commands for listing locations and refreshing them from the AirGradient API.`,
}

var locationListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all known locations",
	Run:     runLocationList,
}

var locationSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh locations from the AirGradient API",
	Long:  `Create or update one location per location id seen in the current measures feed.`,
	Run:   runLocationSync,
}

func runLocationList(cmd *cobra.Command, args []string) {
	initializeApp()
	globals.Logger.Debug("Fetching locations from database")

	list, err := newLocationService().List(context.Background(), 0, 0)
	if err != nil {
		fail("Failed to fetch locations", err)
	}

	if len(list) == 0 {
		fmt.Println("No locations found.")
		return
	}

	printLocations(list)
}

func runLocationSync(cmd *cobra.Command, args []string) {
	initializeApp()

	synced, err := newLocationService().SyncFromAPI(context.Background())
	if err != nil {
		fail("Failed to sync locations", err)
	}

	fmt.Printf("Synced %d locations.\n", len(synced))
	if len(synced) > 0 {
		printLocations(synced)
	}
}

func printLocations(list []locations.Location) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tLATITUDE\tLONGITUDE\tUPDATED")
	fmt.Fprintln(w, "--\t----\t--------\t---------\t-------")

	for _, location := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			location.ID,
			stringOrDash(location.Name),
			floatOrDash(location.Latitude),
			floatOrDash(location.Longitude),
			location.UpdatedAt,
		)
	}
}

func stringOrDash(value *string) string {
	if value == nil || *value == "" {
		return "-"
	}
	return *value
}

func floatOrDash(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.5f", *value)
}

func init() {
	rootCmd.AddCommand(locationCmd)

	locationCmd.AddCommand(locationListCmd)
	locationCmd.AddCommand(locationSyncCmd)
}
