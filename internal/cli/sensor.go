package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/globals"
)

var discoveryTimeout time.Duration

var sensorCmd = &cobra.Command{
	Use:     "sensor",
	Aliases: []string{"s", "sensors"},
	Short:   "Manage and list sensors",
	Long:    `Commands for listing synced sensors and discovering monitors on the local network.`,
}

var sensorListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all known sensors",
	Long:    `List all sensors created by syncs with their serial number and location.`,
	Run:     runSensorList,
}

var sensorDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover monitors on the local network",
	Long:  `Browse the local network over mDNS for AirGradient monitors and print their current readings.`,
	Run:   runSensorDiscover,
}

func runSensorList(cmd *cobra.Command, args []string) {
	initializeApp()
	globals.Logger.Debug("Fetching sensors from database")

	sensors, err := globals.Store.ListSensors(context.Background())
	if err != nil {
		fail("Failed to fetch sensors", err)
	}

	if len(sensors) == 0 {
		fmt.Println("No sensors found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSERIAL\tLOCATION\tCREATED")
	fmt.Fprintln(w, "--\t------\t--------\t-------")

	for _, sensor := range sensors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			sensor.ID,
			sensor.SerialNumber,
			stringOrDash(sensor.LocationID),
			sensor.CreatedAt.Format(time.RFC3339),
		)
	}

	globals.Logger.Debug("Sensor list completed", "count", len(sensors))
}

func runSensorDiscover(cmd *cobra.Command, args []string) {
	initializeApp()

	sensors, err := globals.Client.DiscoverLocalSensors(context.Background(), discoveryTimeout)
	if err != nil {
		fail("Failed to discover sensors", err)
	}

	if len(sensors) == 0 {
		fmt.Println("No sensors found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SERIAL\tMODEL\tIP ADDRESS\tFIRMWARE\tCO2\tPM2.5")
	fmt.Fprintln(w, "------\t-----\t----------\t--------\t---\t-----")

	for _, sensor := range sensors {
		co2, pm02 := "-", "-"
		if sensor.Current != nil {
			co2 = measureValue(sensor.Current.Rco2)
			pm02 = measureValue(sensor.Current.PM02)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			sensor.Serialno,
			sensor.Model,
			sensor.IP,
			sensor.FirmwareVersion,
			co2,
			pm02,
		)
	}
}

func measureValue(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *value)
}

func init() {
	rootCmd.AddCommand(sensorCmd)

	sensorCmd.AddCommand(sensorListCmd)
	sensorCmd.AddCommand(sensorDiscoverCmd)

	sensorDiscoverCmd.Flags().DurationVarP(&discoveryTimeout, "timeout", "t", api.DISCOVERY_TIMEOUT, "How long to browse for monitors")
}
