package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/internal/globals"
	"github.com/monorkin/airgradient-dashboard/internal/models"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

// measurementCmd represents the measurement command
var measurementCmd = &cobra.Command{
	Use:     "measurement",
	Aliases: []string{"m", "measurements"},
	Short:   "Get measurement data",
	Long:    `Commands for retrieving stored measurement data.`,
}

// measurementGetCmd represents the measurement get command
var measurementGetCmd = &cobra.Command{
	Use:   "get <serial_number>",
	Short: "Get the latest stored measurement of a sensor",
	Long: `Get the latest stored measurement of a sensor specified by its serial number.

Examples:
  airgradient-dashboard measurement get 744dbdc919e4`,
	Args: cobra.ExactArgs(1),
	Run:  runMeasurementGet,
}

func runMeasurementGet(cmd *cobra.Command, args []string) {
	serialNumber := args[0]

	initializeApp()
	globals.Logger.Debug("Getting measurement for sensor", "serial", serialNumber)

	ctx := context.Background()

	sensor, err := globals.Store.FindSensor(ctx, serialNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: Sensor not found: %s\n", serialNumber)
			os.Exit(1)
		}
		fail("Failed to fetch sensor", err)
	}

	measurement, err := globals.Store.LatestMeasurement(ctx, serialNumber)
	if err != nil {
		globals.Logger.Error("No measurements found for sensor", "serial", serialNumber, "error", err)
		fmt.Fprintf(os.Stderr, "Error: No measurements found for sensor %s\n", serialNumber)
		os.Exit(1)
	}

	response := struct {
		Sensor      SensorInfo          `json:"sensor"`
		Measurement *models.Measurement `json:"measurement"`
		Time        string              `json:"time"`
	}{
		Sensor: SensorInfo{
			ID:           sensor.ID,
			SerialNumber: sensor.SerialNumber,
			LocationID:   sensor.LocationID,
		},
		Measurement: measurement,
		Time:        time.Unix(measurement.Timestamp, 0).UTC().Format(time.RFC3339),
	}

	output, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		fail("Failed to format response", err)
	}

	fmt.Println(string(output))

	globals.Logger.Debug("Measurement get completed", "serial", serialNumber)
}

// SensorInfo represents sensor information for JSON output
type SensorInfo struct {
	ID           string  `json:"id"`
	SerialNumber string  `json:"serial_number"`
	LocationID   *string `json:"location_id,omitempty"`
}

func init() {
	rootCmd.AddCommand(measurementCmd)

	measurementCmd.AddCommand(measurementGetCmd)
}
