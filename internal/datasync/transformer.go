package datasync

import (
	"errors"
	"time"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/models"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 forms the API emits. Values without a
// zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}

// TransformMeasure maps an API measure to the stored measurement form.
// The sensor reference is set only when sensorID is not empty. It returns
// ErrInvalidTimestamp when the measure has no usable timestamp. Only a
// zero second is rejected; earlier instants are kept as negative seconds.
func TransformMeasure(measure api.Measure, sensorID string) (models.Measurement, error) {
	if measure.Timestamp == "" {
		return models.Measurement{}, ErrInvalidTimestamp
	}

	parsed, err := ParseTimestamp(measure.Timestamp)
	if err != nil {
		return models.Measurement{}, err
	}

	timestamp := parsed.UnixMilli() / 1000
	if timestamp == 0 {
		return models.Measurement{}, ErrInvalidTimestamp
	}

	measurement := models.Measurement{
		SerialNumber:    measure.Serialno,
		LocationID:      measure.LocationID,
		LocationName:    optionalString(measure.LocationName),
		LocationType:    optionalString(measure.LocationType),
		Model:           optionalString(measure.Model),
		FirmwareVersion: optionalString(measure.FirmwareVersion),

		PM01:       measure.PM01,
		PM02:       measure.PM02,
		PM10:       measure.PM10,
		PM03PCount: measure.PM003Count,

		PM01Corrected: measure.PM01Corrected,
		PM02Corrected: measure.PM02Corrected,
		PM10Corrected: measure.PM10Corrected,

		Atmp: measure.Atmp,
		Rhum: measure.Rhum,
		Rco2: measure.Rco2,

		AtmpCorrected: measure.AtmpCorrected,
		RhumCorrected: measure.RhumCorrected,
		Rco2Corrected: measure.Rco2Corrected,

		TVOC:      measure.TVOC,
		TVOCIndex: measure.TVOCIndex,
		NOXIndex:  measure.NOXIndex,

		Wifi:       measure.Wifi,
		Datapoints: measure.Datapoints,

		Longitude: measure.Longitude,
		Latitude:  measure.Latitude,

		Timestamp: timestamp,
		Date:      parsed.UTC().Format("2006-01-02"),
	}

	if sensorID != "" {
		measurement.SensorID = &sensorID
	}

	return measurement, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
