package models

import (
	"time"
)

type Measurement struct {
	ID              string  `gorm:"primaryKey" json:"id"`
	SerialNumber    string  `gorm:"column:serial_number;uniqueIndex:idx_measurements_serial_timestamp" json:"serialNumber"`
	SensorID        *string `gorm:"column:sensor_id" json:"sensorId,omitempty"`
	LocationID      *int    `gorm:"column:location_id;index" json:"locationId,omitempty"`
	LocationName    *string `gorm:"column:location_name" json:"locationName,omitempty"`
	LocationType    *string `gorm:"column:location_type" json:"locationType,omitempty"`
	Model           *string `gorm:"column:model" json:"model,omitempty"`
	FirmwareVersion *string `gorm:"column:firmware_version" json:"firmwareVersion,omitempty"`

	PM01       *float64 `gorm:"column:pm01" json:"pm01,omitempty"`
	PM02       *float64 `gorm:"column:pm02" json:"pm02,omitempty"`
	PM10       *float64 `gorm:"column:pm10" json:"pm10,omitempty"`
	PM03PCount *float64 `gorm:"column:pm03_p_count" json:"pm03PCount,omitempty"`

	PM01Corrected *float64 `gorm:"column:pm01_corrected" json:"pm01Corrected,omitempty"`
	PM02Corrected *float64 `gorm:"column:pm02_corrected" json:"pm02Corrected,omitempty"`
	PM10Corrected *float64 `gorm:"column:pm10_corrected" json:"pm10Corrected,omitempty"`

	Atmp *float64 `gorm:"column:atmp" json:"atmp,omitempty"`
	Rhum *float64 `gorm:"column:rhum" json:"rhum,omitempty"`
	Rco2 *float64 `gorm:"column:rco2" json:"rco2,omitempty"`

	AtmpCorrected *float64 `gorm:"column:atmp_corrected" json:"atmpCorrected,omitempty"`
	RhumCorrected *float64 `gorm:"column:rhum_corrected" json:"rhumCorrected,omitempty"`
	Rco2Corrected *float64 `gorm:"column:rco2_corrected" json:"rco2Corrected,omitempty"`

	TVOC      *float64 `gorm:"column:tvoc" json:"tvoc,omitempty"`
	TVOCIndex *float64 `gorm:"column:tvoc_index" json:"tvocIndex,omitempty"`
	NOXIndex  *float64 `gorm:"column:nox_index" json:"noxIndex,omitempty"`

	Wifi       *float64 `gorm:"column:wifi" json:"wifi,omitempty"`
	Datapoints *float64 `gorm:"column:datapoints" json:"datapoints,omitempty"`

	Longitude *float64 `gorm:"column:longitude" json:"longitude,omitempty"`
	Latitude  *float64 `gorm:"column:latitude" json:"latitude,omitempty"`

	// Seconds since epoch.
	Timestamp int64     `gorm:"column:timestamp;uniqueIndex:idx_measurements_serial_timestamp" json:"timestamp"`
	Date      string    `gorm:"column:date;index" json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Sensor *Sensor `gorm:"foreignKey:SensorID" json:"-"`
}
