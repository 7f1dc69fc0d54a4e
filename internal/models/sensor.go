package models

import (
	"time"
)

// Sensor is a physical monitor keyed by its serial number. LocationID is a
// loose reference and is not enforced as a foreign key.
type Sensor struct {
	ID           string        `gorm:"primaryKey" json:"id"`
	SerialNumber string        `gorm:"uniqueIndex" json:"serialNumber"`
	LocationID   *string       `json:"locationId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Measurements []Measurement `json:"-"`
}
