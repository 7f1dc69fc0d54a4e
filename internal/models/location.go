package models

import (
	"time"
)

// Location is a site hosting one or more sensors. Synced locations use the
// decimal string form of the vendor's numeric id as primary key.
type Location struct {
	ID        string `gorm:"primaryKey"`
	Name      *string
	Address   *string
	City      *string
	State     *string
	Country   *string
	ZipCode   *string
	Latitude  *float64
	Longitude *float64
	Timezone  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
