// Package store persists locations, sensors and measurements through gorm.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/monorkin/airgradient-dashboard/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// IsDuplicate reports whether err is a uniqueness constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Sensors

func (s *Store) FindSensor(ctx context.Context, id string) (*models.Sensor, error) {
	var sensor models.Sensor
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sensor).Error; err != nil {
		return nil, notFound(err)
	}
	return &sensor, nil
}

func (s *Store) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(sensor).Error
}

func (s *Store) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	var sensors []models.Sensor
	err := s.db.WithContext(ctx).Order("id").Find(&sensors).Error
	return sensors, err
}

// Measurements

// FindMeasurement looks a measurement up by its natural key.
func (s *Store) FindMeasurement(ctx context.Context, serialNumber string, timestamp int64) (*models.Measurement, error) {
	var measurement models.Measurement
	err := s.db.WithContext(ctx).
		Where("timestamp = ? AND serial_number = ?", timestamp, serialNumber).
		First(&measurement).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &measurement, nil
}

func (s *Store) CreateMeasurement(ctx context.Context, measurement *models.Measurement) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(measurement).Error
}

// UpdateMeasurement overwrites the stored row with every field set on
// measurement. Nil fields keep their stored value, except the sensor
// reference which is always written.
func (s *Store) UpdateMeasurement(ctx context.Context, id string, measurement *models.Measurement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Measurement{}).
			Where("id = ?", id).
			Omit(clause.Associations, "id", "created_at").
			Updates(measurement).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Measurement{}).
			Where("id = ?", id).
			Update("sensor_id", measurement.SensorID).Error
	})
}

type MeasurementFilter struct {
	LocationID   *int
	SensorID     string
	SerialNumber string
	Start        *time.Time
	End          *time.Time
	Limit        int
	Offset       int
}

func (s *Store) ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]models.Measurement, error) {
	query := s.db.WithContext(ctx).Model(&models.Measurement{})

	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.SensorID != "" {
		query = query.Where("sensor_id = ?", filter.SensorID)
	}
	if filter.SerialNumber != "" {
		query = query.Where("serial_number = ?", filter.SerialNumber)
	}
	if filter.Start != nil {
		query = query.Where("timestamp >= ?", filter.Start.Unix())
	}
	if filter.End != nil {
		query = query.Where("timestamp <= ?", filter.End.Unix())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var measurements []models.Measurement
	err := query.Order("timestamp ASC").Find(&measurements).Error
	return measurements, err
}

func (s *Store) LatestMeasurement(ctx context.Context, serialNumber string) (*models.Measurement, error) {
	var measurement models.Measurement
	err := s.db.WithContext(ctx).
		Where("serial_number = ?", serialNumber).
		Order("timestamp DESC").
		First(&measurement).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &measurement, nil
}

func (s *Store) CountMeasurements(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Measurement{}).Count(&count).Error
	return count, err
}

// Locations

func (s *Store) ListLocations(ctx context.Context, limit, offset int) ([]models.Location, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var locations []models.Location
	err := query.Find(&locations).Error
	return locations, err
}

func (s *Store) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	var location models.Location
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&location).Error; err != nil {
		return nil, notFound(err)
	}
	return &location, nil
}

func (s *Store) CreateLocation(ctx context.Context, location *models.Location) error {
	return s.db.WithContext(ctx).Create(location).Error
}

// UpdateLocation applies the non-nil fields of updates.
func (s *Store) UpdateLocation(ctx context.Context, id string, updates *models.Location) (*models.Location, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Location{}).
		Where("id = ?", id).
		Omit("id", "created_at").
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetLocation(ctx, id)
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Location{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertLocation inserts location, or on an id conflict overwrites the
// name and coordinates that are set on location, then returns the stored
// row. Unset fields keep their stored values.
func (s *Store) UpsertLocation(ctx context.Context, location *models.Location) (*models.Location, error) {
	columns := []string{"updated_at"}
	if location.Name != nil {
		columns = append(columns, "name")
	}
	if location.Latitude != nil {
		columns = append(columns, "latitude")
	}
	if location.Longitude != nil {
		columns = append(columns, "longitude")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(location).Error
	if err != nil {
		return nil, err
	}

	return s.GetLocation(ctx, location.ID)
}
