// Package locations manages the location catalog and refreshes it from the
// AirGradient current-measures feed.
package locations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/models"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

var (
	ErrNotFound     = errors.New("location not found")
	ErrNameRequired = errors.New("location name is required")
	ErrSyncFailed   = errors.New("failed to sync locations from API")
)

// Location is the API-facing form of a stored location.
type Location struct {
	ID        string   `json:"id"`
	Name      *string  `json:"name,omitempty"`
	Address   *string  `json:"address,omitempty"`
	City      *string  `json:"city,omitempty"`
	State     *string  `json:"state,omitempty"`
	Country   *string  `json:"country,omitempty"`
	ZipCode   *string  `json:"zipCode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  *string  `json:"timezone,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

type CreateInput struct {
	Name      string   `json:"name"`
	Address   *string  `json:"address,omitempty"`
	City      *string  `json:"city,omitempty"`
	State     *string  `json:"state,omitempty"`
	Country   *string  `json:"country,omitempty"`
	ZipCode   *string  `json:"zipCode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  *string  `json:"timezone,omitempty"`
}

// UpdateInput holds a partial update. Nil fields are left untouched.
type UpdateInput struct {
	Name      *string  `json:"name,omitempty"`
	Address   *string  `json:"address,omitempty"`
	City      *string  `json:"city,omitempty"`
	State     *string  `json:"state,omitempty"`
	Country   *string  `json:"country,omitempty"`
	ZipCode   *string  `json:"zipCode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  *string  `json:"timezone,omitempty"`
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type CurrentMeasuresFetcher interface {
	CurrentMeasures(ctx context.Context) ([]api.Measure, error)
}

type Store interface {
	ListLocations(ctx context.Context, limit, offset int) ([]models.Location, error)
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	CreateLocation(ctx context.Context, location *models.Location) error
	UpdateLocation(ctx context.Context, id string, updates *models.Location) (*models.Location, error)
	DeleteLocation(ctx context.Context, id string) error
	UpsertLocation(ctx context.Context, location *models.Location) (*models.Location, error)
}

type Service struct {
	fetcher CurrentMeasuresFetcher
	store   Store
	logger  *slog.Logger
}

func NewService(fetcher CurrentMeasuresFetcher, store Store, logger *slog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
}

func (service *Service) log(level slog.Level, msg string, args ...any) {
	if service.logger != nil {
		service.logger.Log(context.Background(), level, msg, args...)
	}
}

func (service *Service) List(ctx context.Context, limit, offset int) ([]Location, error) {
	rows, err := service.store.ListLocations(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	result := make([]Location, 0, len(rows))
	for _, row := range rows {
		result = append(result, toLocation(row))
	}

	return result, nil
}

func (service *Service) Get(ctx context.Context, id string) (*Location, error) {
	row, err := service.store.GetLocation(ctx, id)
	if err != nil {
		return nil, service.translate(id, err)
	}

	location := toLocation(*row)
	return &location, nil
}

func (service *Service) Create(ctx context.Context, input CreateInput) (*Location, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrNameRequired
	}

	name := input.Name
	row := &models.Location{
		ID:        uuid.NewString(),
		Name:      &name,
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		Country:   input.Country,
		ZipCode:   input.ZipCode,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Timezone:  input.Timezone,
	}

	if err := service.store.CreateLocation(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	location := toLocation(*row)
	return &location, nil
}

func (service *Service) Update(ctx context.Context, id string, input UpdateInput) (*Location, error) {
	row, err := service.store.UpdateLocation(ctx, id, &models.Location{
		Name:      input.Name,
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		Country:   input.Country,
		ZipCode:   input.ZipCode,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Timezone:  input.Timezone,
	})
	if err != nil {
		return nil, service.translate(id, err)
	}

	location := toLocation(*row)
	return &location, nil
}

func (service *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	if err := service.store.DeleteLocation(ctx, id); err != nil {
		return nil, service.translate(id, err)
	}

	return &DeleteResult{
		Success: true,
		Message: fmt.Sprintf("Location %s deleted successfully", id),
	}, nil
}

// SyncFromAPI derives the location catalog from the current-measures
// feed. The first record seen for a location id provides its name and
// coordinates. Rows that already exist only get those fields refreshed.
func (service *Service) SyncFromAPI(ctx context.Context) ([]Location, error) {
	measures, err := service.fetcher.CurrentMeasures(ctx)
	if err != nil {
		service.log(slog.LevelError, "Error fetching current measures", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	var order []int
	seen := map[int]*models.Location{}
	for _, measure := range measures {
		if measure.LocationID == nil || *measure.LocationID == 0 {
			continue
		}

		id := *measure.LocationID
		if _, ok := seen[id]; ok {
			continue
		}

		row := &models.Location{
			ID:        strconv.Itoa(id),
			Latitude:  measure.Latitude,
			Longitude: measure.Longitude,
		}
		if measure.LocationName != "" {
			name := measure.LocationName
			row.Name = &name
		}

		seen[id] = row
		order = append(order, id)
	}

	synced := make([]Location, 0, len(order))
	for _, id := range order {
		row, err := service.store.UpsertLocation(ctx, seen[id])
		if err != nil {
			service.log(slog.LevelError, "Failed to upsert location", "location_id", id, "error", err)
			if store.IsDuplicate(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
		}

		synced = append(synced, toLocation(*row))
	}

	service.log(slog.LevelInfo, "Locations synced", "count", len(synced))

	return synced, nil
}

func (service *Service) translate(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// ParseLocationID recovers the vendor's numeric id from a stored location
// id. Decimal is tried first, then hexadecimal for ids written by older
// releases. A parse only counts when it formats back to the same digits,
// so "0010" and "+7" are rejected. ok is false when neither parses.
func ParseLocationID(id string, logger *slog.Logger) (int, bool) {
	if decimal, err := strconv.Atoi(id); err == nil && strconv.Itoa(decimal) == id {
		return decimal, true
	}

	digits := strings.TrimPrefix(strings.ToLower(id), "0x")
	if hex, err := strconv.ParseInt(digits, 16, 0); err == nil && strconv.FormatInt(hex, 16) == digits {
		return int(hex), true
	}

	if logger != nil {
		logger.Warn("Could not parse location id", "id", id)
	}

	return 0, false
}

func toLocation(row models.Location) Location {
	return Location{
		ID:        row.ID,
		Name:      row.Name,
		Address:   row.Address,
		City:      row.City,
		State:     row.State,
		Country:   row.Country,
		ZipCode:   row.ZipCode,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		Timezone:  row.Timezone,
		CreatedAt: formatTime(row.CreatedAt),
		UpdatedAt: formatTime(row.UpdatedAt),
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
