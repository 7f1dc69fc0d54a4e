// Package datasync pulls measurements from the AirGradient API into local
// storage.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/models"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

const (
	BATCH_SIZE          = 50
	MAX_RETRIES         = 3
	RETRY_INITIAL_DELAY = 1000 * time.Millisecond
)

// MeasureFetcher is the part of the API client the sync needs.
type MeasureFetcher interface {
	LocationRawMeasures(ctx context.Context, locationID int, window api.MeasuresQuery) ([]api.Measure, error)
}

// Store is the persistence the sync writes through.
type Store interface {
	FindSensor(ctx context.Context, id string) (*models.Sensor, error)
	CreateSensor(ctx context.Context, sensor *models.Sensor) error
	FindMeasurement(ctx context.Context, serialNumber string, timestamp int64) (*models.Measurement, error)
	CreateMeasurement(ctx context.Context, measurement *models.Measurement) error
	UpdateMeasurement(ctx context.Context, id string, measurement *models.Measurement) error
}

// RetryPolicy controls fetch retries. The n-th retry waits
// InitialDelay * 2^(n-1).
type RetryPolicy struct {
	MaxRetries   uint64
	InitialDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   MAX_RETRIES,
		InitialDelay: RETRY_INITIAL_DELAY,
	}
}

func (policy RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	if policy.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = policy.InitialDelay
	exponential.RandomizationFactor = 0
	exponential.Multiplier = 2
	exponential.MaxInterval = time.Duration(1<<policy.MaxRetries) * policy.InitialDelay
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exponential, policy.MaxRetries), ctx)
}

type Service struct {
	fetcher MeasureFetcher
	store   Store
	retry   RetryPolicy
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(service *Service) {
		service.logger = logger
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(service *Service) {
		service.retry = policy
	}
}

func NewService(fetcher MeasureFetcher, store Store, opts ...Option) *Service {
	service := &Service{
		fetcher: fetcher,
		store:   store,
		retry:   DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

func (service *Service) log(level slog.Level, msg string, args ...any) {
	if service.logger != nil {
		service.logger.Log(context.Background(), level, msg, args...)
	}
}

// FetchMeasurementsByRange fetches the raw measures of a location,
// retrying server and network failures with exponential backoff. Client
// errors are returned without retrying.
func (service *Service) FetchMeasurementsByRange(ctx context.Context, options SyncOptions) ([]api.Measure, error) {
	var measures []api.Measure
	attempt := 0

	operation := func() error {
		attempt++

		result, err := service.fetcher.LocationRawMeasures(ctx, options.LocationID, api.MeasuresQuery{
			From: options.From,
			To:   options.To,
		})
		if err != nil {
			if !isRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}

		measures = result
		return nil
	}

	notify := func(err error, delay time.Duration) {
		incFetchRetry()
		service.log(slog.LevelWarn, "Fetch attempt failed, retrying",
			"location_id", options.LocationID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, service.retry.backOff(ctx), notify); err != nil {
		service.log(slog.LevelError, "Error fetching measurements", "location_id", options.LocationID, "attempts", attempt, "error", err)
		return nil, err
	}

	if measures == nil {
		measures = []api.Measure{}
	}

	return measures, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	return true
}

// SaveMeasurements persists measures in batches of BATCH_SIZE. A record is
// updated in place when a measurement with the same serial number and
// timestamp exists, and inserted otherwise. Failures are recorded per
// record and never stop the batch.
func (service *Service) SaveMeasurements(ctx context.Context, measures []api.Measure, onProgress BatchProgressFunc) SaveResult {
	result := SaveResult{Errors: []SyncError{}}
	total := len(measures)

	for start := 0; start < total; start += BATCH_SIZE {
		end := min(start+BATCH_SIZE, total)

		for _, measure := range measures[start:end] {
			updated, syncErr := service.saveMeasure(ctx, measure)
			switch {
			case syncErr != nil:
				result.Skipped++
				result.Errors = append(result.Errors, *syncErr)
				service.log(slog.LevelDebug, "Measurement skipped", "serialno", measure.Serialno, "timestamp", measure.Timestamp, "reason", syncErr.Message)
			case updated:
				result.Updated++
			default:
				result.Saved++
			}
		}

		if onProgress != nil {
			onProgress(end, total)
		}
	}

	return result
}

func (service *Service) saveMeasure(ctx context.Context, measure api.Measure) (bool, *SyncError) {
	if measure.Serialno == "" || measure.Timestamp == "" {
		return false, skip("Missing serialno or timestamp", measure, nil)
	}

	sensorID := service.getOrCreateSensor(ctx, measure.Serialno, measure.LocationID)

	measurement, err := TransformMeasure(measure, sensorID)
	if err != nil {
		if errors.Is(err, ErrInvalidTimestamp) {
			return false, skip("Invalid timestamp", measure, nil)
		}
		return false, skip(fmt.Sprintf("Failed to save measurement: %v", err), measure, err)
	}

	existing, err := service.store.FindMeasurement(ctx, measure.Serialno, measurement.Timestamp)
	switch {
	case err == nil:
		measurement.ID = existing.ID
		if err := service.store.UpdateMeasurement(ctx, existing.ID, &measurement); err != nil {
			return false, skip(fmt.Sprintf("Failed to save measurement: %v", err), measure, err)
		}
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		measurement.ID = uuid.NewString()
		if err := service.store.CreateMeasurement(ctx, &measurement); err != nil {
			return false, skip(fmt.Sprintf("Failed to save measurement: %v", err), measure, err)
		}
		return false, nil
	default:
		return false, skip(fmt.Sprintf("Failed to save measurement: %v", err), measure, err)
	}
}

// getOrCreateSensor returns the id of the sensor with serialNumber,
// creating it on first sight. Lookup failures are logged and yield "", in
// which case the measurement is stored without a sensor reference.
func (service *Service) getOrCreateSensor(ctx context.Context, serialNumber string, locationID *int) string {
	sensor, err := service.store.FindSensor(ctx, serialNumber)
	if err == nil {
		return sensor.ID
	}
	if !errors.Is(err, store.ErrNotFound) {
		service.log(slog.LevelError, "Error getting sensor", "serialno", serialNumber, "error", err)
		return ""
	}

	sensor = &models.Sensor{
		ID:           serialNumber,
		SerialNumber: serialNumber,
	}
	if locationID != nil {
		id := fmt.Sprint(*locationID)
		sensor.LocationID = &id
	}

	err = service.store.CreateSensor(ctx, sensor)
	switch {
	case err == nil:
		service.log(slog.LevelInfo, "Sensor created", "serialno", serialNumber)
		return sensor.ID
	case store.IsDuplicate(err):
		// Another sync created it first.
		return serialNumber
	default:
		service.log(slog.LevelError, "Error creating sensor", "serialno", serialNumber, "error", err)
		return ""
	}
}

// SyncLocationData fetches and saves the measures of one location. It
// never fails: fetch errors and panics are reported in the result.
func (service *Service) SyncLocationData(ctx context.Context, options SyncOptions, onProgress ProgressFunc) (result SyncResult) {
	started := time.Now()

	report := func(message string, processed, total int) {
		if onProgress != nil {
			onProgress(Progress{Message: message, Processed: processed, Total: total})
		}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%v", recovered)
			result = failedResult(err)
		}
		result.Duration = time.Since(started).Milliseconds()
		observeSync(result, time.Since(started))
		service.log(slog.LevelInfo, "Location sync finished",
			"location_id", options.LocationID,
			"success", result.Success,
			"fetched", result.TotalFetched,
			"saved", result.TotalSaved,
			"updated", result.TotalUpdated,
			"skipped", result.TotalSkipped,
			"duration_ms", result.Duration,
		)
	}()

	report(fmt.Sprintf("Fetching measurements for location %d...", options.LocationID), 0, 0)

	measures, err := service.FetchMeasurementsByRange(ctx, options)
	if err != nil {
		return failedResult(err)
	}

	report(fmt.Sprintf("Fetched %d measurements", len(measures)), 0, 0)

	if len(measures) == 0 {
		return SyncResult{
			Success: true,
			Errors:  []SyncError{},
		}
	}

	report("Saving measurements to database...", 0, 0)

	saved := service.SaveMeasurements(ctx, measures, func(processed, total int) {
		report("Processing measurements...", processed, total)
	})

	report(fmt.Sprintf("Sync complete: %d saved, %d updated, %d skipped", saved.Saved, saved.Updated, saved.Skipped), 0, 0)

	return SyncResult{
		Success:      len(saved.Errors) == 0,
		TotalFetched: len(measures),
		TotalSaved:   saved.Saved,
		TotalUpdated: saved.Updated,
		TotalSkipped: saved.Skipped,
		Errors:       saved.Errors,
	}
}

func failedResult(err error) SyncResult {
	return SyncResult{
		Success: false,
		Errors: []SyncError{{
			Message: fmt.Sprintf("Sync failed: %v", err),
			Err:     err,
		}},
	}
}

func skip(message string, measure api.Measure, err error) *SyncError {
	return &SyncError{
		Message: message,
		Measure: &measure,
		Err:     err,
	}
}
