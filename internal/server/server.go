// Package server exposes the dashboard API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/datasync"
	"github.com/monorkin/airgradient-dashboard/internal/locations"
	"github.com/monorkin/airgradient-dashboard/internal/models"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

const (
	READ_HEADER_TIMEOUT = 10 * time.Second
	SHUTDOWN_TIMEOUT    = 15 * time.Second
)

type Syncer interface {
	SyncLocationData(ctx context.Context, options datasync.SyncOptions, onProgress datasync.ProgressFunc) datasync.SyncResult
}

type LocationService interface {
	List(ctx context.Context, limit, offset int) ([]locations.Location, error)
	Get(ctx context.Context, id string) (*locations.Location, error)
	Create(ctx context.Context, input locations.CreateInput) (*locations.Location, error)
	Update(ctx context.Context, id string, input locations.UpdateInput) (*locations.Location, error)
	Delete(ctx context.Context, id string) (*locations.DeleteResult, error)
	SyncFromAPI(ctx context.Context) ([]locations.Location, error)
}

type MeasurementStore interface {
	ListMeasurements(ctx context.Context, filter store.MeasurementFilter) ([]models.Measurement, error)
	Ping(ctx context.Context) error
}

type VendorClient interface {
	CurrentMeasures(ctx context.Context) ([]api.Measure, error)
	LocationCurrentMeasures(ctx context.Context, locationID int) ([]api.Measure, error)
	LocationPastMeasures(ctx context.Context, locationID int, window api.MeasuresQuery) ([]api.Measure, error)
	Ping(ctx context.Context) (map[string]any, error)
}

type Handler struct {
	sync         Syncer
	locations    LocationService
	measurements MeasurementStore
	vendor       VendorClient
	logger       *slog.Logger
}

func NewHandler(sync Syncer, locations LocationService, measurements MeasurementStore, vendor VendorClient, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		sync:         sync,
		locations:    locations,
		measurements: measurements,
		vendor:       vendor,
		logger:       logger,
	}
}

// NewRouter builds the gin engine with every route registered. A nil
// gatherer serves the default Prometheus registry.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(requestLogger(handler.logger))
	router.Use(gin.CustomRecovery(handler.recover))

	router.GET("/healthz", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	RegisterRoutes(router, handler)

	return router
}

func RegisterRoutes(router *gin.Engine, handler *Handler) {
	apiGroup := router.Group("/api")

	apiGroup.POST("/sync/locations/:locationId", handler.SyncLocation)
	apiGroup.GET("/sync/locations/:locationId/stream", handler.StreamSyncLocation)

	apiGroup.GET("/locations", handler.ListLocations)
	apiGroup.POST("/locations", handler.CreateLocation)
	apiGroup.POST("/locations/sync", handler.SyncLocations)
	apiGroup.GET("/locations/:id", handler.GetLocation)
	apiGroup.PUT("/locations/:id", handler.UpdateLocation)
	apiGroup.DELETE("/locations/:id", handler.DeleteLocation)
	apiGroup.GET("/locations/:id/measurements", handler.ListLocationMeasurements)
	apiGroup.GET("/locations/:id/measures/current", handler.LocationCurrentMeasures)
	apiGroup.GET("/locations/:id/measures/past", handler.LocationPastMeasures)

	apiGroup.GET("/measurements", handler.ListMeasurements)
	apiGroup.GET("/measures/current", handler.CurrentMeasures)
	apiGroup.GET("/ping", handler.VendorPing)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, address string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: READ_HEADER_TIMEOUT,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", address)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	}
}

func (handler *Handler) Health(c *gin.Context) {
	if err := handler.measurements.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (handler *Handler) recover(c *gin.Context, recovered any) {
	handler.logger.Error("Unhandled panic", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal server error",
		"message": fmt.Sprint(recovered),
	})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		c.Next()

		logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		)
	}
}

// writeError maps service errors onto HTTP statuses.
func (handler *Handler) writeError(c *gin.Context, err error) {
	var apiErr *api.Error

	switch {
	case errors.Is(err, locations.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, locations.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		c.JSON(vendorStatus(apiErr), gin.H{"error": string(apiErr.Code), "message": apiErr.Error()})
	default:
		handler.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
	}
}

func vendorStatus(err *api.Error) int {
	switch err.Code {
	case api.ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorCodeNotFound:
		return http.StatusNotFound
	case api.ErrorCodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
