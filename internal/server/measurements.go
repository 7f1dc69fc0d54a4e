package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/datasync"
	"github.com/monorkin/airgradient-dashboard/internal/locations"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

const (
	DEFAULT_MEASUREMENT_LIMIT = 1000
	MAX_MEASUREMENT_LIMIT     = 10000
)

type measurementParams struct {
	LocationID   string `form:"locationId"`
	SensorID     string `form:"sensorId"`
	SerialNumber string `form:"serialNumber"`
	StartDate    string `form:"startDate"`
	EndDate      string `form:"endDate"`
	Limit        int    `form:"limit" binding:"min=0"`
	Offset       int    `form:"offset" binding:"min=0"`
}

func (params measurementParams) filter() (store.MeasurementFilter, string) {
	filter := store.MeasurementFilter{
		SensorID:     params.SensorID,
		SerialNumber: params.SerialNumber,
		Limit:        params.Limit,
		Offset:       params.Offset,
	}

	switch {
	case filter.Limit == 0:
		filter.Limit = DEFAULT_MEASUREMENT_LIMIT
	case filter.Limit > MAX_MEASUREMENT_LIMIT:
		filter.Limit = MAX_MEASUREMENT_LIMIT
	}

	if params.StartDate != "" {
		start, err := datasync.ParseTimestamp(params.StartDate)
		if err != nil {
			return filter, "Invalid startDate format. Use ISO 8601 format."
		}
		filter.Start = &start
	}

	if params.EndDate != "" {
		end, err := parseEndDate(params.EndDate)
		if err != nil {
			return filter, "Invalid endDate format. Use ISO 8601 format."
		}
		filter.End = &end
	}

	return filter, ""
}

// parseEndDate treats a bare date as the end of that day.
func parseEndDate(value string) (time.Time, error) {
	if day, err := time.Parse(time.DateOnly, value); err == nil {
		return day.Add(24*time.Hour - time.Second), nil
	}
	return datasync.ParseTimestamp(value)
}

func (handler *Handler) ListMeasurements(c *gin.Context) {
	var params measurementParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	filter, problem := params.filter()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}

	if params.LocationID != "" {
		locationID, err := strconv.Atoi(params.LocationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid locationId"})
			return
		}
		filter.LocationID = &locationID
	}

	handler.listMeasurements(c, filter)
}

// ListLocationMeasurements returns stored measurements of a location. The
// numeric vendor id is recovered from the stored location id.
func (handler *Handler) ListLocationMeasurements(c *gin.Context) {
	var params measurementParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	filter, problem := params.filter()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}

	locationID, ok := locations.ParseLocationID(c.Param("id"), handler.logger)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location id"})
		return
	}
	filter.LocationID = &locationID

	handler.listMeasurements(c, filter)
}

func (handler *Handler) listMeasurements(c *gin.Context, filter store.MeasurementFilter) {
	measurements, err := handler.measurements.ListMeasurements(c.Request.Context(), filter)
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, measurements)
}

func (handler *Handler) CurrentMeasures(c *gin.Context) {
	measures, err := handler.vendor.CurrentMeasures(c.Request.Context())
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, measures)
}

func (handler *Handler) LocationCurrentMeasures(c *gin.Context) {
	locationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid locationId"})
		return
	}

	measures, err := handler.vendor.LocationCurrentMeasures(c.Request.Context(), locationID)
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, measures)
}

type pastMeasuresParams struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// LocationPastMeasures proxies the vendor's past measures of a location,
// passing the optional from and to window through unchanged.
func (handler *Handler) LocationPastMeasures(c *gin.Context) {
	locationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid locationId"})
		return
	}

	var params pastMeasuresParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	measures, err := handler.vendor.LocationPastMeasures(c.Request.Context(), locationID, api.MeasuresQuery{From: params.From, To: params.To})
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, measures)
}

func (handler *Handler) VendorPing(c *gin.Context) {
	status, err := handler.vendor.Ping(c.Request.Context())
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
