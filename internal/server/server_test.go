package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/datasync"
	"github.com/monorkin/airgradient-dashboard/internal/locations"
	"github.com/monorkin/airgradient-dashboard/internal/models"
	"github.com/monorkin/airgradient-dashboard/internal/store"
	"github.com/monorkin/airgradient-dashboard/internal/store/storetest"
)

type fakeSyncer struct {
	result   datasync.SyncResult
	progress []datasync.Progress
	options  datasync.SyncOptions
	panics   bool
}

func (syncer *fakeSyncer) SyncLocationData(ctx context.Context, options datasync.SyncOptions, onProgress datasync.ProgressFunc) datasync.SyncResult {
	if syncer.panics {
		panic("storage exploded")
	}

	syncer.options = options
	for _, progress := range syncer.progress {
		if onProgress != nil {
			onProgress(progress)
		}
	}
	return syncer.result
}

type fakeVendor struct {
	measures []api.Measure
	err      error
	location int
	window   api.MeasuresQuery
}

func (vendor *fakeVendor) CurrentMeasures(context.Context) ([]api.Measure, error) {
	return vendor.measures, vendor.err
}

func (vendor *fakeVendor) LocationCurrentMeasures(_ context.Context, locationID int) ([]api.Measure, error) {
	vendor.location = locationID
	return vendor.measures, vendor.err
}

func (vendor *fakeVendor) LocationPastMeasures(_ context.Context, locationID int, window api.MeasuresQuery) ([]api.Measure, error) {
	vendor.location = locationID
	vendor.window = window
	return vendor.measures, vendor.err
}

func (vendor *fakeVendor) Ping(context.Context) (map[string]any, error) {
	if vendor.err != nil {
		return nil, vendor.err
	}
	return map[string]any{"status": "ok"}, nil
}

type testServer struct {
	router *gin.Engine
	syncer *fakeSyncer
	vendor *fakeVendor
	store  *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := storetest.New(t)
	syncer := &fakeSyncer{result: datasync.SyncResult{Success: true, Errors: []datasync.SyncError{}}}
	vendor := &fakeVendor{}
	locationService := locations.NewService(vendor, db, nil)

	handler := NewHandler(syncer, locationService, db, vendor, nil)

	return &testServer{
		router: NewRouter(handler, prometheus.NewRegistry()),
		syncer: syncer,
		vendor: vendor,
		store:  db,
	}
}

func (server *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, request)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out), recorder.Body.String())
	return out
}

func TestSyncLocationValidation(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		message string
	}{
		{"non integer id", "/api/sync/locations/office", "Invalid locationId"},
		{"bad from", "/api/sync/locations/42?from=yesterday", "Invalid from date format. Use ISO 8601 format."},
		{"bad to", "/api/sync/locations/42?from=2025-01-01&to=soon", "Invalid to date format. Use ISO 8601 format."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := server.do(http.MethodPost, tt.path, "")
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Equal(t, tt.message, decode[map[string]string](t, recorder)["error"])
		})
	}
}

func TestSyncLocationSuccess(t *testing.T) {
	server := newTestServer(t)
	server.syncer.result = datasync.SyncResult{Success: true, TotalFetched: 3, TotalSaved: 3, Errors: []datasync.SyncError{}, Duration: 12}

	recorder := server.do(http.MethodPost, "/api/sync/locations/42?from=2025-01-01&to=2025-01-02T00:00:00Z", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, datasync.SyncOptions{LocationID: 42, From: "2025-01-01", To: "2025-01-02T00:00:00Z"}, server.syncer.options)

	body := decode[map[string]any](t, recorder)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 3.0, body["totalSaved"])
	assert.Equal(t, []any{}, body["errors"])
}

func TestSyncLocationPartialFailure(t *testing.T) {
	server := newTestServer(t)
	server.syncer.result = datasync.SyncResult{
		Success:      false,
		TotalFetched: 2,
		TotalSaved:   1,
		TotalSkipped: 1,
		Errors:       []datasync.SyncError{{Message: "Missing serialno or timestamp", Measure: &api.Measure{Timestamp: "2025-01-01T00:00:00Z"}}},
	}

	recorder := server.do(http.MethodPost, "/api/sync/locations/42", "")

	assert.Equal(t, http.StatusMultiStatus, recorder.Code)
	result := decode[datasync.SyncResult](t, recorder)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Missing serialno or timestamp", result.Errors[0].Message)
	assert.Equal(t, "2025-01-01T00:00:00Z", result.Errors[0].Measure.Timestamp)
}

func TestSyncLocationPanicIsInternalError(t *testing.T) {
	server := newTestServer(t)
	server.syncer.panics = true

	recorder := server.do(http.MethodPost, "/api/sync/locations/42", "")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	body := decode[map[string]string](t, recorder)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "storage exploded", body["message"])
}

func TestStreamSyncLocation(t *testing.T) {
	server := newTestServer(t)
	server.syncer.progress = []datasync.Progress{
		{Message: "Fetching measurements for location 42..."},
		{Message: "Processing measurements...", Processed: 50, Total: 60},
	}
	server.syncer.result = datasync.SyncResult{Success: true, TotalSaved: 60, Errors: []datasync.SyncError{}}

	httpServer := httptest.NewServer(server.router)
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/sync/locations/42/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var events []streamEvent
	for {
		var event streamEvent
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		events = append(events, event)
	}

	require.Len(t, events, 3)
	assert.Equal(t, "progress", events[0].Type)
	assert.Equal(t, "Fetching measurements for location 42...", events[0].Progress.Message)
	assert.Equal(t, 50, events[1].Progress.Processed)
	assert.Equal(t, "result", events[2].Type)
	assert.Equal(t, 60, events[2].Result.TotalSaved)
}

func TestStreamSyncLocationRejectsBadInput(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(http.MethodGet, "/api/sync/locations/abc/stream", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLocationRoutes(t *testing.T) {
	server := newTestServer(t)

	created := server.do(http.MethodPost, "/api/locations", `{"name":"Garage","city":"Zagreb"}`)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	location := decode[locations.Location](t, created)
	assert.Equal(t, "Garage", *location.Name)

	updated := server.do(http.MethodPut, "/api/locations/"+location.ID, `{"timezone":"Europe/Zagreb"}`)
	require.Equal(t, http.StatusOK, updated.Code)
	assert.Equal(t, "Europe/Zagreb", *decode[locations.Location](t, updated).Timezone)

	fetched := server.do(http.MethodGet, "/api/locations/"+location.ID, "")
	require.Equal(t, http.StatusOK, fetched.Code)
	assert.Equal(t, "Zagreb", *decode[locations.Location](t, fetched).City)

	list := server.do(http.MethodGet, "/api/locations?limit=5", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[[]locations.Location](t, list), 1)

	deleted := server.do(http.MethodDelete, "/api/locations/"+location.ID, "")
	require.Equal(t, http.StatusOK, deleted.Code)
	assert.True(t, decode[locations.DeleteResult](t, deleted).Success)

	missing := server.do(http.MethodGet, "/api/locations/"+location.ID, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestCreateLocationValidation(t *testing.T) {
	server := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodPost, "/api/locations", `{"name":`).Code)
	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodPost, "/api/locations", `{"city":"Zagreb"}`).Code)
	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodGet, "/api/locations?limit=-1", "").Code)
}

func TestSyncLocationsRoute(t *testing.T) {
	server := newTestServer(t)
	locationID := 42
	server.vendor.measures = []api.Measure{{LocationID: &locationID, LocationName: "Office"}}

	recorder := server.do(http.MethodPost, "/api/locations/sync", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	synced := decode[[]locations.Location](t, recorder)
	require.Len(t, synced, 1)
	assert.Equal(t, "42", synced[0].ID)
}

func TestSyncLocationsRouteFailure(t *testing.T) {
	server := newTestServer(t)
	server.vendor.err = &api.Error{Code: api.ErrorCodeInternalError, Class: api.ClassNetworkError, Message: "failed to communicate with Air Gradient API"}

	recorder := server.do(http.MethodPost, "/api/locations/sync", "")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	body := decode[map[string]string](t, recorder)
	assert.Contains(t, body["message"], "failed to sync locations from API")
}

func seedMeasurements(t *testing.T, db *store.Store) {
	t.Helper()

	locationID := 26
	otherLocation := 7
	rows := []models.Measurement{
		{ID: "m1", SerialNumber: "abc", LocationID: &locationID, Timestamp: 1735732800, Date: "2025-01-01"},
		{ID: "m2", SerialNumber: "abc", LocationID: &locationID, Timestamp: 1735819200, Date: "2025-01-02"},
		{ID: "m3", SerialNumber: "def", LocationID: &otherLocation, Timestamp: 1735732800, Date: "2025-01-01"},
	}
	for i := range rows {
		require.NoError(t, db.CreateMeasurement(context.Background(), &rows[i]))
	}
}

func TestListMeasurements(t *testing.T) {
	server := newTestServer(t)
	seedMeasurements(t, server.store)

	all := server.do(http.MethodGet, "/api/measurements", "")
	require.Equal(t, http.StatusOK, all.Code)
	assert.Len(t, decode[[]models.Measurement](t, all), 3)

	bySerial := server.do(http.MethodGet, "/api/measurements?serialNumber=abc&endDate=2025-01-01", "")
	require.Equal(t, http.StatusOK, bySerial.Code)
	rows := decode[[]models.Measurement](t, bySerial)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0].ID)

	byLocation := server.do(http.MethodGet, "/api/measurements?locationId=7", "")
	require.Equal(t, http.StatusOK, byLocation.Code)
	assert.Len(t, decode[[]models.Measurement](t, byLocation), 1)

	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodGet, "/api/measurements?locationId=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodGet, "/api/measurements?startDate=never", "").Code)
}

func TestListLocationMeasurementsAcceptsHexIDs(t *testing.T) {
	server := newTestServer(t)
	seedMeasurements(t, server.store)

	decimal := server.do(http.MethodGet, "/api/locations/26/measurements?startDate=2025-01-02", "")
	require.Equal(t, http.StatusOK, decimal.Code)
	rows := decode[[]models.Measurement](t, decimal)
	require.Len(t, rows, 1)
	assert.Equal(t, "m2", rows[0].ID)

	hex := server.do(http.MethodGet, "/api/locations/1a/measurements", "")
	require.Equal(t, http.StatusOK, hex.Code)
	assert.Len(t, decode[[]models.Measurement](t, hex), 2)

	invalid := server.do(http.MethodGet, "/api/locations/office-1/measurements", "")
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestVendorProxies(t *testing.T) {
	server := newTestServer(t)
	server.vendor.measures = []api.Measure{{Serialno: "abc"}}

	current := server.do(http.MethodGet, "/api/measures/current", "")
	require.Equal(t, http.StatusOK, current.Code)
	assert.Len(t, decode[[]api.Measure](t, current), 1)

	location := server.do(http.MethodGet, "/api/locations/42/measures/current", "")
	require.Equal(t, http.StatusOK, location.Code)
	assert.Equal(t, 42, server.vendor.location)

	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodGet, "/api/locations/x/measures/current", "").Code)
}

func TestLocationPastMeasuresProxy(t *testing.T) {
	server := newTestServer(t)
	server.vendor.measures = []api.Measure{{Serialno: "abc"}, {Serialno: "abc"}}

	recorder := server.do(http.MethodGet, "/api/locations/42/measures/past?from=20250101T000000Z&to=20250102T000000Z", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decode[[]api.Measure](t, recorder), 2)
	assert.Equal(t, 42, server.vendor.location)
	assert.Equal(t, api.MeasuresQuery{From: "20250101T000000Z", To: "20250102T000000Z"}, server.vendor.window)

	assert.Equal(t, http.StatusBadRequest, server.do(http.MethodGet, "/api/locations/x/measures/past", "").Code)
}

func TestVendorPing(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, recorder)["status"])

	server.vendor.err = &api.Error{Code: api.ErrorCodeUnauthorized, Message: "Air Gradient API error: unauthorized"}
	assert.Equal(t, http.StatusUnauthorized, server.do(http.MethodGet, "/api/ping", "").Code)
}

func TestVendorErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		code   api.ErrorCode
		status int
	}{
		{api.ErrorCodeUnauthorized, http.StatusUnauthorized},
		{api.ErrorCodeNotFound, http.StatusNotFound},
		{api.ErrorCodeBadRequest, http.StatusBadRequest},
		{api.ErrorCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			server := newTestServer(t)
			server.vendor.err = &api.Error{Code: tt.code, Message: "Air Gradient API error: nope"}

			recorder := server.do(http.MethodGet, "/api/measures/current", "")
			assert.Equal(t, tt.status, recorder.Code)
			assert.Equal(t, string(tt.code), decode[map[string]string](t, recorder)["error"])
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(t)

	health := server.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, health)["status"])

	metrics := server.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
}

func TestWriteErrorFallsBackToInternalError(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil, nil)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	handler.writeError(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "boom", decode[map[string]string](t, recorder)["message"])
}
