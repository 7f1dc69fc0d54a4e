package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "secret-token")
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("", "  token  ")

	assert.Equal(t, DEFAULT_BASE_URL, client.BaseURL())
	assert.Equal(t, "token", client.token)
	assert.NotNil(t, client.httpClient)
}

func TestGetInjectsTokenAndQuery(t *testing.T) {
	var received *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		received = r
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var out map[string]string
	err := client.Get(context.Background(), "/ping", Query{
		"limit":   10,
		"active":  true,
		"ratio":   1.5,
		"missing": nil,
		"token":   "override-attempt",
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, http.MethodGet, received.Method)
	assert.Equal(t, "/ping", received.URL.Path)

	query := received.URL.Query()
	assert.Equal(t, "secret-token", query.Get("token"))
	assert.Equal(t, "10", query.Get("limit"))
	assert.Equal(t, "true", query.Get("active"))
	assert.Equal(t, "1.5", query.Get("ratio"))
	assert.False(t, query.Has("missing"))
}

func TestPostSendsJSONBody(t *testing.T) {
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret-token", r.URL.Query().Get("token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mode":"co2"}`))
	})

	var out map[string]string
	err := client.Post(context.Background(), "/sensors/abc/config/leds/mode", map[string]string{"mode": "co2"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "co2", body["mode"])
	assert.Equal(t, "co2", out["mode"])
}

func TestPutSendsJSONBody(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/sensors/abc/config", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret-token", r.URL.Query().Get("token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updated":true}`))
	})

	var out map[string]bool
	err := client.Put(context.Background(), "/sensors/abc/config", map[string]any{"ledBarBrightness": 50}, &out)

	require.NoError(t, err)
	assert.Equal(t, 50.0, body["ledBarBrightness"])
	assert.True(t, out["updated"])
}

func TestDeleteSendsNoBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/sensors/abc", r.URL.Path)
		assert.Equal(t, "secret-token", r.URL.Query().Get("token"))
		data, _ := io.ReadAll(r.Body)
		assert.Empty(t, data)
		w.WriteHeader(http.StatusNoContent)
	})

	out := map[string]any{}
	require.NoError(t, client.Delete(context.Background(), "/sensors/abc", &out))
	assert.Empty(t, out)
}

func TestDeleteClassifiesErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Delete(context.Background(), "/sensors/missing", nil)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrorCodeNotFound, apiErr.Code)
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	status, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status["status"])
}

func TestGetDoesNotSendBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Empty(t, data)
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.request(context.Background(), http.MethodGet, "/ping", nil, map[string]string{"ignored": "yes"})
	require.NoError(t, err)
}

func TestNonJSONResponseIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	})

	out := map[string]any{}
	err := client.Get(context.Background(), "/ping", nil, &out)
	require.NoError(t, err)
	assert.Empty(t, out)

	measures, err := client.CurrentMeasures(context.Background())
	require.NoError(t, err)
	assert.Empty(t, measures)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      ErrorCode
		class     ErrorClass
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorCodeUnauthorized, ClassClientError, false},
		{"forbidden", http.StatusForbidden, ErrorCodeUnauthorized, ClassClientError, false},
		{"not found", http.StatusNotFound, ErrorCodeNotFound, ClassClientError, false},
		{"unprocessable", http.StatusUnprocessableEntity, ErrorCodeBadRequest, ClassClientError, false},
		{"bad request", http.StatusBadRequest, ErrorCodeBadRequest, ClassClientError, false},
		{"server error", http.StatusInternalServerError, ErrorCodeInternalError, ClassServerError, true},
		{"bad gateway", http.StatusBadGateway, ErrorCodeInternalError, ClassServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tt.status)
			})

			_, err := client.CurrentMeasures(context.Background())
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.class, apiErr.Class)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
			assert.Contains(t, apiErr.Error(), "boom")
		})
	}
}

func TestMissingTokenFailsBeforeRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, "   ")
	_, err := client.CurrentMeasures(context.Background())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrorCodeInternalError, apiErr.Code)
	assert.Equal(t, ClassConfigError, apiErr.Class)
	assert.False(t, apiErr.Retryable())
	assert.False(t, called)
}

func TestNetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "token")
	_, err := client.CurrentMeasures(context.Background())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrorCodeInternalError, apiErr.Code)
	assert.Equal(t, ClassNetworkError, apiErr.Class)
	assert.True(t, apiErr.Retryable())
}

func TestLocationRawMeasures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations/42/measures/raw", r.URL.Path)
		assert.Equal(t, "2025-01-01", r.URL.Query().Get("from"))
		assert.False(t, r.URL.Query().Has("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"json":[{"serialno":"abc","timestamp":"2025-01-01T12:00:00.000Z","pm02":12.5,"locationId":42}]}`))
	})

	measures, err := client.LocationRawMeasures(context.Background(), 42, MeasuresQuery{From: "2025-01-01"})
	require.NoError(t, err)
	require.Len(t, measures, 1)
	assert.Equal(t, "abc", measures[0].Serialno)
	require.NotNil(t, measures[0].PM02)
	assert.Equal(t, 12.5, *measures[0].PM02)
	require.NotNil(t, measures[0].LocationID)
	assert.Equal(t, 42, *measures[0].LocationID)
}

func TestLocationPastMeasures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations/42/measures/past", r.URL.Path)
		assert.Equal(t, "2025-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2025-01-02", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"serialno":"abc","timestamp":"2025-01-01T12:00:00.000Z"},{"serialno":"abc","timestamp":"2025-01-01T13:00:00.000Z"}]`))
	})

	measures, err := client.LocationPastMeasures(context.Background(), 42, MeasuresQuery{From: "2025-01-01", To: "2025-01-02"})
	require.NoError(t, err)
	assert.Len(t, measures, 2)
}

func TestParseMeasures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
		wantErr  bool
	}{
		{"bare array", `[{"serialno":"a"},{"serialno":"b"}]`, 2, false},
		{"envelope", `{"json":[{"serialno":"a"}]}`, 1, false},
		{"envelope null", `{"json":null}`, 0, false},
		{"envelope object", `{"json":{"serialno":"a"}}`, 0, false},
		{"other object", `{"status":"ok"}`, 0, false},
		{"scalar", `"hello"`, 0, false},
		{"empty", ``, 0, false},
		{"whitespace array", "  \n[]", 0, false},
		{"broken array", `[{"serialno":`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			measures, err := ParseMeasures([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, measures)
			assert.Len(t, measures, tt.expected)
		})
	}
}
