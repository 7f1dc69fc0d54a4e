package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/monorkin/airgradient-dashboard/internal/version"
)

const (
	DEFAULT_BASE_URL = "https://api.airgradient.com/public/api/v1"
	REQUEST_TIMEOUT  = 30 * time.Second
)

var USER_AGENT = "AirGradient Dashboard/" + version.GetVersion()

// Query holds query string parameters. Nil values are omitted.
type Query map[string]any

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient builds a client for the AirGradient public API. An empty
// baseURL falls back to DEFAULT_BASE_URL. The token is not validated here;
// every call fails with ErrorCodeInternalError while it is empty.
func NewClient(baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DEFAULT_BASE_URL
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: REQUEST_TIMEOUT,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (client *Client) log(level slog.Level, msg string, args ...any) {
	if client.logger != nil {
		client.logger.Log(context.Background(), level, msg, args...)
	}
}

func (client *Client) BaseURL() string {
	return client.baseURL
}

func (client *Client) Get(ctx context.Context, path string, query Query, out any) error {
	body, err := client.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}

	return decodeInto(body, out)
}

func (client *Client) Post(ctx context.Context, path string, payload any, out any) error {
	body, err := client.request(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}

	return decodeInto(body, out)
}

func (client *Client) Put(ctx context.Context, path string, payload any, out any) error {
	body, err := client.request(ctx, http.MethodPut, path, nil, payload)
	if err != nil {
		return err
	}

	return decodeInto(body, out)
}

func (client *Client) Delete(ctx context.Context, path string, out any) error {
	body, err := client.request(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}

	return decodeInto(body, out)
}

// Ping checks that the API is reachable with the configured token.
func (client *Client) Ping(ctx context.Context) (map[string]any, error) {
	status := map[string]any{}
	if err := client.Get(ctx, "/ping", nil, &status); err != nil {
		return nil, err
	}

	return status, nil
}

// CurrentMeasures returns the latest measure of every location visible to
// the token.
func (client *Client) CurrentMeasures(ctx context.Context) ([]Measure, error) {
	return client.getMeasures(ctx, "/locations/measures/current", nil)
}

func (client *Client) LocationCurrentMeasures(ctx context.Context, locationID int) ([]Measure, error) {
	return client.getMeasures(ctx, fmt.Sprintf("/locations/%d/measures/current", locationID), nil)
}

// LocationRawMeasures returns the raw measures of a location, optionally
// bounded by an ISO-8601 date window.
func (client *Client) LocationRawMeasures(ctx context.Context, locationID int, window MeasuresQuery) ([]Measure, error) {
	return client.getMeasures(ctx, fmt.Sprintf("/locations/%d/measures/raw", locationID), window.values())
}

func (client *Client) LocationPastMeasures(ctx context.Context, locationID int, window MeasuresQuery) ([]Measure, error) {
	return client.getMeasures(ctx, fmt.Sprintf("/locations/%d/measures/past", locationID), window.values())
}

func (client *Client) getMeasures(ctx context.Context, path string, query Query) ([]Measure, error) {
	body, err := client.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	measures, err := ParseMeasures(body)
	if err != nil {
		return nil, newNetworkError(err)
	}

	client.log(slog.LevelDebug, "Measures fetched", "path", path, "count", len(measures))

	return measures, nil
}

// request performs the call and returns the JSON body, or nil when the
// response is not JSON.
func (client *Client) request(ctx context.Context, method, path string, query Query, payload any) ([]byte, error) {
	if client.token == "" {
		return nil, &Error{
			Code:    ErrorCodeInternalError,
			Class:   ClassConfigError,
			Message: "AIR_GRADIENT_API_TOKEN environment variable is not set",
		}
	}

	endpoint, err := url.Parse(client.baseURL + path)
	if err != nil {
		return nil, newNetworkError(fmt.Errorf("failed to build url: %w", err))
	}

	values := endpoint.Query()
	values.Set("token", client.token)
	for key, value := range query {
		if key == "token" || value == nil {
			continue
		}
		values.Set(key, formatQueryValue(value))
	}
	endpoint.RawQuery = values.Encode()

	var reader io.Reader
	if payload != nil && method != http.MethodGet {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, newNetworkError(fmt.Errorf("failed to marshal request body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, newNetworkError(fmt.Errorf("failed to create request: %w", err))
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", USER_AGENT)

	client.log(slog.LevelDebug, "Calling Air Gradient API", "method", method, "path", path)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, newNetworkError(err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(response.Body)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		errorText := "Unknown error"
		if readErr == nil {
			errorText = string(body)
		}
		client.log(slog.LevelWarn, "Air Gradient API returned an error", "method", method, "path", path, "status", response.StatusCode)
		return nil, newStatusError(response.StatusCode, errorText)
	}

	if readErr != nil {
		return nil, newNetworkError(fmt.Errorf("failed to read response body: %w", readErr))
	}

	if !strings.Contains(response.Header.Get("Content-Type"), "application/json") {
		return nil, nil
	}

	return body, nil
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return newNetworkError(fmt.Errorf("failed to unmarshal response: %w", err))
	}

	return nil
}

func formatQueryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
