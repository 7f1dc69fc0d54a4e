package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	LOCAL_SERVICE         = "_airgradient._tcp"
	LOCAL_DOMAIN          = "local."
	LOCAL_HOSTNAME_PREFIX = "airgradient_"
	DISCOVERY_TIMEOUT     = 5 * time.Second
	LOCAL_REQUEST_TIMEOUT = 5 * time.Second
)

// LocalSensor is a monitor found on the local network through mDNS.
type LocalSensor struct {
	Serialno        string
	Hostname        string
	IP              string
	Port            int
	Model           string
	FirmwareVersion string
	Current         *Measure
}

func (sensor LocalSensor) baseURL() string {
	if sensor.Port == 0 || sensor.Port == 80 {
		return fmt.Sprintf("http://%s", sensor.IP)
	}
	return fmt.Sprintf("http://%s:%d", sensor.IP, sensor.Port)
}

// DiscoverLocalSensors browses the local network for AirGradient monitors
// and fetches the current reading of each one it finds. Sensors whose
// reading cannot be fetched are still returned, with Current left nil.
func (client *Client) DiscoverLocalSensors(ctx context.Context, timeout time.Duration) ([]LocalSensor, error) {
	if timeout <= 0 {
		timeout = DISCOVERY_TIMEOUT
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client.log(slog.LevelInfo, "Starting local sensor discovery", "timeout", timeout)

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		if err := resolver.Browse(browseCtx, LOCAL_SERVICE, LOCAL_DOMAIN, entries); err != nil {
			client.log(slog.LevelError, "Failed to browse for sensors", "error", err)
		}
	}()

	seen := map[string]bool{}
	var sensors []*LocalSensor

loop:
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				break loop
			}
			sensor := sensorFromEntry(entry)
			if sensor == nil || seen[sensor.Hostname] {
				continue
			}
			seen[sensor.Hostname] = true
			sensors = append(sensors, sensor)
		case <-browseCtx.Done():
			break loop
		}
	}

	var wg sync.WaitGroup
	for _, sensor := range sensors {
		wg.Add(1)
		go func(sensor *LocalSensor) {
			defer wg.Done()

			measure, err := client.FetchLocalMeasure(ctx, sensor.baseURL())
			if err != nil {
				client.log(slog.LevelWarn, "Failed to fetch local measure", "ip", sensor.IP, "error", err)
				return
			}

			sensor.Current = measure
			if sensor.Serialno == "" {
				sensor.Serialno = measure.Serialno
			}
			if measure.Model != "" {
				sensor.Model = measure.Model
			}
			if measure.FirmwareVersion != "" {
				sensor.FirmwareVersion = measure.FirmwareVersion
			}
		}(sensor)
	}
	wg.Wait()

	result := make([]LocalSensor, 0, len(sensors))
	for _, sensor := range sensors {
		client.log(slog.LevelDebug, "Sensor discovered", "ip", sensor.IP, "hostname", sensor.Hostname, "serialno", sensor.Serialno)
		result = append(result, *sensor)
	}

	return result, nil
}

// FetchLocalMeasure reads /measures/current from a monitor's local server.
func (client *Client) FetchLocalMeasure(ctx context.Context, baseURL string) (*Measure, error) {
	requestCtx, cancel := context.WithTimeout(ctx, LOCAL_REQUEST_TIMEOUT)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/measures/current", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set("User-Agent", USER_AGENT)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch local measure: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch local measure: %s", response.Status)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var measure Measure
	if err := json.Unmarshal(body, &measure); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &measure, nil
}

func sensorFromEntry(entry *zeroconf.ServiceEntry) *LocalSensor {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return nil
	}

	hostname := strings.TrimSuffix(entry.HostName, ".")
	sensor := &LocalSensor{
		Hostname: hostname,
		IP:       entry.AddrIPv4[0].String(),
		Port:     entry.Port,
	}

	for _, record := range entry.Text {
		key, value, found := strings.Cut(record, "=")
		if !found {
			continue
		}
		switch strings.ToLower(key) {
		case "serialno":
			sensor.Serialno = value
		case "model":
			sensor.Model = value
		case "fw_ver":
			sensor.FirmwareVersion = value
		}
	}

	if sensor.Serialno == "" {
		sensor.Serialno = serialFromHostname(hostname)
	}

	return sensor
}

// serialFromHostname extracts the serial from names like
// "airgradient_744dbdc919e4.local".
func serialFromHostname(hostname string) string {
	name := strings.TrimSuffix(strings.ToLower(hostname), ".local")
	if !strings.HasPrefix(name, LOCAL_HOSTNAME_PREFIX) {
		return ""
	}

	return strings.TrimPrefix(name, LOCAL_HOSTNAME_PREFIX)
}
