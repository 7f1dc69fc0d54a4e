package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_API_BASE_URL    = "https://api.airgradient.com/public/api/v1"
	DEFAULT_LISTEN_ADDRESS  = ":8080"
	DEFAULT_REQUEST_TIMEOUT = 30 * time.Second
)

type DatabaseSettings struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `yaml:"dsn"`
}

type Settings struct {
	APIBaseURL     string           `yaml:"api_base_url"`
	APIToken       string           `yaml:"api_token,omitempty"`
	ListenAddress  string           `yaml:"listen_address"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	Database       DatabaseSettings `yaml:"database"`
}

func DefaultSettings() *Settings {
	return &Settings{
		APIBaseURL:     DEFAULT_API_BASE_URL,
		ListenAddress:  DEFAULT_LISTEN_ADDRESS,
		RequestTimeout: DEFAULT_REQUEST_TIMEOUT,
		Database: DatabaseSettings{
			Driver: "sqlite",
		},
	}
}

func DefaultSettingsPath() string {
	if path := os.Getenv("AIRGRADIENT_DASHBOARD_CONFIG"); path != "" {
		return path
	}

	return filepath.Join(ConfigDir(), "settings.yaml")
}

func LoadOrInitializeSettingsFromDefaultLocation() (bool, *Settings) {
	return LoadOrInitializeSettings(DefaultSettingsPath())
}

// LoadOrInitializeSettings reads the settings file at path, falling back
// to defaults when it is missing or unreadable. The returned bool is true
// when defaults were used. Environment overrides are applied either way.
func LoadOrInitializeSettings(path string) (bool, *Settings) {
	loadDotEnv()

	settings, err := LoadSettings(path)
	isNew := err != nil
	if isNew {
		settings = DefaultSettings()
	}

	settings.applyEnv()

	return isNew, settings
}

func LoadSettings(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes the settings without the API token, which belongs in the
// environment.
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	persisted := *s
	persisted.APIToken = ""

	data, err := yaml.Marshal(&persisted)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (s *Settings) applyEnv() {
	if token := os.Getenv("AIR_GRADIENT_API_TOKEN"); token != "" {
		s.APIToken = token
	}
	if baseURL := os.Getenv("AIR_GRADIENT_API_BASE_URL"); baseURL != "" {
		s.APIBaseURL = baseURL
	}
	if listen := os.Getenv("AIRGRADIENT_DASHBOARD_LISTEN"); listen != "" {
		s.ListenAddress = listen
	}
	if driver := os.Getenv("AIRGRADIENT_DASHBOARD_DB_DRIVER"); driver != "" {
		s.Database.Driver = driver
	}
	if dsn := os.Getenv("AIRGRADIENT_DASHBOARD_DB_DSN"); dsn != "" {
		s.Database.DSN = dsn
	}
	if timeout := os.Getenv("AIRGRADIENT_DASHBOARD_REQUEST_TIMEOUT"); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil {
			s.RequestTimeout = parsed
		}
	}
}

// loadDotEnv loads .env from the working directory and the config
// directory. Variables already set in the process win.
func loadDotEnv() {
	for _, path := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}
