package globals

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/monorkin/airgradient-dashboard/airgradient/api"
	"github.com/monorkin/airgradient-dashboard/internal/config"
	"github.com/monorkin/airgradient-dashboard/internal/database"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

var (
	// Global instances
	Settings *config.Settings
	Logger   *slog.Logger
	Client   *api.Client
	Store    *store.Store

	// Ensure initialization happens only once
	initOnce sync.Once
	initErr  error
)

// Initialize sets up global instances exactly once
func Initialize(verbose bool) error {
	initOnce.Do(func() {
		setupLogger(verbose)

		Logger.Debug("Initializing global instances")

		newSettings, settingsLoaded := config.LoadOrInitializeSettingsFromDefaultLocation()
		Settings = settingsLoaded
		if newSettings {
			Logger.Debug("Created new settings file")
			if err := Settings.Save(); err != nil {
				Logger.Error("Failed to save new settings", "error", err)
			}
		} else {
			Logger.Debug("Loaded existing settings")
		}

		if Settings.APIToken == "" {
			Logger.Warn("AIR_GRADIENT_API_TOKEN is not set, vendor API calls will fail")
		}

		Client = api.NewClient(Settings.APIBaseURL, Settings.APIToken,
			api.WithLogger(Logger),
			api.WithHTTPClient(&http.Client{Timeout: Settings.RequestTimeout}),
		)

		if err := database.Init(Settings.Database); err != nil {
			initErr = fmt.Errorf("failed to initialize database: %w", err)
			return
		}
		Store = store.New(database.DB)
		Logger.Debug("Database initialized", "driver", Settings.Database.Driver)

		Logger.Info("Global initialization completed", "verbose", verbose)
	})

	return initErr
}

// setupLogger configures the global logger
func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(Logger)
}

// MustBeInitialized panics if globals haven't been initialized
func MustBeInitialized() {
	if Settings == nil || Logger == nil || Store == nil {
		panic("globals not initialized - call globals.Initialize() first")
	}
}
