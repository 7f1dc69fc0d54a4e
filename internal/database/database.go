package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	config "github.com/monorkin/airgradient-dashboard/internal/config"
)

const (
	DRIVER_SQLITE   = "sqlite"
	DRIVER_POSTGRES = "postgres"
)

var (
	DB      *gorm.DB
	once    sync.Once
	initErr error
)

func Init(settings config.DatabaseSettings) error {
	once.Do(func() {
		DB, initErr = SetupDatabase(settings)
	})
	return initErr
}

// SetupDatabase opens the configured database and applies pending
// migrations.
func SetupDatabase(settings config.DatabaseSettings) (*gorm.DB, error) {
	db, err := Open(settings)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func Open(settings config.DatabaseSettings) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}

	switch settings.Driver {
	case DRIVER_POSTGRES:
		if settings.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}

		db, err := gorm.Open(postgres.Open(settings.DSN), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		return db, nil
	case DRIVER_SQLITE, "":
		dbPath := settings.DSN
		if dbPath == "" {
			dbPath = config.DBPath()
		}

		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			slog.Warn("Failed to enable foreign keys", "error", err)
		}

		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", settings.Driver)
	}
}
