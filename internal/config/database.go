package config

import (
	"os"
	"path/filepath"
)

const (
	DB_NAME = "database.sqlite"
)

func DBPath() string {
	if dbPath := os.Getenv("AIRGRADIENT_DASHBOARD_DB_PATH"); dbPath != "" {
		return dbPath
	}

	return filepath.Join(DataDir(), DB_NAME)
}
