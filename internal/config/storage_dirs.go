package config

import (
	"os"
	"path/filepath"
)

const (
	APP_DIR_NAME = "airgradient-dashboard"
)

// DataDir holds the sqlite database. It follows XDG_DATA_HOME, then
// ~/.local/share, then ~/.airgradient-dashboard.
func DataDir() string {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigDir holds settings.yaml and an optional .env file.
func ConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

func appDir(xdgVariable, homeRelative string) string {
	if base := os.Getenv(xdgVariable); base != "" {
		return filepath.Join(base, APP_DIR_NAME)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// No home directory (e.g. a bare container user)
		if currentDir, err := os.Getwd(); err == nil {
			return filepath.Join(currentDir, "."+APP_DIR_NAME)
		}
		return "."
	}

	if _, err := os.Stat(filepath.Join(homeDir, homeRelative)); err == nil {
		return filepath.Join(homeDir, homeRelative, APP_DIR_NAME)
	}

	return filepath.Join(homeDir, "."+APP_DIR_NAME)
}
