// Package storetest opens migrated throwaway databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monorkin/airgradient-dashboard/internal/config"
	"github.com/monorkin/airgradient-dashboard/internal/database"
	"github.com/monorkin/airgradient-dashboard/internal/store"
)

func New(t *testing.T) *store.Store {
	t.Helper()

	db, err := database.SetupDatabase(config.DatabaseSettings{
		Driver: database.DRIVER_SQLITE,
		DSN:    filepath.Join(t.TempDir(), "test.sqlite"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return store.New(db)
}
