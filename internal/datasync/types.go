package datasync

import (
	"github.com/monorkin/airgradient-dashboard/airgradient/api"
)

// SyncOptions selects the location and optional ISO-8601 date window to
// sync.
type SyncOptions struct {
	LocationID int
	From       string
	To         string
}

// SyncError describes one record (or the whole run) that could not be
// persisted.
type SyncError struct {
	Message string       `json:"message"`
	Measure *api.Measure `json:"measure,omitempty"`
	Err     error        `json:"-"`
}

// SyncResult is the outcome of SyncLocationData. Duration is in
// milliseconds.
type SyncResult struct {
	Success      bool        `json:"success"`
	TotalFetched int         `json:"totalFetched"`
	TotalSaved   int         `json:"totalSaved"`
	TotalUpdated int         `json:"totalUpdated"`
	TotalSkipped int         `json:"totalSkipped"`
	Errors       []SyncError `json:"errors"`
	Duration     int64       `json:"duration"`
}

type SaveResult struct {
	Saved   int
	Updated int
	Skipped int
	Errors  []SyncError
}

// Progress is reported while a sync runs. Processed and Total are zero for
// phase messages that are not tied to a batch.
type Progress struct {
	Message   string `json:"message"`
	Processed int    `json:"processed,omitempty"`
	Total     int    `json:"total,omitempty"`
}

type ProgressFunc func(Progress)

// BatchProgressFunc is called after every persisted batch.
type BatchProgressFunc func(processed, total int)
