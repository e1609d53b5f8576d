// Package ingest holds what history importers have in common.
package ingest

// Result holds the outcome of an import.
type Result struct {
	SessionsReceived int   `json:"sessions_received"`
	SessionsImported int   `json:"sessions_imported"`
	SetsReceived     int   `json:"sets_received"`
	WarmupsSkipped   int   `json:"warmups_skipped"`
	RowsInserted     int64 `json:"rows_inserted"`

	Message string `json:"message,omitempty"`
}

// Import log statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)
