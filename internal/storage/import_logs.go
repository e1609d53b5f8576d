package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ImportLog records the outcome of one history import.
type ImportLog struct {
	ID               int64            `json:"id"`
	ClientID         string           `json:"client_id"`
	CreatedAt        time.Time        `json:"created_at"`
	Source           string           `json:"source"`
	Status           string           `json:"status"`
	SessionsReceived int              `json:"sessions_received"`
	RowsInserted     int64            `json:"rows_inserted"`
	DurationMs       *int             `json:"duration_ms"`
	ErrorMessage     *string          `json:"error_message"`
	Metadata         *json.RawMessage `json:"metadata"`
}

// InsertImportLog creates a new import log entry and returns its ID.
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO import_logs (client_id, source, status, sessions_received, rows_inserted,
		 duration_ms, error_message, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id`,
		log.ClientID, log.Source, log.Status, log.SessionsReceived, log.RowsInserted,
		log.DurationMs, log.ErrorMessage, log.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return id, nil
}

// UpdateImportLog moves an entry from "running" to its final status.
func (db *DB) UpdateImportLog(ctx context.Context, id int64, log ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE import_logs SET
		 status = $2, sessions_received = $3, rows_inserted = $4,
		 duration_ms = $5, error_message = $6, metadata = $7
		 WHERE id = $1`,
		id, log.Status, log.SessionsReceived, log.RowsInserted,
		log.DurationMs, log.ErrorMessage, log.Metadata,
	)
	if err != nil {
		return fmt.Errorf("updating import log %d: %w", id, err)
	}
	return nil
}

// QueryImportLogs returns a client's most recent imports.
func (db *DB) QueryImportLogs(ctx context.Context, clientID string, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, client_id, created_at, source, status, sessions_received, rows_inserted,
		 duration_ms, error_message, metadata
		 FROM import_logs
		 WHERE client_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	var result []ImportLog
	for rows.Next() {
		var l ImportLog
		if err := rows.Scan(&l.ID, &l.ClientID, &l.CreatedAt, &l.Source, &l.Status,
			&l.SessionsReceived, &l.RowsInserted, &l.DurationMs, &l.ErrorMessage, &l.Metadata); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
