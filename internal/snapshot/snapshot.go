// Package snapshot is the local durable store for in-progress sessions: one
// JSON blob per user in a SQLite file, so a workout survives a restart.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store keeps one session snapshot per user.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session_snapshots (
		user_id    TEXT PRIMARY KEY,
		state      BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save replaces the user's snapshot.
func (s *Store) Save(ctx context.Context, userID string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (user_id, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		userID, blob,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", userID, err)
	}
	return nil
}

// Load returns the user's snapshot, or nil when there is none.
func (s *Store) Load(ctx context.Context, userID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM session_snapshots WHERE user_id = ?`, userID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", userID, err)
	}
	return blob, nil
}

// Delete removes the user's snapshot. Deleting a missing snapshot is not an
// error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting snapshot for %s: %w", userID, err)
	}
	return nil
}

// Users lists users with a stored snapshot.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM session_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
