package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claude/liftlog/internal/models"
)

// now is swapped in tests.
var now = time.Now

// summaryCompletion is the completion_state of session summary rows.
const summaryCompletion = "completed"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const logColumns = `id, client_id, date, time, raw_date, COALESCE(day_key, ''), exercise_name,
	sets_performed, completion_state, COALESCE(personal_record, ''), session_id,
	COALESCE(name_workout, ''), session_logs, COALESCE(total_time_session, ''), total_volume_session`

// FetchLogs returns every workout_logs row for a client, newest first.
func (db *DB) FetchLogs(ctx context.Context, clientID string) ([]models.LogRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+logColumns+`
		 FROM workout_logs
		 WHERE client_id = $1
		 ORDER BY raw_date DESC, id DESC`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("querying workout logs: %w", err)
	}
	defer rows.Close()

	var result []models.LogRow
	for rows.Next() {
		r, err := scanLogRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanLogRow(row pgx.Row) (models.LogRow, error) {
	var (
		r           models.LogRow
		setsJSON    []byte
		sessionJSON []byte
	)
	if err := row.Scan(&r.ID, &r.ClientID, &r.Date, &r.Time, &r.RawDate, &r.DayKey, &r.ExerciseName,
		&setsJSON, &r.CompletionState, &r.PersonalRecord, &r.SessionID,
		&r.NameWorkout, &sessionJSON, &r.TotalTimeSession, &r.TotalVolumeSession); err != nil {
		return r, fmt.Errorf("scanning workout log: %w", err)
	}
	if len(setsJSON) > 0 {
		if err := json.Unmarshal(setsJSON, &r.SetsPerformed); err != nil {
			return r, fmt.Errorf("decoding sets of log %d: %w", r.ID, err)
		}
	}
	if len(sessionJSON) > 0 {
		if err := json.Unmarshal(sessionJSON, &r.SessionLogs); err != nil {
			return r, fmt.Errorf("decoding session logs of log %d: %w", r.ID, err)
		}
	}
	return r, nil
}

// SaveSession writes a finished session: one row per exercise entry and a
// summary row, in a single transaction. Rows already present for the same
// session are left alone, so a retried save does not duplicate.
func (db *DB) SaveSession(ctx context.Context, clientID string, summary models.SessionSummary) error {
	rows := SessionRows(clientID, summary, now())

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning session save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := insertLogRows(ctx, tx, rows); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing session %s: %w", summary.SessionID, err)
	}
	return nil
}

// ReplaceSessionRows swaps out every row of one session. Imports use it so
// re-importing the same export converges instead of piling up.
func (db *DB) ReplaceSessionRows(ctx context.Context, clientID, sessionID string, rows []models.LogRow) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning session replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM workout_logs WHERE client_id = $1 AND session_id = $2`,
		clientID, sessionID); err != nil {
		return 0, fmt.Errorf("clearing session %s: %w", sessionID, err)
	}
	n, err := insertLogRows(ctx, tx, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing session %s: %w", sessionID, err)
	}
	return n, nil
}

// SessionRows expands a session summary into table rows. The summary row
// is stamped with at; exercise rows keep their own timestamps.
func SessionRows(clientID string, summary models.SessionSummary, at time.Time) []models.LogRow {
	rows := make([]models.LogRow, 0, len(summary.Logs)+1)
	for _, e := range summary.Logs {
		raw, err := time.Parse(time.RFC3339Nano, e.RawDate)
		if err != nil {
			raw = at
		}
		rows = append(rows, models.LogRow{
			ClientID:        clientID,
			Date:            e.Date,
			Time:            e.Time,
			RawDate:         raw,
			DayKey:          e.DayKey,
			ExerciseName:    e.ExerciseName,
			SetsPerformed:   e.SetsPerformed,
			CompletionState: e.CompletionState,
			PersonalRecord:  e.PersonalRecord,
			SessionID:       summary.SessionID,
		})
	}

	volume := summary.TotalVolume
	rows = append(rows, models.LogRow{
		ClientID:           clientID,
		Date:               at.Format("02/01/2006"),
		Time:               at.Format("15:04"),
		RawDate:            at,
		ExerciseName:       models.SummaryExerciseName,
		CompletionState:    summaryCompletion,
		SessionID:          summary.SessionID,
		NameWorkout:        summary.WorkoutName,
		SessionLogs:        summary.Logs,
		TotalTimeSession:   summary.TotalTime,
		TotalVolumeSession: &volume,
	})
	return rows
}

func insertLogRows(ctx context.Context, db execer, rows []models.LogRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO workout_logs (client_id, date, time, raw_date, day_key, exercise_name,
		sets_performed, completion_state, personal_record, session_id, name_workout,
		session_logs, total_time_session, total_volume_session) VALUES `
	args := make([]any, 0, len(rows)*14)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		sets, err := jsonOrNil(r.SetsPerformed)
		if err != nil {
			return 0, fmt.Errorf("encoding sets for %s: %w", r.ExerciseName, err)
		}
		logs, err := jsonOrNil(r.SessionLogs)
		if err != nil {
			return 0, fmt.Errorf("encoding session logs: %w", err)
		}

		base := i * 14
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
			base+8, base+9, base+10, base+11, base+12, base+13, base+14,
		))
		args = append(args, r.ClientID, r.Date, r.Time, r.RawDate, nullString(r.DayKey), r.ExerciseName,
			sets, r.CompletionState, nullString(r.PersonalRecord), r.SessionID, nullString(r.NameWorkout),
			logs, nullString(r.TotalTimeSession), r.TotalVolumeSession)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT (client_id, session_id, exercise_name) DO NOTHING"

	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting workout logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// jsonOrNil encodes v for a JSONB column, mapping empty slices to NULL.
func jsonOrNil[T any](v []T) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
