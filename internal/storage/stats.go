package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// DataStats holds aggregate statistics about a client's logged training.
type DataStats struct {
	TotalSessions int64          `json:"total_sessions"`
	TotalEntries  int64          `json:"total_entries"`
	TotalSets     int64          `json:"total_sets"`
	TotalVolume   float64        `json:"total_volume"`
	EarliestData  *time.Time     `json:"earliest_data"`
	LatestData    *time.Time     `json:"latest_data"`
	TopExercises  []ExerciseStat `json:"top_exercises"`
}

// ExerciseStat counts how often an exercise was logged.
type ExerciseStat struct {
	Name     string `json:"name"`
	Sessions int64  `json:"sessions"`
	Sets     int64  `json:"sets"`
}

// GetDataStats returns aggregate statistics for a client's workout logs.
func (db *DB) GetDataStats(ctx context.Context, clientID string) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_volume_session), 0)
		 FROM workout_logs WHERE client_id = $1 AND exercise_name = $2`,
		clientID, models.SummaryExerciseName,
	).Scan(&stats.TotalSessions, &stats.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(jsonb_array_length(COALESCE(sets_performed, '[]'::jsonb))), 0),
		 MIN(raw_date), MAX(raw_date)
		 FROM workout_logs WHERE client_id = $1 AND exercise_name <> $2`,
		clientID, models.SummaryExerciseName,
	).Scan(&stats.TotalEntries, &stats.TotalSets, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_name, COUNT(DISTINCT session_id),
		 COALESCE(SUM(jsonb_array_length(COALESCE(sets_performed, '[]'::jsonb))), 0)
		 FROM workout_logs
		 WHERE client_id = $1 AND exercise_name NOT IN ($2, $3)
		 GROUP BY exercise_name
		 ORDER BY COUNT(DISTINCT session_id) DESC, exercise_name
		 LIMIT 10`,
		clientID, models.SummaryExerciseName, models.ExtraActivityName)
	if err != nil {
		return nil, fmt.Errorf("querying exercise stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.Name, &s.Sessions, &s.Sets); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.TopExercises = append(stats.TopExercises, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
