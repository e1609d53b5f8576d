package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// TrainingSummaryPeriod holds aggregated training load for one time period.
type TrainingSummaryPeriod struct {
	Period            string  `json:"period"`
	Sessions          int     `json:"sessions"`
	WorkingSets       int     `json:"working_sets"`
	TonnageKg         float64 `json:"tonnage_kg"`
	PersonalRecords   int     `json:"personal_records"`
	AvgSetsPerSession float64 `json:"avg_sets_per_session"`
}

// GetTrainingSummary returns sessions, sets, volume and PR counts per period,
// newest first. A zero start or end leaves that side unbounded.
func (db *DB) GetTrainingSummary(ctx context.Context, clientID string, start, end time.Time, bucket string) ([]TrainingSummaryPeriod, error) {
	if end.IsZero() {
		end = time.Now().AddDate(100, 0, 0)
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, raw_date)::date AS period,
		        COUNT(DISTINCT session_id)::int,
		        COALESCE(SUM(jsonb_array_length(COALESCE(sets_performed, '[]'::jsonb)))
		            FILTER (WHERE exercise_name <> $5), 0)::int,
		        COALESCE(SUM(total_volume_session) FILTER (WHERE exercise_name = $5), 0),
		        COUNT(*) FILTER (WHERE exercise_name <> $5 AND COALESCE(personal_record, '') <> '')::int
		 FROM workout_logs
		 WHERE client_id = $2 AND raw_date >= $3 AND raw_date < $4
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), clientID, start, end, models.SummaryExerciseName)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	result := []TrainingSummaryPeriod{}
	for rows.Next() {
		var periodTime time.Time
		var p TrainingSummaryPeriod
		if err := rows.Scan(&periodTime, &p.Sessions, &p.WorkingSets, &p.TonnageKg, &p.PersonalRecords); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		if p.Sessions > 0 {
			p.AvgSetsPerSession = float64(p.WorkingSets) / float64(p.Sessions)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 day", "day":
		return "day"
	case "1 week", "week":
		return "week"
	case "1 month", "month":
		return "month"
	default:
		return "week"
	}
}
