package models

import (
	"time"
)

// SummaryExerciseName marks the synthetic per-session summary row in the
// workout_logs table.
const SummaryExerciseName = "Workout Session Summary"

// ExtraActivityName marks free-form activity rows that are not exercises.
const ExtraActivityName = "Extra Activity"

// Completion tags for a logged set.
const (
	CompletionGood    = "good"
	CompletionBad     = "bad"
	CompletionNeutral = "neutral"
)

// ExerciseSet is one logged attempt. Weight and reps keep the user's text.
type ExerciseSet struct {
	Serie           int     `json:"serie"`
	Kg              NumText `json:"kg"`
	Reps            NumText `json:"reps"`
	CompletionState string  `json:"completionState"`
}

// WorkoutLogEntry is one exercise's record within the active session.
// PersonalRecord holds the weight of the most recent PR set, if any.
type WorkoutLogEntry struct {
	ExerciseName    string        `json:"exerciseName"`
	SetsPerformed   []ExerciseSet `json:"setsPerformed"`
	CompletionState string        `json:"completionState"`
	PersonalRecord  string        `json:"personalRecord,omitempty"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	RawDate         string        `json:"rawDate"`
	DayKey          string        `json:"dayKey"`
}

// SessionSummary is handed to the log store when a workout is finished.
type SessionSummary struct {
	SessionID   string            `json:"session_id"`
	WorkoutName string            `json:"workout_name"`
	Logs        []WorkoutLogEntry `json:"logs"`
	TotalTime   string            `json:"total_time"`
	TotalVolume float64           `json:"total_volume"`
}

// LogRow is a row of the workout_logs table. Exercise rows carry
// SetsPerformed; summary rows carry SessionLogs and the session totals.
type LogRow struct {
	ID                 int64             `json:"id,omitempty"`
	ClientID           string            `json:"client_id"`
	Date               string            `json:"date"`
	Time               string            `json:"time"`
	RawDate            time.Time         `json:"raw_date"`
	DayKey             string            `json:"day_key,omitempty"`
	ExerciseName       string            `json:"exercise_name"`
	SetsPerformed      []ExerciseSet     `json:"sets_performed,omitempty"`
	CompletionState    string            `json:"completion_state"`
	PersonalRecord     string            `json:"personal_record,omitempty"`
	SessionID          string            `json:"session_id"`
	NameWorkout        string            `json:"name_workout,omitempty"`
	SessionLogs        []WorkoutLogEntry `json:"session_logs,omitempty"`
	TotalTimeSession   string            `json:"total_time_session,omitempty"`
	TotalVolumeSession *float64          `json:"total_volume_session,omitempty"`
}

// IsSummary reports whether the row is a session summary.
func (r LogRow) IsSummary() bool {
	return r.ExerciseName == SummaryExerciseName
}
