package alpha

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

// importNamespace seeds the deterministic session ids of imported
// sessions, so importing the same export twice replaces rather than
// duplicates.
var importNamespace = uuid.MustParse("0d7c3f7e-55a1-4b5e-9a63-2b8e8f1c4a10")

// SessionID returns the stable id of an imported session.
func SessionID(clientID string, s Session) string {
	key := clientID + "|" + s.Date.Format("2006-01-02T15:04") + "|" + s.Name
	return uuid.NewSHA1(importNamespace, []byte(key)).String()
}

// ToLogRows converts a session into workout_logs rows: one per exercise
// with working sets, then the summary row. Warmups are left out so they do
// not count towards PRs or volume.
func ToLogRows(clientID string, s Session) []models.LogRow {
	id := SessionID(clientID, s)
	date := s.Date.Format("02/01/2006")
	clock := s.Date.Format("15:04")

	var (
		rows    []models.LogRow
		entries []models.WorkoutLogEntry
	)
	for _, ex := range s.Exercises {
		working := ex.WorkingSets()
		if len(working) == 0 {
			continue
		}
		sets := make([]models.ExerciseSet, len(working))
		for i, w := range working {
			sets[i] = models.ExerciseSet{
				Serie:           i + 1,
				Kg:              models.NumText(strconv.FormatFloat(w.WeightKg, 'f', -1, 64)),
				Reps:            models.NumText(strconv.Itoa(w.Reps)),
				CompletionState: models.CompletionGood,
			}
		}
		rows = append(rows, models.LogRow{
			ClientID:        clientID,
			Date:            date,
			Time:            clock,
			RawDate:         s.Date,
			ExerciseName:    ex.Name,
			SetsPerformed:   sets,
			CompletionState: models.CompletionGood,
			SessionID:       id,
		})
		entries = append(entries, models.WorkoutLogEntry{
			ExerciseName:    ex.Name,
			SetsPerformed:   sets,
			CompletionState: models.CompletionGood,
			Date:            date,
			Time:            clock,
			RawDate:         s.Date.UTC().Format(time.RFC3339Nano),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	volume := session.TotalVolume(entries)
	rows = append(rows, models.LogRow{
		ClientID:           clientID,
		Date:               date,
		Time:               clock,
		RawDate:            s.Date,
		ExerciseName:       models.SummaryExerciseName,
		CompletionState:    "completed",
		SessionID:          id,
		NameWorkout:        s.Name,
		SessionLogs:        entries,
		TotalTimeSession:   formatDuration(s.Duration),
		TotalVolumeSession: &volume,
	})
	return rows
}

// formatDuration turns the export's "1:02 hr" or "45 min" into "HH:MM".
// Unrecognised text is kept as is.
func formatDuration(d string) string {
	d = strings.TrimSpace(d)
	fields := strings.Fields(d)
	if len(fields) != 2 {
		return d
	}
	switch fields[1] {
	case "hr", "h":
		h, m, ok := strings.Cut(fields[0], ":")
		if !ok {
			h, m = fields[0], "0"
		}
		hours, err1 := strconv.Atoi(h)
		mins, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil {
			return d
		}
		return fmt.Sprintf("%02d:%02d", hours, mins)
	case "min":
		mins, err := strconv.Atoi(fields[0])
		if err != nil {
			return d
		}
		return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
	}
	return d
}
