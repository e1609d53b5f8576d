// Package history derives read-only views from a client's workout_logs rows:
// the session list, a session's detail, the exercise index and per-exercise
// progress.
package history

import (
	"sort"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/scoring"
)

// DefaultSessionName names sessions that have no summary row.
const DefaultSessionName = "Workout"

// Session groups the rows written for one finished workout.
type Session struct {
	ID          string          `json:"session_id"`
	Name        string          `json:"name"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	RawDate     time.Time       `json:"raw_date"`
	Exercises   []models.LogRow `json:"exercises"`
	HasPR       bool            `json:"has_pr"`
	TotalTime   string          `json:"total_time,omitempty"`
	TotalVolume *float64        `json:"total_volume,omitempty"`
}

// Sessions groups rows by session id, newest first. The summary row names
// the session and carries its totals; a session's date is taken from
// whichever of its rows was seen first.
func Sessions(rows []models.LogRow) []Session {
	byID := make(map[string]*Session)
	var order []string

	get := func(r models.LogRow) *Session {
		s, ok := byID[r.SessionID]
		if !ok {
			s = &Session{
				ID:      r.SessionID,
				Name:    r.NameWorkout,
				Date:    r.Date,
				Time:    r.Time,
				RawDate: r.RawDate,
			}
			byID[r.SessionID] = s
			order = append(order, r.SessionID)
		}
		return s
	}

	for _, r := range rows {
		s := get(r)
		if r.IsSummary() {
			s.Name = r.NameWorkout
			s.TotalTime = r.TotalTimeSession
			s.TotalVolume = r.TotalVolumeSession
			continue
		}
		s.Exercises = append(s.Exercises, r)
		if r.PersonalRecord != "" {
			s.HasPR = true
		}
	}

	out := make([]Session, 0, len(order))
	for _, id := range order {
		s := byID[id]
		if s.Name == "" {
			s.Name = DefaultSessionName
		}
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RawDate.After(out[j].RawDate)
	})
	return out
}

// Detail is one session's exercise rows and its summary row.
type Detail struct {
	SessionID string          `json:"session_id"`
	Exercises []models.LogRow `json:"exercises"`
	Summary   *models.LogRow  `json:"summary,omitempty"`
}

// SessionDetail returns the rows of one session. ok is false when the id
// matches nothing.
func SessionDetail(rows []models.LogRow, sessionID string) (Detail, bool) {
	d := Detail{SessionID: sessionID}
	found := false
	for _, r := range rows {
		if r.SessionID != sessionID {
			continue
		}
		found = true
		if r.IsSummary() {
			if d.Summary == nil {
				row := r
				d.Summary = &row
			}
			continue
		}
		d.Exercises = append(d.Exercises, r)
	}
	return d, found
}

// Exercises lists the distinct exercise names, sorted, leaving out summary
// and extra-activity rows. A non-empty filter keeps names containing it,
// ignoring case.
func Exercises(rows []models.LogRow, filter string) []string {
	seen := make(map[string]bool)
	var names []string
	needle := strings.ToLower(filter)
	for _, r := range rows {
		n := r.ExerciseName
		if n == models.SummaryExerciseName || n == models.ExtraActivityName || seen[n] {
			continue
		}
		seen[n] = true
		if needle != "" && !strings.Contains(strings.ToLower(n), needle) {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Point is one logged occurrence of an exercise.
type Point struct {
	SessionID      string               `json:"session_id"`
	Date           string               `json:"date"`
	RawDate        time.Time            `json:"raw_date"`
	Best1RM        float64              `json:"best_1rm"`
	MaxWeight      float64              `json:"max_weight"`
	PersonalRecord string               `json:"personal_record,omitempty"`
	Sets           []models.ExerciseSet `json:"sets"`
}

// Progress returns an exercise's occurrences oldest first, each with its
// best estimated 1RM and heaviest weight.
func Progress(rows []models.LogRow, exerciseName string) []Point {
	var points []Point
	for _, r := range rows {
		if r.ExerciseName != exerciseName || r.IsSummary() {
			continue
		}
		p := Point{
			SessionID:      r.SessionID,
			Date:           r.Date,
			RawDate:        r.RawDate,
			PersonalRecord: r.PersonalRecord,
			Sets:           r.SetsPerformed,
		}
		for _, s := range r.SetsPerformed {
			w, ok := scoring.ParseNumber(s.Kg.String())
			if !ok {
				continue
			}
			if w > p.MaxWeight {
				p.MaxWeight = w
			}
			reps, ok := scoring.ParseNumber(s.Reps.String())
			if !ok {
				continue
			}
			if rm := scoring.Estimate1RM(w, reps); rm > p.Best1RM {
				p.Best1RM = rm
			}
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].RawDate.Before(points[j].RawDate)
	})
	return points
}

// PersonalBest is the best estimated 1RM on record for an exercise.
type PersonalBest struct {
	Exercise  string    `json:"exercise"`
	Best1RM   float64   `json:"best_1rm"`
	MaxWeight float64   `json:"max_weight"`
	Date      string    `json:"date,omitempty"`
	RawDate   time.Time `json:"raw_date,omitempty"`
}

// Best returns the personal best for an exercise across all rows.
func Best(rows []models.LogRow, exerciseName string) PersonalBest {
	pb := PersonalBest{Exercise: exerciseName}
	for _, p := range Progress(rows, exerciseName) {
		if p.MaxWeight > pb.MaxWeight {
			pb.MaxWeight = p.MaxWeight
		}
		if p.Best1RM > pb.Best1RM {
			pb.Best1RM = p.Best1RM
			pb.Date = p.Date
			pb.RawDate = p.RawDate
		}
	}
	return pb
}
