// Package scoring holds the pure rules used while logging sets: estimated
// one-rep max, per-set rep targets, historical bests and duration parsing.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

// Estimate1RM returns the Epley estimate of a one-rep max.
// A single rep returns the weight itself.
func Estimate1RM(weight, reps float64) float64 {
	if reps == 1 {
		return weight
	}
	if weight == 0 || reps == 0 {
		return 0
	}
	return math.Round(weight * (1 + reps/30))
}

// TargetRepsForSet resolves the rep target for a 1-based set number.
// A comma-separated target lists one target per set; past the end of the list
// the last target repeats.
func TargetRepsForSet(target string, setNumber int) string {
	if !strings.Contains(target, ",") {
		return strings.TrimSpace(target)
	}
	parts := strings.Split(target, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	idx := setNumber - 1
	if idx >= 0 && idx < len(parts) {
		return parts[idx]
	}
	return parts[len(parts)-1]
}

// MaxHistorical1RM scans prior sessions for the best estimated 1RM of an
// exercise. Summary rows and non-numeric sets are skipped.
func MaxHistorical1RM(exerciseName string, history []models.LogRow) float64 {
	var best float64
	for _, row := range history {
		if row.IsSummary() || row.ExerciseName != exerciseName {
			continue
		}
		for _, set := range row.SetsPerformed {
			w, ok := ParseNumber(set.Kg.String())
			if !ok {
				continue
			}
			r, ok := ParseNumber(set.Reps.String())
			if !ok {
				continue
			}
			if rm := Estimate1RM(w, r); rm > best {
				best = rm
			}
		}
	}
	return best
}

// IsPersonalRecord reports whether a new set beats the historical best.
// With no history (max == 0) nothing counts as a record, nor does an
// unloaded set.
func IsPersonalRecord(weight, reps, historicalMax float64) bool {
	return Estimate1RM(weight, reps) > historicalMax && historicalMax > 0 && weight > 0
}

var (
	secondsRe = regexp.MustCompile(`^(\d+)\s*s?$`)
	clockRe   = regexp.MustCompile(`^(\d+):(\d+)$`)
)

// ParseDuration converts a duration value to seconds. Numbers pass through;
// strings may be "45", "45s" or "1:30". Anything else yields 0.
func ParseDuration(v any) int {
	switch d := v.(type) {
	case int:
		return d
	case int64:
		return int(d)
	case float64:
		return int(d)
	case models.NumText:
		return ParseDuration(string(d))
	case string:
		s := strings.ToLower(strings.TrimSpace(d))
		if m := secondsRe.FindStringSubmatch(s); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
		if m := clockRe.FindStringSubmatch(s); m != nil {
			mins, _ := strconv.Atoi(m[1])
			secs, _ := strconv.Atoi(m[2])
			return mins*60 + secs
		}
	}
	return 0
}

// RestSeconds reads a plan rest value. Recognised durations go through
// ParseDuration; other text falls back to its digits ("90 seg" -> 90).
func RestSeconds(rest string) int {
	if n := ParseDuration(rest); n > 0 {
		return n
	}
	digits := CleanReps(rest)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// CleanReps strips everything but digits from a rep target ("10-12" -> "1012",
// "8 reps" -> "8"). It is used to prefill the reps field.
func CleanReps(target string) string {
	var b strings.Builder
	for _, r := range target {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseNumber parses the leading decimal number of s, ignoring trailing
// text ("62.5kg" -> 62.5). ok is false when s has no leading number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInteger parses the leading integer of s ("8.5" -> 8).
func ParseInteger(s string) (int, bool) {
	n := models.NumText(s).Int()
	if n == 0 {
		if _, ok := ParseNumber(s); !ok {
			return 0, false
		}
	}
	return n, true
}

// Performance is a weight and rep pair from a prior session.
type Performance struct {
	Kg   models.NumText `json:"kg"`
	Reps models.NumText `json:"reps"`
}

// LastPerformance returns what was lifted on the same set number the last
// time the exercise was logged.
func LastPerformance(exerciseName string, setNumber int, history []models.LogRow) (Performance, bool) {
	var rows []models.LogRow
	for _, row := range history {
		if row.ExerciseName == exerciseName && !row.IsSummary() {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return Performance{}, false
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RawDate.After(rows[j].RawDate)
	})
	for _, set := range rows[0].SetsPerformed {
		if set.Serie == setNumber {
			return Performance{Kg: set.Kg, Reps: set.Reps}, true
		}
	}
	return Performance{}, false
}
