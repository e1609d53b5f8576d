package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NumText is a value the plan document and the log store carry either as a
// JSON string or as a JSON number ("12", 12, "60s"). The original text is
// kept so user input survives a round trip unchanged.
type NumText string

// UnmarshalJSON accepts strings, numbers and null.
func (n *NumText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumText(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("numtext: expected string or number, got %s", data)
	}
	*n = NumText(f.String())
	return nil
}

// String returns the raw text.
func (n NumText) String() string { return string(n) }

// Int returns the leading integer of the text, or 0 when there is none.
func (n NumText) Int() int {
	s := strings.TrimSpace(string(n))
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

// SubExercise is one member of a superset, circuit or EMOM block.
type SubExercise struct {
	Name     string  `json:"name"`
	Reps     NumText `json:"reps"`
	Sets     int     `json:"sets,omitempty"`
	Rest     string  `json:"rest,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
	VideoURL string  `json:"videoUrl,omitempty"`
	Notes    string  `json:"notes,omitempty"`
	SubOrder int     `json:"subOrder"`
}

// CircuitDetails configures a circuit block in the plan document.
type CircuitDetails struct {
	TotalRounds                 NumText `json:"totalRounds"`
	RestBetweenExercisesSeconds NumText `json:"restBetweenExercisesSeconds"`
	RestBetweenRoundsSeconds    NumText `json:"restBetweenRoundsSeconds"`
}

// EMOMDetails configures an EMOM block in the plan document.
type EMOMDetails struct {
	TotalIntervals NumText `json:"totalIntervals"`
}

// Exercise is a prescribed unit of work within a day. Sets == 0 means the
// plan does not prescribe a set count.
type Exercise struct {
	Order          int             `json:"order"`
	Name           string          `json:"name"`
	Reps           NumText         `json:"reps"`
	Sets           int             `json:"sets,omitempty"`
	Rest           string          `json:"rest,omitempty"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	VideoURL       string          `json:"videoUrl,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	IsSuperset     bool            `json:"isSuperset,omitempty"`
	IsEMOM         bool            `json:"isEMOM,omitempty"`
	CircuitDetails *CircuitDetails `json:"circuitDetails,omitempty"`
	EMOMDetails    *EMOMDetails    `json:"emomDetails,omitempty"`
	Items          []SubExercise   `json:"items,omitempty"`
}

// WorkoutDay is one planned workout.
type WorkoutDay struct {
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// WorkoutData maps day keys to days. Key order follows the source document,
// which decides the default day after login.
type WorkoutData struct {
	Keys []string
	Days map[string]WorkoutDay
}

// Day returns the day for key.
func (w *WorkoutData) Day(key string) (WorkoutDay, bool) {
	if w == nil {
		return WorkoutDay{}, false
	}
	d, ok := w.Days[key]
	return d, ok
}

// FirstKey returns the first day key in document order, or "".
func (w *WorkoutData) FirstKey() string {
	if w == nil || len(w.Keys) == 0 {
		return ""
	}
	return w.Keys[0]
}

// UnmarshalJSON decodes the day object while recording key order.
func (w *WorkoutData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("workout data: expected object, got %v", tok)
	}

	w.Keys = nil
	w.Days = make(map[string]WorkoutDay)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("workout data: expected key, got %v", tok)
		}
		var day WorkoutDay
		if err := dec.Decode(&day); err != nil {
			return fmt.Errorf("workout data: day %q: %w", key, err)
		}
		if _, dup := w.Days[key]; !dup {
			w.Keys = append(w.Keys, key)
		}
		w.Days[key] = day
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes days in document order.
func (w WorkoutData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range w.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		db, err := json.Marshal(w.Days[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(db)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ViewMode is the navigation state of a workspace.
type ViewMode string

const (
	ViewHome   ViewMode = "home"
	ViewList   ViewMode = "list"
	ViewGuided ViewMode = "guided"
)

// CircuitType distinguishes the two timed group formats.
type CircuitType string

const (
	CircuitRounds CircuitType = "circuit"
	CircuitEMOM   CircuitType = "emom"
)

// CircuitConfig is the integer-second configuration derived for a timed
// group. Zero values mean "not configured".
type CircuitConfig struct {
	Type               CircuitType `json:"type"`
	TotalRounds        int         `json:"total_rounds,omitempty"`
	RestBetweenEx      int         `json:"rest_between_exercises,omitempty"`
	RestBetweenRounds  int         `json:"rest_between_rounds,omitempty"`
	Intervals          int         `json:"intervals,omitempty"`
	SecondsPerInterval int         `json:"seconds_per_interval,omitempty"`
}
