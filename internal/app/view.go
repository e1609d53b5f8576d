package app

import (
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/navigation"
	"github.com/claude/liftlog/internal/scoring"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/timer"
)

// DayInfo lists a plan day.
type DayInfo struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Exercises int    `json:"exercises"`
}

// SessionView is the in-progress session as shown to the user.
type SessionView struct {
	SessionID      string                   `json:"session_id"`
	StartTime      time.Time                `json:"start_time"`
	ElapsedSeconds int                      `json:"elapsed_seconds"`
	Elapsed        string                   `json:"elapsed"`
	Entries        []models.WorkoutLogEntry `json:"entries"`
	TotalVolume    float64                  `json:"total_volume"`
}

// Card is one exercise's logging panel.
type Card struct {
	Exercise        models.Exercise      `json:"exercise"`
	SetNumber       int                  `json:"set_number"`
	TargetReps      string               `json:"target_reps"`
	Complete        bool                 `json:"complete"`
	Sets            []models.ExerciseSet `json:"sets"`
	PersonalRecord  string               `json:"personal_record,omitempty"`
	LastPerformance *scoring.Performance `json:"last_performance,omitempty"`
	HistoricalMax   float64              `json:"historical_max_1rm"`
	Draft           Draft                `json:"draft"`
}

// KeypadView shows the focused field.
type KeypadView struct {
	Field string `json:"field"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// View is the full workspace state.
type View struct {
	User          string              `json:"user"`
	Days          []DayInfo           `json:"days"`
	DayKey        string              `json:"day_key"`
	DayName       string              `json:"day_name"`
	Mode          models.ViewMode     `json:"mode"`
	ResumePending bool                `json:"resume_pending"`
	Session       *SessionView        `json:"session,omitempty"`
	Slides        []navigation.Slide  `json:"slides"`
	Cursor        int                 `json:"cursor"`
	Cards         []Card              `json:"cards,omitempty"`
	Rest          timer.RestState     `json:"rest"`
	Circuit       *timer.CircuitState `json:"circuit,omitempty"`
	CircuitSlide  int                 `json:"circuit_slide,omitempty"`
	Keypad        *KeypadView         `json:"keypad,omitempty"`
	Record        *RecordNotice       `json:"record,omitempty"`
	HistoryRows   int                 `json:"history_rows"`
}

// Status returns the current workspace state. Exercise cards are filled in
// while a session is running. A pending record notice is consumed.
func (w *Workspace) Status() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		User:          w.userID,
		DayKey:        w.nav.DayKey(),
		Mode:          w.nav.View(),
		ResumePending: w.pending,
		Slides:        w.nav.Slides(),
		Cursor:        w.nav.Cursor(),
		Rest:          w.rest.State(),
		Record:        w.notice,
		HistoryRows:   len(w.history),
	}
	// The record notice is shown once, by whichever of Status or Events
	// reads it first.
	w.notice = nil
	for _, k := range w.plan.Keys {
		d := w.plan.Days[k]
		v.Days = append(v.Days, DayInfo{Key: k, Name: d.Name, Exercises: len(d.Exercises)})
	}
	if d, ok := w.nav.Day(); ok {
		v.DayName = d.Name
	}

	if st := w.sessions.State(); st != nil {
		elapsed := w.now().Sub(st.StartTime)
		v.Session = &SessionView{
			SessionID:      st.SessionID,
			StartTime:      st.StartTime,
			ElapsedSeconds: int(elapsed / time.Second),
			Elapsed:        session.FormatElapsed(elapsed),
			Entries:        st.Entries,
			TotalVolume:    session.TotalVolume(st.Entries),
		}
		for _, s := range v.Slides {
			for _, ex := range s.Exercises {
				v.Cards = append(v.Cards, w.card(st, ex))
			}
		}
	}

	if w.circuit.Loaded() {
		cs := w.circuit.State()
		v.Circuit = &cs
		v.CircuitSlide = w.circuitSlide
	}
	if t, ok := w.keypad.Focused(); ok {
		v.Keypad = &KeypadView{Field: t.Field, Title: t.Title, Value: t.Value}
	}
	return v
}

func (w *Workspace) card(st *session.State, ex models.Exercise) Card {
	c := Card{
		Exercise:      ex,
		HistoricalMax: scoring.MaxHistorical1RM(ex.Name, w.history),
	}
	if e, ok := st.Entry(ex.Name); ok {
		c.Sets = e.SetsPerformed
		c.PersonalRecord = e.PersonalRecord
	}
	c.SetNumber = len(c.Sets) + 1
	c.Complete = ex.Sets > 0 && len(c.Sets) >= ex.Sets
	c.TargetReps = scoring.TargetRepsForSet(ex.Reps.String(), c.SetNumber)
	if last, ok := scoring.LastPerformance(ex.Name, c.SetNumber, w.history); ok {
		c.LastPerformance = &last
	}
	c.Draft = *w.draftFor(ex)
	return c
}
