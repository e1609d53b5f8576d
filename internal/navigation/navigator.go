// Package navigation tracks which day is selected, which view is showing and
// where the guided cursor sits, and derives the guided slides from a day.
package navigation

import (
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

var (
	ErrUnknownDay        = errors.New("unknown workout day")
	ErrInvalidTransition = errors.New("invalid view transition")
)

// Navigator is the view state machine: home, then list or guided while a
// workout runs, then home again.
type Navigator struct {
	plan   *models.WorkoutData
	view   models.ViewMode
	dayKey string
	cursor int
	slides []Slide
}

// New starts at home with the plan's first day selected.
func New(plan *models.WorkoutData) *Navigator {
	n := &Navigator{plan: plan, view: models.ViewHome}
	n.dayKey = plan.FirstKey()
	n.rebuild()
	return n
}

// View returns the current view.
func (n *Navigator) View() models.ViewMode { return n.view }

// DayKey returns the selected day.
func (n *Navigator) DayKey() string { return n.dayKey }

// Day returns the selected day.
func (n *Navigator) Day() (models.WorkoutDay, bool) { return n.plan.Day(n.dayKey) }

// Cursor returns the guided slide index.
func (n *Navigator) Cursor() int { return n.cursor }

// Slides returns the selected day's slides.
func (n *Navigator) Slides() []Slide { return n.slides }

// Slide returns the slide at i.
func (n *Navigator) Slide(i int) (Slide, bool) {
	if i < 0 || i >= len(n.slides) {
		return Slide{}, false
	}
	return n.slides[i], true
}

// SelectDay changes the selected day. Only allowed at home.
func (n *Navigator) SelectDay(key string) error {
	if n.view != models.ViewHome {
		return fmt.Errorf("%w: select day from %s", ErrInvalidTransition, n.view)
	}
	if _, ok := n.plan.Day(key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDay, key)
	}
	n.dayKey = key
	n.rebuild()
	return nil
}

// Start leaves home for the list or guided view.
func (n *Navigator) Start(mode models.ViewMode) error {
	if n.view != models.ViewHome {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, n.view)
	}
	if mode != models.ViewList && mode != models.ViewGuided {
		return fmt.Errorf("%w: start into %q", ErrInvalidTransition, mode)
	}
	if _, ok := n.plan.Day(n.dayKey); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDay, n.dayKey)
	}
	n.view = mode
	n.cursor = 0
	return nil
}

// Return goes back home after a finish or exit.
func (n *Navigator) Return() {
	n.view = models.ViewHome
	n.cursor = 0
}

// Next moves the guided cursor forward. At the last slide, or outside the
// guided view, it does nothing.
func (n *Navigator) Next() bool {
	if n.view != models.ViewGuided || n.cursor >= len(n.slides)-1 {
		return false
	}
	n.cursor++
	return true
}

// Prev moves the guided cursor back.
func (n *Navigator) Prev() bool {
	if n.view != models.ViewGuided || n.cursor <= 0 {
		return false
	}
	n.cursor--
	return true
}

// Restore reinstates a resumed session's position. An unknown day is
// rejected; the cursor is clamped to the day's slides.
func (n *Navigator) Restore(dayKey string, mode models.ViewMode, cursor int) error {
	if _, ok := n.plan.Day(dayKey); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDay, dayKey)
	}
	if mode != models.ViewList && mode != models.ViewGuided {
		mode = models.ViewList
	}
	n.dayKey = dayKey
	n.rebuild()
	n.view = mode
	n.cursor = clamp(cursor, 0, len(n.slides)-1)
	return nil
}

func (n *Navigator) rebuild() {
	day, _ := n.plan.Day(n.dayKey)
	n.slides = GroupExercises(day)
	n.cursor = 0
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
