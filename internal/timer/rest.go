// Package timer implements the rest countdown and the circuit/EMOM sequencer.
// Both engines are plain state machines advanced by Tick; Runner supplies the
// one-second clock.
package timer

// Cue is an audible signal requested by an engine. Presentation decides how
// to play it.
type Cue string

const (
	// CueShort is the countdown beep in the last seconds of a rest.
	CueShort Cue = "short"
	// CueComplete marks the natural end of a rest.
	CueComplete Cue = "complete"
	// CuePhase marks a circuit phase change.
	CuePhase Cue = "phase"
)

// shortCueFrom is the remaining-seconds threshold for CueShort.
const shortCueFrom = 4

// RestState is a snapshot of the rest timer.
type RestState struct {
	Active    bool   `json:"active"`
	Remaining int    `json:"remaining"`
	Label     string `json:"label"`
	Next      string `json:"next,omitempty"`
	Minimized bool   `json:"minimized"`
}

// RestTimer counts down a rest period between sets.
type RestTimer struct {
	state RestState

	cue        func(Cue)
	onComplete func()
}

// NewRestTimer creates an inactive rest timer. cue and onComplete may be nil.
func NewRestTimer(cue func(Cue), onComplete func()) *RestTimer {
	return &RestTimer{cue: cue, onComplete: onComplete}
}

// Start begins a countdown, replacing any running one. A non-positive
// duration leaves the timer inactive.
func (t *RestTimer) Start(seconds int, label, next string) {
	if seconds <= 0 {
		return
	}
	t.state = RestState{
		Active:    true,
		Remaining: seconds,
		Label:     label,
		Next:      next,
	}
}

// Tick advances the countdown by one second and reports whether the timer
// is still running afterwards.
func (t *RestTimer) Tick() bool {
	if !t.state.Active {
		return false
	}
	if t.state.Remaining <= 1 {
		t.state.Remaining = 0
		t.state.Active = false
		t.state.Minimized = false
		t.play(CueComplete)
		if t.onComplete != nil {
			t.onComplete()
		}
		return false
	}
	if t.state.Remaining <= shortCueFrom {
		t.play(CueShort)
	}
	t.state.Remaining--
	return true
}

// AddSeconds adjusts the remaining time. The result never drops below zero.
func (t *RestTimer) AddSeconds(n int) {
	if !t.state.Active {
		return
	}
	t.state.Remaining += n
	if t.state.Remaining < 0 {
		t.state.Remaining = 0
	}
}

// Cancel stops the countdown without firing the completion callback.
func (t *RestTimer) Cancel() {
	t.state = RestState{}
}

// Minimize toggles the compact presentation. Counting is unaffected.
func (t *RestTimer) Minimize(minimized bool) {
	if t.state.Active {
		t.state.Minimized = minimized
	}
}

// Active reports whether a countdown is running.
func (t *RestTimer) Active() bool { return t.state.Active }

// State returns a snapshot.
func (t *RestTimer) State() RestState { return t.state }

func (t *RestTimer) play(c Cue) {
	if t.cue != nil {
		t.cue(c)
	}
}
