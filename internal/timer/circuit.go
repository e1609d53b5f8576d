package timer

import (
	"errors"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/scoring"
)

// ErrNoExercises is returned when a circuit is opened without exercises.
var ErrNoExercises = errors.New("circuit has no exercises")

// Defaults applied when a group's configuration leaves a value unset.
const (
	DefaultEMOMIntervals      = 10
	DefaultSecondsPerInterval = 60
	DefaultCircuitRounds      = 3
	DefaultRestBetweenRounds  = 60
)

// Phase is the circuit engine's current segment.
type Phase string

const (
	PhaseWork         Phase = "work"
	PhaseRestExercise Phase = "rest_exercise"
	PhaseRestRound    Phase = "rest_round"
)

// CircuitState is a snapshot of the circuit engine.
type CircuitState struct {
	Type          models.CircuitType `json:"type"`
	Round         int                `json:"round"`
	TotalRounds   int                `json:"total_rounds"`
	ExerciseIndex int                `json:"exercise_index"`
	ExerciseCount int                `json:"exercise_count"`
	Exercise      string             `json:"exercise"`
	Target        string             `json:"target"`
	Phase         Phase              `json:"phase"`
	Remaining     int                `json:"remaining"`
	Active        bool               `json:"active"`
	Finished      bool               `json:"finished"`
}

// CircuitEngine sequences a circuit or EMOM block. A round-based circuit
// walks every exercise per round with optional rests; an EMOM gives each
// interval a fixed duration and rotates through the exercises.
type CircuitEngine struct {
	exercises []models.Exercise
	cfg       models.CircuitConfig

	round    int
	index    int
	phase    Phase
	left     int
	active   bool
	started  bool
	finished bool

	cue func(Cue)
}

// NewCircuitEngine creates an engine with nothing loaded. cue may be nil.
func NewCircuitEngine(cue func(Cue)) *CircuitEngine {
	return &CircuitEngine{cue: cue}
}

// Open loads a block and resets to round 1, first exercise, work phase,
// primed with the first exercise's duration (0 for rep targets).
func (c *CircuitEngine) Open(exercises []models.Exercise, cfg models.CircuitConfig) error {
	if len(exercises) == 0 {
		return ErrNoExercises
	}
	if cfg.Type == "" {
		cfg.Type = models.CircuitRounds
	}
	c.exercises = append([]models.Exercise(nil), exercises...)
	c.cfg = cfg
	c.round = 1
	c.index = 0
	c.phase = PhaseWork
	c.left = c.duration(0)
	c.active = false
	c.started = false
	c.finished = false
	return nil
}

// Loaded reports whether a block is open.
func (c *CircuitEngine) Loaded() bool { return len(c.exercises) > 0 }

// Close unloads the block, discarding all progress.
func (c *CircuitEngine) Close() {
	*c = CircuitEngine{cue: c.cue}
}

// Start runs the countdown. The first start of an EMOM primes the interval
// duration; later starts resume from the current countdown.
func (c *CircuitEngine) Start() {
	if !c.Loaded() || c.finished {
		return
	}
	c.active = true
	if c.started {
		return
	}
	c.started = true
	if c.cfg.Type == models.CircuitEMOM {
		c.left = c.secondsPerInterval()
	} else if c.left == 0 && c.phase == PhaseWork {
		c.left = c.duration(c.index)
	}
}

// Pause stops the countdown without resetting anything.
func (c *CircuitEngine) Pause() {
	c.active = false
}

// Tick advances the countdown by one second and reports whether the engine
// is still running. A work phase with no duration waits for Skip.
func (c *CircuitEngine) Tick() bool {
	if !c.active {
		return false
	}
	if c.left > 0 {
		c.left--
		if c.left == 0 {
			c.complete()
		}
	}
	return c.active
}

// Skip forces the current phase to complete.
func (c *CircuitEngine) Skip() {
	if !c.active {
		return
	}
	c.complete()
}

// State returns a snapshot.
func (c *CircuitEngine) State() CircuitState {
	st := CircuitState{
		Type:          c.cfg.Type,
		Round:         c.round,
		TotalRounds:   c.totalRounds(),
		ExerciseIndex: c.index,
		ExerciseCount: len(c.exercises),
		Phase:         c.phase,
		Remaining:     c.left,
		Active:        c.active,
		Finished:      c.finished,
	}
	if c.index < len(c.exercises) {
		st.Exercise = c.exercises[c.index].Name
		st.Target = c.exercises[c.index].Reps.String()
	}
	return st
}

func (c *CircuitEngine) complete() {
	if c.finished {
		return
	}
	c.play(CuePhase)

	if c.cfg.Type == models.CircuitEMOM {
		if c.round < c.totalRounds() {
			c.round++
			c.index = (c.index + 1) % len(c.exercises)
			c.left = c.secondsPerInterval()
		} else {
			c.stop()
		}
		return
	}

	switch c.phase {
	case PhaseWork:
		if c.cfg.RestBetweenEx > 0 && c.index < len(c.exercises)-1 {
			c.phase = PhaseRestExercise
			c.left = c.cfg.RestBetweenEx
			return
		}
		c.advance()
	case PhaseRestExercise:
		c.advance()
	case PhaseRestRound:
		c.round++
		c.index = 0
		c.phase = PhaseWork
		c.left = c.duration(0)
	}
}

// advance moves to the next exercise, or to the round rest, or finishes.
func (c *CircuitEngine) advance() {
	if c.index < len(c.exercises)-1 {
		c.index++
		c.phase = PhaseWork
		c.left = c.duration(c.index)
		return
	}
	if c.round < c.totalRounds() {
		c.phase = PhaseRestRound
		c.left = c.cfg.RestBetweenRounds
		if c.left <= 0 {
			c.left = DefaultRestBetweenRounds
		}
		return
	}
	c.stop()
}

func (c *CircuitEngine) stop() {
	c.active = false
	c.finished = true
	c.left = 0
}

func (c *CircuitEngine) duration(i int) int {
	return scoring.ParseDuration(c.exercises[i].Reps)
}

func (c *CircuitEngine) totalRounds() int {
	if c.cfg.Type == models.CircuitEMOM {
		if c.cfg.Intervals > 0 {
			return c.cfg.Intervals
		}
		return DefaultEMOMIntervals
	}
	if c.cfg.TotalRounds > 0 {
		return c.cfg.TotalRounds
	}
	return DefaultCircuitRounds
}

func (c *CircuitEngine) secondsPerInterval() int {
	if c.cfg.SecondsPerInterval > 0 {
		return c.cfg.SecondsPerInterval
	}
	return DefaultSecondsPerInterval
}

func (c *CircuitEngine) play(cue Cue) {
	if c.cue != nil {
		c.cue(cue)
	}
}
