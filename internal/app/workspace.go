package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/keypad"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/navigation"
	"github.com/claude/liftlog/internal/scoring"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/timer"
)

// RestLabel is the rest timer's label.
const RestLabel = "Rest"

// maxQueuedCues bounds the cue queue between Events calls.
const maxQueuedCues = 64

// Workspace is one user's live state.
type Workspace struct {
	mu sync.Mutex

	userID  string
	plan    *models.WorkoutData
	history []models.LogRow

	nav      *navigation.Navigator
	sessions *session.Manager
	rest     *timer.RestTimer
	circuit  *timer.CircuitEngine
	keypad   keypad.Keypad

	circuitSlide int
	drafts       map[string]*Draft
	pending      bool
	notice       *RecordNotice
	cues         []timer.Cue

	logs LogStore
	log  *slog.Logger
	now  func() time.Time
	tick time.Duration

	ctx           context.Context
	cancel        context.CancelFunc
	cancelRest    context.CancelFunc
	cancelCircuit context.CancelFunc
}

// Draft is the unsubmitted weight and reps for an exercise's next set.
type Draft struct {
	Kg        string `json:"kg"`
	Reps      string `json:"reps"`
	SetNumber int    `json:"set_number"`
}

// RecordNotice announces a personal record. It is shown once.
type RecordNotice struct {
	Exercise string    `json:"exercise"`
	Kg       string    `json:"kg"`
	Reps     string    `json:"reps"`
	At       time.Time `json:"at"`
}

// LogResult describes a logged set.
type LogResult struct {
	Set            models.ExerciseSet `json:"set"`
	PersonalRecord bool               `json:"personal_record"`
	RestSeconds    int                `json:"rest_seconds,omitempty"`
}

func newWorkspace(s *Service, userID string, plan *models.WorkoutData, history []models.LogRow) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		userID:  userID,
		plan:    plan,
		history: history,
		nav:     navigation.New(plan),
		drafts:  make(map[string]*Draft),
		logs:    s.logs,
		log:     s.log.With("user", userID),
		now:     s.now,
		tick:    s.tick,
		ctx:     ctx,
		cancel:  cancel,
	}
	w.sessions = session.NewManager(userID, s.snapshots, s.logs, w.log, s.sessionOpts...)
	w.sessions.OnPersonalRecord = func(name string, set models.ExerciseSet) {
		w.notice = &RecordNotice{Exercise: name, Kg: set.Kg.String(), Reps: set.Reps.String(), At: w.now()}
		w.log.Info("personal record", "exercise", name, "kg", set.Kg, "reps", set.Reps)
	}
	w.rest = timer.NewRestTimer(w.queueCue, func() {
		w.log.Debug("rest finished")
	})
	w.circuit = timer.NewCircuitEngine(w.queueCue)
	return w
}

// UserID returns the workspace owner.
func (w *Workspace) UserID() string { return w.userID }

// Close stops background timers. The session snapshot is kept.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancel()
	w.sessions.Close()
	w.rest.Cancel()
	w.circuit.Close()
}

// SelectDay changes the selected day while at home.
func (w *Workspace) SelectDay(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nav.SelectDay(key)
}

// StartWorkout begins a session on the selected day in list or guided mode.
func (w *Workspace) StartWorkout(ctx context.Context, mode models.ViewMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending {
		return ErrResumePending
	}
	if w.sessions.Active() {
		return session.ErrSessionActive
	}
	if err := w.nav.Start(mode); err != nil {
		return err
	}
	if err := w.sessions.Start(ctx, w.nav.DayKey(), mode); err != nil {
		w.nav.Return()
		return fmt.Errorf("starting session: %w", err)
	}
	w.resetTransient()
	w.log.Info("workout started", "day", w.nav.DayKey(), "mode", mode)
	return nil
}

// LogSet records a set for an exercise of the selected day. The set number
// follows the sets already logged, the PR check runs against history, and
// the exercise's rest starts unless its prescribed sets were already done.
func (w *Workspace) LogSet(ctx context.Context, exerciseName, kg, reps string) (*LogResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logSet(ctx, exerciseName, kg, reps)
}

// LogDraft logs the exercise's current draft values.
func (w *Workspace) LogDraft(ctx context.Context, exerciseName string) (*LogResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ex, ok := w.exercise(exerciseName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseName)
	}
	d := w.draftFor(ex)
	return w.logSet(ctx, exerciseName, d.Kg, d.Reps)
}

func (w *Workspace) logSet(ctx context.Context, exerciseName, kg, reps string) (*LogResult, error) {
	if !w.sessions.Active() {
		return nil, session.ErrNoActiveSession
	}
	ex, ok := w.exercise(exerciseName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseName)
	}
	reps = strings.TrimSpace(reps)
	if reps == "" {
		return nil, ErrRepsRequired
	}
	kg = strings.TrimSpace(kg)
	if kg == "" {
		kg = "0"
	}

	logged := w.loggedSets(exerciseName)
	complete := ex.Sets > 0 && len(logged) >= ex.Sets

	weight, _ := scoring.ParseNumber(kg)
	repCount, _ := scoring.ParseNumber(reps)
	isPR := scoring.IsPersonalRecord(weight, repCount, scoring.MaxHistorical1RM(exerciseName, w.history))

	set := models.ExerciseSet{
		Serie:           len(logged) + 1,
		Kg:              models.NumText(kg),
		Reps:            models.NumText(reps),
		CompletionState: models.CompletionGood,
	}
	if err := w.sessions.LogSet(ctx, exerciseName, set, isPR); err != nil {
		return nil, err
	}

	res := &LogResult{Set: set, PersonalRecord: isPR}
	if ex.Rest != "" && !complete {
		if secs := scoring.RestSeconds(ex.Rest); secs > 0 {
			w.rest.Start(secs, RestLabel, exerciseName)
			w.runTimer(&w.cancelRest, w.rest.Tick)
			res.RestSeconds = secs
		}
	}
	return res, nil
}

// DeleteSet removes a logged set by its 0-based position.
func (w *Workspace) DeleteSet(ctx context.Context, exerciseName string, index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions.DeleteSet(ctx, exerciseName, index)
}

// NextSlide advances the guided cursor and records it in the snapshot.
func (w *Workspace) NextSlide(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nav.Next() {
		if err := w.sessions.SetView(ctx, w.nav.View(), w.nav.Cursor()); err != nil {
			return w.nav.Cursor(), err
		}
	}
	return w.nav.Cursor(), nil
}

// PrevSlide moves the guided cursor back.
func (w *Workspace) PrevSlide(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nav.Prev() {
		if err := w.sessions.SetView(ctx, w.nav.View(), w.nav.Cursor()); err != nil {
			return w.nav.Cursor(), err
		}
	}
	return w.nav.Cursor(), nil
}

// Finish saves the session and returns home. On a save failure nothing
// changes and the call can be retried.
func (w *Workspace) Finish(ctx context.Context) (*models.SessionSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.sessions.State()
	if st == nil {
		return nil, session.ErrNoActiveSession
	}
	day, _ := w.plan.Day(st.DayKey)
	summary, err := w.sessions.Finish(ctx, day.Name)
	if err != nil {
		w.log.Error("saving session failed", "session_id", st.SessionID, "error", err)
		return nil, err
	}

	if rows, err := w.logs.FetchLogs(ctx, w.userID); err != nil {
		w.log.Warn("refreshing history after finish", "error", err)
	} else {
		w.history = rows
	}
	w.nav.Return()
	w.resetTransient()
	w.log.Info("workout finished", "session_id", summary.SessionID, "time", summary.TotalTime, "volume", summary.TotalVolume)
	return summary, nil
}

// Exit abandons the session without saving.
func (w *Workspace) Exit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.sessions.Active() {
		return session.ErrNoActiveSession
	}
	if err := w.sessions.Discard(ctx); err != nil {
		return err
	}
	w.nav.Return()
	w.resetTransient()
	w.log.Info("workout exited")
	return nil
}

// Resume reopens the saved session exactly where it was left.
func (w *Workspace) Resume(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending {
		return ErrNothingToResume
	}
	st, err := w.sessions.Pending(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		w.pending = false
		return ErrNothingToResume
	}
	if err := w.nav.Restore(st.DayKey, st.Mode, st.GuidedIndex); err != nil {
		return fmt.Errorf("restoring saved session: %w", err)
	}
	if _, err := w.sessions.ResumePending(ctx); err != nil {
		w.nav.Return()
		return err
	}
	w.pending = false
	w.resetTransient()
	w.log.Info("session resumed", "day", st.DayKey, "entries", len(st.Entries))
	return nil
}

// Discard drops the saved session and selects the first day.
func (w *Workspace) Discard(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.sessions.Discard(ctx); err != nil {
		return err
	}
	w.pending = false
	w.nav.Return()
	if first := w.plan.FirstKey(); first != "" {
		if err := w.nav.SelectDay(first); err != nil {
			w.log.Warn("selecting first day after discard", "day", first, "error", err)
		}
	}
	w.resetTransient()
	return nil
}

// AddRest adjusts the running rest timer.
func (w *Workspace) AddRest(seconds int) timer.RestState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rest.AddSeconds(seconds)
	return w.rest.State()
}

// CancelRest skips the rest.
func (w *Workspace) CancelRest() timer.RestState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimer(&w.cancelRest)
	w.rest.Cancel()
	return w.rest.State()
}

// MinimizeRest toggles the compact rest view.
func (w *Workspace) MinimizeRest(minimized bool) timer.RestState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rest.Minimize(minimized)
	return w.rest.State()
}

// TickRest advances the rest timer by one second.
func (w *Workspace) TickRest() timer.RestState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rest.Tick()
	return w.rest.State()
}

// OpenCircuit loads a circuit or EMOM slide into the circuit engine.
func (w *Workspace) OpenCircuit(slideIndex int) (timer.CircuitState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	slide, ok := w.nav.Slide(slideIndex)
	if !ok || slide.Circuit == nil {
		return timer.CircuitState{}, fmt.Errorf("%w: %d", ErrNotTimed, slideIndex)
	}
	w.stopTimer(&w.cancelCircuit)
	if err := w.circuit.Open(slide.Exercises, *slide.Circuit); err != nil {
		return timer.CircuitState{}, err
	}
	w.circuitSlide = slideIndex
	return w.circuit.State(), nil
}

// StartCircuit starts or resumes the open circuit.
func (w *Workspace) StartCircuit() (timer.CircuitState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.circuit.Loaded() {
		return timer.CircuitState{}, ErrNoCircuit
	}
	w.circuit.Start()
	if w.circuit.State().Active {
		w.runTimer(&w.cancelCircuit, w.circuit.Tick)
	}
	return w.circuit.State(), nil
}

// PauseCircuit pauses the open circuit.
func (w *Workspace) PauseCircuit() (timer.CircuitState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.circuit.Loaded() {
		return timer.CircuitState{}, ErrNoCircuit
	}
	w.stopTimer(&w.cancelCircuit)
	w.circuit.Pause()
	return w.circuit.State(), nil
}

// SkipCircuit completes the current circuit phase.
func (w *Workspace) SkipCircuit() (timer.CircuitState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.circuit.Loaded() {
		return timer.CircuitState{}, ErrNoCircuit
	}
	w.circuit.Skip()
	return w.circuit.State(), nil
}

// TickCircuit advances the circuit by one second.
func (w *Workspace) TickCircuit() (timer.CircuitState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.circuit.Loaded() {
		return timer.CircuitState{}, ErrNoCircuit
	}
	w.circuit.Tick()
	return w.circuit.State(), nil
}

// CloseCircuit discards the circuit without touching the session.
func (w *Workspace) CloseCircuit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimer(&w.cancelCircuit)
	w.circuit.Close()
}

// Focus binds the keypad to an exercise's kg or reps draft.
func (w *Workspace) Focus(exerciseName, field string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ex, ok := w.exercise(exerciseName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseName)
	}
	d := w.draftFor(ex)

	var value string
	var set func(string)
	switch field {
	case "kg":
		value, set = d.Kg, func(v string) { d.Kg = v }
	case "reps":
		value, set = d.Reps, func(v string) { d.Reps = v }
	default:
		return "", ErrBadField
	}
	title := "Kg"
	if field == "reps" {
		title = "Reps"
	}
	w.keypad.Focus(keypad.Target{
		Field: exerciseName + "/" + field,
		Title: fmt.Sprintf("%s (%s)", title, exerciseName),
		Value: value,
		Set:   set,
	})
	return value, nil
}

// Press sends a key to the focused draft field.
func (w *Workspace) Press(key string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.keypad.Press(key)
}

// DismissKeypad unbinds the keypad.
func (w *Workspace) DismissKeypad() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keypad.Dismiss()
}

// Events drains queued timer cues and the pending record notice.
func (w *Workspace) Events() ([]timer.Cue, *RecordNotice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cues, notice := w.cues, w.notice
	w.cues, w.notice = nil, nil
	return cues, notice
}

// History returns a copy of the loaded history rows.
func (w *Workspace) History() []models.LogRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.LogRow(nil), w.history...)
}

// exercise finds an exercise of the selected day, including group members.
func (w *Workspace) exercise(name string) (models.Exercise, bool) {
	for _, s := range w.nav.Slides() {
		for _, ex := range s.Exercises {
			if ex.Name == name {
				return ex, true
			}
		}
	}
	return models.Exercise{}, false
}

func (w *Workspace) loggedSets(name string) []models.ExerciseSet {
	st := w.sessions.State()
	if st == nil {
		return nil
	}
	if e, ok := st.Entry(name); ok {
		return e.SetsPerformed
	}
	return nil
}

// draftFor returns the exercise's draft, prefilling it whenever the set
// number moves on: reps from the set's target, weight from the same set
// last time. A completed exercise keeps whatever was typed.
func (w *Workspace) draftFor(ex models.Exercise) *Draft {
	d, ok := w.drafts[ex.Name]
	if !ok {
		d = &Draft{}
		w.drafts[ex.Name] = d
	}
	logged := len(w.loggedSets(ex.Name))
	setNumber := logged + 1
	if ex.Sets > 0 && logged >= ex.Sets {
		return d
	}
	if d.SetNumber == setNumber {
		return d
	}
	d.SetNumber = setNumber
	d.Reps = scoring.CleanReps(scoring.TargetRepsForSet(ex.Reps.String(), setNumber))
	d.Kg = ""
	if last, ok := scoring.LastPerformance(ex.Name, setNumber, w.history); ok {
		d.Kg = last.Kg.String()
	}
	return d
}

func (w *Workspace) queueCue(c timer.Cue) {
	if len(w.cues) >= maxQueuedCues {
		w.cues = w.cues[1:]
	}
	w.cues = append(w.cues, c)
}

// resetTransient clears timers, drafts and the keypad between workouts.
func (w *Workspace) resetTransient() {
	w.stopTimer(&w.cancelRest)
	w.stopTimer(&w.cancelCircuit)
	w.rest.Cancel()
	w.circuit.Close()
	w.keypad.Dismiss()
	w.drafts = make(map[string]*Draft)
}

// runTimer ticks step in the background until it reports done. The caller
// holds w.mu; each tick takes it again.
func (w *Workspace) runTimer(cancel *context.CancelFunc, step func() bool) {
	if w.tick <= 0 {
		return
	}
	w.stopTimer(cancel)
	ctx, c := context.WithCancel(w.ctx)
	*cancel = c
	go timer.Run(ctx, timer.TickerFunc(func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		if ctx.Err() != nil {
			return false
		}
		return step()
	}), w.tick)
}

func (w *Workspace) stopTimer(cancel *context.CancelFunc) {
	if *cancel != nil {
		(*cancel)()
		*cancel = nil
	}
}
