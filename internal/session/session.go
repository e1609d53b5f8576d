// Package session owns the in-progress workout: what the user has logged so
// far, its mirror in the local snapshot store, and the finish/discard/resume
// lifecycle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/scoring"
)

var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionActive    = errors.New("a session is already active")
	ErrUnknownExercise  = errors.New("exercise has no logged sets in this session")
	ErrSetIndex         = errors.New("set index out of range")
	ErrCorruptSnapshot  = errors.New("session snapshot is corrupt")
	ErrSnapshotMismatch = errors.New("session snapshot belongs to another user")
)

// Store is the local durable snapshot store, keyed by user.
// Load returns (nil, nil) when nothing is stored.
type Store interface {
	Save(ctx context.Context, userID string, blob []byte) error
	Load(ctx context.Context, userID string) ([]byte, error)
	Delete(ctx context.Context, userID string) error
}

// Persister receives the summary of a finished session.
type Persister interface {
	SaveSession(ctx context.Context, clientID string, summary models.SessionSummary) error
}

// State is the in-progress workout. It is also the snapshot format.
type State struct {
	UserID      string                   `json:"user"`
	SessionID   string                   `json:"session_id"`
	StartTime   time.Time                `json:"session_start_time"`
	Entries     []models.WorkoutLogEntry `json:"current_logs"`
	DayKey      string                   `json:"active_day_key"`
	Mode        models.ViewMode          `json:"view_mode"`
	GuidedIndex int                      `json:"simple_mode_index"`
}

// Entry returns the entry for an exercise, if one exists.
func (s *State) Entry(exerciseName string) (*models.WorkoutLogEntry, bool) {
	for i := range s.Entries {
		if s.Entries[i].ExerciseName == exerciseName {
			return &s.Entries[i], true
		}
	}
	return nil, false
}

func (s *State) clone() *State {
	c := *s
	c.Entries = make([]models.WorkoutLogEntry, len(s.Entries))
	for i, e := range s.Entries {
		e.SetsPerformed = append([]models.ExerciseSet(nil), e.SetsPerformed...)
		c.Entries[i] = e
	}
	return &c
}

// Manager runs the session lifecycle for one user. It is not safe for
// concurrent use; callers serialise access.
type Manager struct {
	userID    string
	store     Store
	persister Persister
	log       *slog.Logger

	now   func() time.Time
	newID func() string
	loc   *time.Location

	// OnPersonalRecord, if set, fires once for every set logged as a PR.
	OnPersonalRecord func(exerciseName string, set models.ExerciseSet)

	state *State
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs overrides session id generation.
func WithIDs(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithLocation sets the zone used for the human-readable date/time fields.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.loc = loc }
}

// NewManager creates an idle Manager.
func NewManager(userID string, store Store, persister Persister, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		userID:    userID,
		store:     store,
		persister: persister,
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		loc:       time.Local,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Active reports whether a session is in progress.
func (m *Manager) Active() bool { return m.state != nil }

// State returns a copy of the current state, or nil when idle.
func (m *Manager) State() *State {
	if m.state == nil {
		return nil
	}
	return m.state.clone()
}

// Start begins a new session and writes the first snapshot.
func (m *Manager) Start(ctx context.Context, dayKey string, mode models.ViewMode) error {
	if m.state != nil {
		return ErrSessionActive
	}
	m.state = &State{
		UserID:    m.userID,
		SessionID: m.newID(),
		StartTime: m.now(),
		Entries:   []models.WorkoutLogEntry{},
		DayKey:    dayKey,
		Mode:      mode,
	}
	return m.persist(ctx)
}

// LogSet appends a set to the exercise's entry, creating the entry on the
// first set. A PR overwrites the entry's record marker with this set's
// weight, so the marker tracks the latest PR rather than the heaviest.
func (m *Manager) LogSet(ctx context.Context, exerciseName string, set models.ExerciseSet, isPR bool) error {
	if m.state == nil {
		return ErrNoActiveSession
	}

	if entry, ok := m.state.Entry(exerciseName); ok {
		entry.SetsPerformed = append(entry.SetsPerformed, set)
		if isPR {
			entry.PersonalRecord = set.Kg.String()
		}
	} else {
		now := m.now().In(m.loc)
		entry := models.WorkoutLogEntry{
			ExerciseName:    exerciseName,
			SetsPerformed:   []models.ExerciseSet{set},
			CompletionState: models.CompletionNeutral,
			DayKey:          m.state.DayKey,
			Date:            now.Format("02/01/2006"),
			Time:            now.Format("15:04:05"),
			RawDate:         now.UTC().Format(time.RFC3339Nano),
		}
		if isPR {
			entry.PersonalRecord = set.Kg.String()
		}
		m.state.Entries = append(m.state.Entries, entry)
	}

	if isPR && m.OnPersonalRecord != nil {
		m.OnPersonalRecord(exerciseName, set)
	}
	return m.persist(ctx)
}

// DeleteSet removes the set at a 0-based position. Remaining sets keep their
// serie numbers, so a gap is left behind.
func (m *Manager) DeleteSet(ctx context.Context, exerciseName string, setIndex int) error {
	if m.state == nil {
		return ErrNoActiveSession
	}
	entry, ok := m.state.Entry(exerciseName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseName)
	}
	if setIndex < 0 || setIndex >= len(entry.SetsPerformed) {
		return fmt.Errorf("%w: %d of %d", ErrSetIndex, setIndex, len(entry.SetsPerformed))
	}
	entry.SetsPerformed = append(entry.SetsPerformed[:setIndex:setIndex], entry.SetsPerformed[setIndex+1:]...)
	return m.persist(ctx)
}

// SetView records the navigation position so a resumed session reopens
// where the user left it.
func (m *Manager) SetView(ctx context.Context, mode models.ViewMode, guidedIndex int) error {
	if m.state == nil {
		return ErrNoActiveSession
	}
	if m.state.Mode == mode && m.state.GuidedIndex == guidedIndex {
		return nil
	}
	m.state.Mode = mode
	m.state.GuidedIndex = guidedIndex
	return m.persist(ctx)
}

// Summary computes the totals for the current session without finishing it.
func (m *Manager) Summary(workoutName string) (models.SessionSummary, error) {
	if m.state == nil {
		return models.SessionSummary{}, ErrNoActiveSession
	}
	st := m.state.clone()
	return models.SessionSummary{
		SessionID:   st.SessionID,
		WorkoutName: workoutName,
		Logs:        st.Entries,
		TotalTime:   FormatElapsed(m.now().Sub(st.StartTime)),
		TotalVolume: TotalVolume(st.Entries),
	}, nil
}

// Finish writes the session summary through the persister. Only after the
// write succeeds is the snapshot removed and the manager idle again; on
// failure the session is left untouched so the user can retry.
func (m *Manager) Finish(ctx context.Context, workoutName string) (*models.SessionSummary, error) {
	summary, err := m.Summary(workoutName)
	if err != nil {
		return nil, err
	}
	if err := m.persister.SaveSession(ctx, m.userID, summary); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	if err := m.store.Delete(ctx, m.userID); err != nil {
		m.log.Warn("clearing session snapshot after finish", "user", m.userID, "error", err)
	}
	m.state = nil
	return &summary, nil
}

// Discard drops the session, and any stored snapshot, without saving.
func (m *Manager) Discard(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.userID); err != nil {
		return fmt.Errorf("clearing session snapshot: %w", err)
	}
	m.state = nil
	return nil
}

// Pending loads the stored snapshot, if any. A snapshot that cannot be
// decoded counts as no snapshot.
func (m *Manager) Pending(ctx context.Context) (*State, error) {
	blob, err := m.store.Load(ctx, m.userID)
	if err != nil {
		return nil, fmt.Errorf("loading session snapshot: %w", err)
	}
	if blob == nil {
		return nil, nil
	}
	st, err := Decode(blob)
	if err != nil {
		m.log.Warn("ignoring unreadable session snapshot", "user", m.userID, "error", err)
		return nil, nil
	}
	if st.UserID != "" && st.UserID != m.userID {
		m.log.Warn("ignoring session snapshot for another user", "user", m.userID, "snapshot_user", st.UserID)
		return nil, nil
	}
	return st, nil
}

// Resume rebuilds the session from a snapshot blob and writes it back.
func (m *Manager) Resume(ctx context.Context, blob []byte) error {
	if m.state != nil {
		return ErrSessionActive
	}
	st, err := Decode(blob)
	if err != nil {
		return err
	}
	if st.UserID != "" && st.UserID != m.userID {
		return ErrSnapshotMismatch
	}
	st.UserID = m.userID
	if st.SessionID == "" {
		st.SessionID = m.newID()
	}
	if st.Entries == nil {
		st.Entries = []models.WorkoutLogEntry{}
	}
	m.state = st
	return m.persist(ctx)
}

// ResumePending resumes the stored snapshot. It reports false when there
// is nothing usable to resume.
func (m *Manager) ResumePending(ctx context.Context) (bool, error) {
	st, err := m.Pending(ctx)
	if err != nil || st == nil {
		return false, err
	}
	blob, err := Encode(st)
	if err != nil {
		return false, err
	}
	if err := m.Resume(ctx, blob); err != nil {
		return false, err
	}
	return true, nil
}

// Close forgets the in-memory session without touching the snapshot, as on
// logout: the stored snapshot stays resumable.
func (m *Manager) Close() {
	m.state = nil
}

// persist must run after the in-memory mutation it mirrors.
func (m *Manager) persist(ctx context.Context) error {
	blob, err := Encode(m.state)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, m.userID, blob); err != nil {
		return fmt.Errorf("saving session snapshot: %w", err)
	}
	return nil
}

// Encode serialises a state into a snapshot blob.
func Encode(st *State) ([]byte, error) {
	blob, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encoding session snapshot: %w", err)
	}
	return blob, nil
}

// Decode parses a snapshot blob.
func Decode(blob []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if st.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: missing start time", ErrCorruptSnapshot)
	}
	return &st, nil
}

// FormatElapsed renders a duration as zero-padded hours and minutes.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// TotalVolume sums weight × reps over every set. Weights parse as decimals
// and reps as integers; unparsable values contribute nothing.
func TotalVolume(entries []models.WorkoutLogEntry) float64 {
	var total float64
	for _, e := range entries {
		for _, s := range e.SetsPerformed {
			w, _ := scoring.ParseNumber(s.Kg.String())
			r, _ := scoring.ParseInteger(s.Reps.String())
			total += w * float64(r)
		}
	}
	return total
}
