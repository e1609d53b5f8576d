package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plan"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/snapshot"
)

const testPlan = `{
	"push": {"name": "Push Day", "exercises": [
		{"order": 1, "name": "Bench Press", "reps": "10,8,6", "sets": 3, "rest": "90s"},
		{"order": 2, "name": "Finisher", "reps": "30s", "circuitDetails": {"totalRounds": 2},
		 "items": [{"name": "Burpee"}, {"name": "Push-up", "reps": "15"}]},
		{"order": 3, "name": "Curl", "reps": "12", "sets": 1, "rest": "60s"}
	]},
	"pull": {"name": "Pull Day", "exercises": [{"order": 1, "name": "Row", "reps": "10", "sets": 3}]}
}`

type fakePlans struct {
	err error
}

func (f *fakePlans) Fetch(_ context.Context, _ string) (*models.WorkoutData, error) {
	if f.err != nil {
		return nil, f.err
	}
	var w models.WorkoutData
	if err := json.Unmarshal([]byte(testPlan), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

type fakeLogs struct {
	mu        sync.Mutex
	rows      []models.LogRow
	fetchErr  error
	saveErr   error
	summaries []models.SessionSummary
}

func (f *fakeLogs) FetchLogs(_ context.Context, _ string) ([]models.LogRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.LogRow(nil), f.rows...), nil
}

func (f *fakeLogs) SaveSession(_ context.Context, clientID string, s models.SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.summaries = append(f.summaries, s)
	for _, e := range s.Logs {
		f.rows = append(f.rows, models.LogRow{ClientID: clientID, SessionID: s.SessionID, ExerciseName: e.ExerciseName, SetsPerformed: e.SetsPerformed})
	}
	return nil
}

var start = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, plans PlanSource, logs *fakeLogs) *Service {
	t.Helper()
	snaps, err := snapshot.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("snapshot.Open: %v", err)
	}
	t.Cleanup(func() { snaps.Close() })

	now := start
	clock := func() time.Time { return now }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewService(plans, logs, snaps, log,
		WithClock(clock),
		WithSessionOptions(session.WithClock(clock), session.WithLocation(time.UTC)),
	)
	t.Cleanup(s.Close)
	return s
}

func benchHistory() []models.LogRow {
	return []models.LogRow{{
		SessionID:     "old",
		ExerciseName:  "Bench Press",
		RawDate:       start.AddDate(0, 0, -7),
		SetsPerformed: []models.ExerciseSet{{Serie: 1, Kg: "100", Reps: "1"}, {Serie: 2, Kg: "85", Reps: "8"}},
	}}
}

// TestLoginPlanFailureIsFatal verifies a missing plan fails the login while
// a history failure only empties the history.
func TestLoginPlanFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{err: plan.ErrUserNotFound}, &fakeLogs{})
	if _, err := s.Login(ctx, "ana"); !errors.Is(err, plan.ErrUserNotFound) {
		t.Errorf("Login = %v, want ErrUserNotFound", err)
	}
	if _, err := s.Workspace("ana"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Workspace after failed login = %v", err)
	}

	s = newTestService(t, &fakePlans{}, &fakeLogs{fetchErr: errors.New("db down")})
	ws, err := s.Login(ctx, "ana")
	if err != nil {
		t.Fatalf("Login with history failure: %v", err)
	}
	v := ws.Status()
	if v.HistoryRows != 0 || v.DayKey != "push" || v.Mode != models.ViewHome {
		t.Errorf("status = %+v", v)
	}
	if len(v.Days) != 2 || v.Days[0].Key != "push" {
		t.Errorf("days = %+v", v.Days)
	}
}

// TestWorkoutLifecycle logs sets against history, checks PR detection and
// the rest timer, then finishes and returns home.
func TestWorkoutLifecycle(t *testing.T) {
	ctx := context.Background()
	logs := &fakeLogs{rows: benchHistory()}
	s := newTestService(t, &fakePlans{}, logs)
	ws, err := s.Login(ctx, "ana")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := ws.LogSet(ctx, "Bench Press", "80", "10"); !errors.Is(err, session.ErrNoActiveSession) {
		t.Errorf("LogSet before start = %v", err)
	}
	if err := ws.StartWorkout(ctx, models.ViewList); err != nil {
		t.Fatalf("StartWorkout: %v", err)
	}
	if err := ws.SelectDay("pull"); err == nil {
		t.Error("SelectDay allowed during a workout")
	}

	// History best is 108 (85x8); 95x5 is 111, 90x3 is 99.
	res, err := ws.LogSet(ctx, "Bench Press", "95", "5")
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	if !res.PersonalRecord || res.Set.Serie != 1 || res.RestSeconds != 90 {
		t.Errorf("first set = %+v", res)
	}
	res, err = ws.LogSet(ctx, "Bench Press", "90", "3")
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	if res.PersonalRecord || res.Set.Serie != 2 {
		t.Errorf("second set = %+v", res)
	}
	if _, err := ws.LogSet(ctx, "Bench Press", "90", " "); !errors.Is(err, ErrRepsRequired) {
		t.Errorf("empty reps = %v", err)
	}
	if _, err := ws.LogSet(ctx, "Deadlift", "90", "3"); !errors.Is(err, ErrUnknownExercise) {
		t.Errorf("unknown exercise = %v", err)
	}

	v := ws.Status()
	if !v.Rest.Active || v.Rest.Remaining != 90 || v.Rest.Next != "Bench Press" {
		t.Errorf("rest = %+v", v.Rest)
	}
	if v.Record == nil || v.Record.Kg != "95" {
		t.Errorf("record notice = %+v", v.Record)
	}
	bench := v.Cards[0]
	if bench.SetNumber != 3 || bench.TargetReps != "6" || bench.HistoricalMax != 108 || bench.PersonalRecord != "95" {
		t.Errorf("bench card = %+v", bench)
	}
	if bench.Draft.Reps != "6" {
		t.Errorf("draft reps = %q, want 6", bench.Draft.Reps)
	}

	if _, again := ws.Events(); again != nil {
		t.Error("record notice returned by Events after Status")
	}

	summary, err := ws.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if summary.WorkoutName != "Push Day" || summary.TotalVolume != 95*5+90*3 {
		t.Errorf("summary = %+v", summary)
	}
	v = ws.Status()
	if v.Mode != models.ViewHome || v.Session != nil || v.Rest.Active {
		t.Errorf("after finish: mode %s session %v rest %+v", v.Mode, v.Session, v.Rest)
	}
	if v.HistoryRows != 2 {
		t.Errorf("history rows after refresh = %d, want 2", v.HistoryRows)
	}
}

// TestRecordNoticeIsOneShot verifies a record notice is delivered once,
// through either Status or Events.
func TestRecordNoticeIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{}, &fakeLogs{rows: benchHistory()})
	ws, err := s.Login(ctx, "ana")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := ws.StartWorkout(ctx, models.ViewList); err != nil {
		t.Fatalf("StartWorkout: %v", err)
	}

	if res, err := ws.LogSet(ctx, "Bench Press", "95", "5"); err != nil || !res.PersonalRecord {
		t.Fatalf("LogSet = %+v, %v", res, err)
	}
	if v := ws.Status(); v.Record == nil || v.Record.Kg != "95" {
		t.Fatalf("first Status record = %+v", v.Record)
	}
	if v := ws.Status(); v.Record != nil {
		t.Errorf("second Status record = %+v, want nil", v.Record)
	}

	if res, err := ws.LogSet(ctx, "Bench Press", "100", "5"); err != nil || !res.PersonalRecord {
		t.Fatalf("LogSet = %+v, %v", res, err)
	}
	if _, notice := ws.Events(); notice == nil || notice.Kg != "100" {
		t.Fatalf("Events notice = %+v", notice)
	}
	if v := ws.Status(); v.Record != nil {
		t.Errorf("Status after Events record = %+v, want nil", v.Record)
	}
}

// TestFinishFailureKeepsWorkout verifies a failed save leaves the workout
// running.
func TestFinishFailureKeepsWorkout(t *testing.T) {
	ctx := context.Background()
	logs := &fakeLogs{saveErr: errors.New("timeout")}
	s := newTestService(t, &fakePlans{}, logs)
	ws, _ := s.Login(ctx, "ana")
	_ = ws.StartWorkout(ctx, models.ViewList)
	_, _ = ws.LogSet(ctx, "Curl", "12", "12")

	if _, err := ws.Finish(ctx); err == nil {
		t.Fatal("Finish succeeded")
	}
	v := ws.Status()
	if v.Session == nil || v.Mode != models.ViewList || len(v.Session.Entries) != 1 {
		t.Errorf("workout lost after failed finish: %+v", v)
	}

	logs.saveErr = nil
	if _, err := ws.Finish(ctx); err != nil {
		t.Fatalf("retry Finish: %v", err)
	}
	if len(logs.summaries) != 1 {
		t.Errorf("summaries = %d, want 1", len(logs.summaries))
	}
}

// TestRestSkippedOnceSetsComplete verifies no rest starts after the
// prescribed sets are already logged.
func TestRestSkippedOnceSetsComplete(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{}, &fakeLogs{})
	ws, _ := s.Login(ctx, "ana")
	_ = ws.StartWorkout(ctx, models.ViewList)

	res, _ := ws.LogSet(ctx, "Curl", "12", "12")
	if res.RestSeconds != 60 {
		t.Errorf("rest after last prescribed set = %d, want 60", res.RestSeconds)
	}
	ws.CancelRest()
	res, _ = ws.LogSet(ctx, "Curl", "12", "10")
	if res.RestSeconds != 0 || ws.Status().Rest.Active {
		t.Errorf("rest started for an extra set: %+v", res)
	}
	if res.PersonalRecord {
		t.Error("PR without history")
	}
}

// TestResumeAfterLogout verifies the saved session is offered on the next
// login and reopens at the same position.
func TestResumeAfterLogout(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{}, &fakeLogs{})
	ws, _ := s.Login(ctx, "ana")
	if err := ws.StartWorkout(ctx, models.ViewGuided); err != nil {
		t.Fatalf("StartWorkout: %v", err)
	}
	_, _ = ws.LogSet(ctx, "Bench Press", "60", "10")
	if _, err := ws.NextSlide(ctx); err != nil {
		t.Fatalf("NextSlide: %v", err)
	}
	before := ws.Status()
	if err := s.Logout("ana"); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	ws, err := s.Login(ctx, "ana")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !ws.Status().ResumePending {
		t.Fatal("saved session not offered")
	}
	if err := ws.StartWorkout(ctx, models.ViewList); !errors.Is(err, ErrResumePending) {
		t.Errorf("StartWorkout with pending = %v", err)
	}
	if err := ws.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	after := ws.Status()
	if after.Mode != models.ViewGuided || after.Cursor != 1 || after.DayKey != "push" {
		t.Errorf("resumed at %s/%d/%s", after.Mode, after.Cursor, after.DayKey)
	}
	if after.Session.SessionID != before.Session.SessionID || len(after.Session.Entries) != 1 {
		t.Errorf("resumed session = %+v", after.Session)
	}
}

// TestDiscardSelectsFirstDay verifies discarding the saved session returns
// to the first day.
func TestDiscardSelectsFirstDay(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{}, &fakeLogs{})
	ws, _ := s.Login(ctx, "ana")
	_ = ws.SelectDay("pull")
	_ = ws.StartWorkout(ctx, models.ViewList)
	_ = s.Logout("ana")

	ws, _ = s.Login(ctx, "ana")
	if err := ws.Discard(ctx); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	v := ws.Status()
	if v.ResumePending || v.DayKey != "push" {
		t.Errorf("after discard: %+v", v)
	}
	if err := ws.Resume(ctx); !errors.Is(err, ErrNothingToResume) {
		t.Errorf("Resume after discard = %v", err)
	}
}

// TestKeypadEditsDraft verifies the keypad writes into the focused draft and
// LogDraft submits it.
func TestKeypadEditsDraft(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{}, &fakeLogs{})
	ws, _ := s.Login(ctx, "ana")
	_ = ws.StartWorkout(ctx, models.ViewList)

	if v, err := ws.Focus("Bench Press", "reps"); err != nil || v != "10" {
		t.Fatalf("Focus reps = %q, %v; want prefilled 10", v, err)
	}
	ws.Press("8")
	if _, err := ws.Focus("Bench Press", "kg"); err != nil {
		t.Fatalf("Focus kg: %v", err)
	}
	for _, k := range []string{"6", "2", ".", "5"} {
		if _, err := ws.Press(k); err != nil {
			t.Fatalf("Press(%s): %v", k, err)
		}
	}
	ws.DismissKeypad()

	res, err := ws.LogDraft(ctx, "Bench Press")
	if err != nil {
		t.Fatalf("LogDraft: %v", err)
	}
	if res.Set.Kg != "62.5" || res.Set.Reps != "8" {
		t.Errorf("logged draft = %+v", res.Set)
	}
	if _, err := ws.Focus("Bench Press", "rir"); !errors.Is(err, ErrBadField) {
		t.Errorf("Focus(rir) = %v", err)
	}
}

// TestCircuitControls verifies only timed slides open the circuit engine.
func TestCircuitControls(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakePlans{}, &fakeLogs{})
	ws, _ := s.Login(ctx, "ana")
	_ = ws.StartWorkout(ctx, models.ViewGuided)

	if _, err := ws.OpenCircuit(0); !errors.Is(err, ErrNotTimed) {
		t.Errorf("OpenCircuit(0) = %v, want ErrNotTimed", err)
	}
	if _, err := ws.StartCircuit(); !errors.Is(err, ErrNoCircuit) {
		t.Errorf("StartCircuit with nothing open = %v", err)
	}
	st, err := ws.OpenCircuit(1)
	if err != nil {
		t.Fatalf("OpenCircuit(1): %v", err)
	}
	if st.Exercise != "Burpee" || st.Remaining != 30 || st.TotalRounds != 2 {
		t.Errorf("opened = %+v", st)
	}
	if st, _ = ws.StartCircuit(); !st.Active {
		t.Error("circuit not active after start")
	}
	st, _ = ws.TickCircuit()
	if st.Remaining != 29 {
		t.Errorf("Remaining = %d, want 29", st.Remaining)
	}
	st, _ = ws.SkipCircuit()
	if st.Exercise != "Push-up" {
		t.Errorf("after skip = %+v", st)
	}
	ws.CloseCircuit()
	if ws.Status().Circuit != nil {
		t.Error("circuit still shown after close")
	}
}
