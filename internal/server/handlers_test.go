package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/history"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plan"
	"github.com/claude/liftlog/internal/snapshot"
	"github.com/claude/liftlog/internal/storage"
)

const planJSON = `{"legs": {"name": "Leg Day", "exercises": [
	{"order": 1, "name": "Squat", "reps": "5", "sets": 3, "rest": "120"},
	{"order": 2, "name": "EMOM", "isEMOM": true, "emomDetails": {"totalIntervals": 6},
	 "items": [{"name": "Jump Squat", "reps": "10"}]}
]}}`

const curlPlanJSON = `{"arms": {"name": "Arm Day", "exercises": [
	{"order": 1, "name": "Curl 21s (7/7/7)", "reps": "21", "sets": 2, "rest": "60"}
]}}`

type stubPlans map[string]error

func (p stubPlans) Fetch(_ context.Context, user string) (*models.WorkoutData, error) {
	if err, ok := p[user]; ok {
		return nil, err
	}
	doc := planJSON
	if user == "curls" {
		doc = curlPlanJSON
	}
	var w models.WorkoutData
	if err := json.Unmarshal([]byte(doc), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

type memLogs struct {
	mu   sync.Mutex
	rows []models.LogRow
}

func (m *memLogs) FetchLogs(_ context.Context, clientID string) ([]models.LogRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LogRow
	for _, r := range m.rows {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memLogs) SaveSession(_ context.Context, clientID string, s models.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, storage.SessionRows(clientID, s, time.Now())...)
	return nil
}

type stubStats struct{}

func (stubStats) GetTrainingSummary(_ context.Context, clientID string, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error) {
	return []storage.TrainingSummaryPeriod{{Period: start.Format("2006-01-02") + "/" + bucket, Sessions: 2}}, nil
}

func (stubStats) GetDataStats(_ context.Context, clientID string) (*storage.DataStats, error) {
	return &storage.DataStats{TotalSessions: 3}, nil
}

func (stubStats) QueryImportLogs(_ context.Context, clientID string, limit int) ([]storage.ImportLog, error) {
	return []storage.ImportLog{{ClientID: clientID, Source: "alpha_progression", Status: ingest.StatusSuccess}}, nil
}

type stubImporter struct {
	client string
	body   string
}

func (s *stubImporter) Ingest(_ context.Context, r io.Reader, clientID string) (*ingest.Result, error) {
	b, _ := io.ReadAll(r)
	s.client, s.body = clientID, string(b)
	return &ingest.Result{SessionsReceived: 1}, nil
}

func newTestServer(t *testing.T) (*Server, *stubImporter) {
	t.Helper()
	snaps, err := snapshot.Open(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("snapshot.Open: %v", err)
	}
	t.Cleanup(func() { snaps.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	plans := stubPlans{"ghost": plan.ErrUserNotFound, "broken": fmt.Errorf("loading: %w", plan.ErrMalformedPlan)}
	svc := app.NewService(plans, &memLogs{}, snaps, log)
	t.Cleanup(svc.Close)

	imp := &stubImporter{}
	return New(svc, stubStats{}, imp, "secret", log), imp
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

// TestLoginStatusCodes verifies login resolves the user and maps plan
// failures to status codes.
func TestLoginStatusCodes(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"body user", "/api/v1/login", `{"user": "  Ana "}`, http.StatusOK},
		{"query user", "/api/v1/login?usuario=ben", "", http.StatusOK},
		{"path user", "/app_cam/api/v1/login", "", http.StatusOK},
		{"no user", "/api/v1/login", `{}`, http.StatusBadRequest},
		{"unknown user", "/api/v1/login", `{"user": "ghost"}`, http.StatusNotFound},
		{"malformed plan", "/api/v1/login", `{"user": "broken"}`, http.StatusBadGateway},
		{"bad json", "/api/v1/login", `{"user":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := do(t, s, http.MethodGet, "/app_ana/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status for ana = %d", rec.Code)
	}
	if v := decode[app.View](t, rec); v.User != "ana" || v.DayKey != "legs" || len(v.Slides) != 2 {
		t.Errorf("view = %+v", v)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/status?user=zoe", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status for logged-out user = %d, want 401", rec.Code)
	}
}

// TestWorkoutFlow drives a workout over HTTP from start to history.
func TestWorkoutFlow(t *testing.T) {
	s, _ := newTestServer(t)
	q := "?user=ana"
	if rec := do(t, s, http.MethodPost, "/api/v1/login", `{"user":"ana"}`); rec.Code != http.StatusOK {
		t.Fatalf("login = %d", rec.Code)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/workout/sets"+q, `{"exercise":"Squat","kg":100,"reps":5}`); rec.Code != http.StatusConflict {
		t.Errorf("log before start = %d, want 409", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/workout/start"+q, `{"mode":"guided"}`); rec.Code != http.StatusOK {
		t.Fatalf("start = %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodPost, "/api/v1/workout/sets"+q, `{"exercise":"Squat","kg":100,"reps":"5"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("log set = %d %s", rec.Code, rec.Body.String())
	}
	res := decode[app.LogResult](t, rec)
	if res.Set.Serie != 1 || res.Set.Kg != "100" || res.RestSeconds != 120 {
		t.Errorf("log result = %+v", res)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/workout/sets"+q, `{"exercise":"Lunge","reps":"5"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown exercise = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/workout/sets"+q, `{"exercise":"Squat","kg":"100"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing reps = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/workout/sets"+q+"&exercise=Squat&index=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad index = %d, want 400", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/workout/slides/next"+q, "")
	if got := decode[map[string]int](t, rec); got["cursor"] != 1 {
		t.Errorf("cursor = %v", got)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/circuit/0/open"+q, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("open non-timed slide = %d, want 400", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/circuit/1/open"+q, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("open emom = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/v1/timer/rest/add"+q, `{"seconds":15}`)
	if got := decode[map[string]any](t, rec); got["remaining"] != float64(135) {
		t.Errorf("rest after add = %v", got)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/workout/finish"+q, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("finish = %d %s", rec.Code, rec.Body.String())
	}
	if sum := decode[models.SessionSummary](t, rec); sum.WorkoutName != "Leg Day" || sum.TotalVolume != 500 {
		t.Errorf("summary = %+v", sum)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/history/sessions"+q, "")
	sessions := decode[[]history.Session](t, rec)
	if len(sessions) != 1 || sessions[0].Name != "Leg Day" {
		t.Fatalf("sessions = %+v", sessions)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/sessions/"+sessions[0].ID+q, ""); rec.Code != http.StatusOK {
		t.Errorf("session detail = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/sessions/nope"+q, ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing session = %d, want 404", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/history/progress?exercise=Squat&user=ana", "")
	if pts := decode[[]history.Point](t, rec); len(pts) != 1 || pts[0].Best1RM != 117 {
		t.Errorf("progress = %+v", pts)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/progress"+q, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("progress without exercise = %d, want 400", rec.Code)
	}
}

// TestExerciseNameWithSlash verifies the draft and delete endpoints reach an
// exercise whose name holds "/" and parentheses, with or without /app_<id>.
func TestExerciseNameWithSlash(t *testing.T) {
	s, _ := newTestServer(t)
	name := url.QueryEscape("Curl 21s (7/7/7)")
	if rec := do(t, s, http.MethodPost, "/api/v1/login", `{"user":"curls"}`); rec.Code != http.StatusOK {
		t.Fatalf("login = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/app_curls/api/v1/workout/start", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("start = %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodPost, "/app_curls/api/v1/workout/sets/draft?exercise="+name, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("draft = %d %s", rec.Code, rec.Body.String())
	}
	if res := decode[app.LogResult](t, rec); res.Set.Serie != 1 || res.Set.Reps != "21" {
		t.Errorf("draft set = %+v", res.Set)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/workout/sets?user=curls", `{"exercise":"Curl 21s (7/7/7)","kg":"12","reps":"21"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("log set = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodDelete, "/api/v1/workout/sets?user=curls&index=0&exercise="+name, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d %s", rec.Code, rec.Body.String())
	}
	v := decode[app.View](t, rec)
	if v.Session == nil || len(v.Session.Entries) != 1 {
		t.Fatalf("view after delete = %+v", v)
	}
	sets := v.Session.Entries[0].SetsPerformed
	if len(sets) != 1 || sets[0].Kg != "12" {
		t.Errorf("remaining sets = %+v", sets)
	}

	if rec := do(t, s, http.MethodDelete, "/app_curls/api/v1/workout/sets?index=0&exercise="+name, ""); rec.Code != http.StatusOK {
		t.Errorf("delete via /app_curls = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodDelete, "/app_curls/api/v1/workout/sets?index=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("delete without exercise = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/app_curls/api/v1/workout/sets/draft", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("draft without exercise = %d, want 400", rec.Code)
	}
}

// TestResumeOverHTTP verifies logging out keeps the session for the next
// login.
func TestResumeOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/login", `{"user":"ana"}`)
	do(t, s, http.MethodPost, "/app_ana/api/v1/workout/start", `{}`)
	do(t, s, http.MethodPost, "/app_ana/api/v1/workout/sets", `{"exercise":"Squat","kg":"90","reps":"5"}`)
	if rec := do(t, s, http.MethodPost, "/app_ana/api/v1/logout", ""); rec.Code != http.StatusOK {
		t.Fatalf("logout = %d", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/login", `{"user":"ana"}`)
	if v := decode[app.View](t, rec); !v.ResumePending {
		t.Fatal("saved session not offered after login")
	}
	if rec := do(t, s, http.MethodPost, "/app_ana/api/v1/workout/start", `{}`); rec.Code != http.StatusConflict {
		t.Errorf("start with a saved session = %d, want 409", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/app_ana/api/v1/workout/resume", "")
	if v := decode[app.View](t, rec); v.Session == nil || len(v.Session.Entries) != 1 {
		t.Errorf("resumed view = %+v", v)
	}
}

// TestImportAndStats verifies the API key guard and the stats endpoints.
func TestImportAndStats(t *testing.T) {
	s, imp := newTestServer(t)

	if rec := do(t, s, http.MethodPost, "/api/v1/import/alpha?user=ana", "csv"); rec.Code != http.StatusUnauthorized {
		t.Errorf("import without key = %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/import/alpha?user=ana", "csv", "X-API-Key", "nope"); rec.Code != http.StatusForbidden {
		t.Errorf("import with wrong key = %d, want 403", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/v1/import/alpha?user=Ana", "csv-data", "X-API-Key", "secret")
	if rec.Code != http.StatusOK || imp.client != "ana" || imp.body != "csv-data" {
		t.Errorf("import = %d, client %q, body %q", rec.Code, imp.client, imp.body)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/history/stats?user=ana", "")
	if st := decode[storage.DataStats](t, rec); st.TotalSessions != 3 {
		t.Errorf("stats = %+v", st)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/history/imports?user=ana&limit=5", "")
	if logs := decode[[]storage.ImportLog](t, rec); len(logs) != 1 || logs[0].ClientID != "ana" {
		t.Errorf("import logs = %+v", logs)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/history/summary?user=ana&start=2026-01-05&bucket=1+month", "")
	if p := decode[[]storage.TrainingSummaryPeriod](t, rec); len(p) != 1 || p[0].Period != "2026-01-05/1 month" {
		t.Errorf("summary = %+v", p)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/summary?user=ana&start=monday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("summary with bad start = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/stats", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("stats without user = %d, want 400", rec.Code)
	}
}

// TestStatusFor verifies wrapped domain errors keep their status code.
func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", plan.ErrUserNotFound), http.StatusNotFound},
		{plan.ErrMalformedPlan, http.StatusBadGateway},
		{app.ErrNotLoggedIn, http.StatusUnauthorized},
		{app.ErrResumePending, http.StatusConflict},
		{app.ErrRepsRequired, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
