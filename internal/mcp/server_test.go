package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/history"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

type fakeSource struct {
	rows    map[string][]models.LogRow
	err     error
	clients []string
}

func (f *fakeSource) FetchLogs(_ context.Context, clientID string) ([]models.LogRow, error) {
	f.clients = append(f.clients, clientID)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[clientID], nil
}

func (f *fakeSource) GetDataStats(_ context.Context, clientID string) (*storage.DataStats, error) {
	f.clients = append(f.clients, clientID)
	if f.err != nil {
		return nil, f.err
	}
	return &storage.DataStats{TotalSessions: int64(len(history.Sessions(f.rows[clientID])))}, nil
}

func (f *fakeSource) GetTrainingSummary(_ context.Context, clientID string, start, _ time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error) {
	f.clients = append(f.clients, clientID)
	if f.err != nil {
		return nil, f.err
	}
	return []storage.TrainingSummaryPeriod{{Period: start.Format("2006-01-02"), Sessions: 1}, {Period: bucket}}, nil
}

func row(session, exercise string, at time.Time, kg, reps string) models.LogRow {
	return models.LogRow{
		ClientID:     "ana",
		SessionID:    session,
		ExerciseName: exercise,
		RawDate:      at,
		Date:         at.Format("02/01/2006"),
		SetsPerformed: []models.ExerciseSet{
			{Serie: 1, Kg: models.NumText(kg), Reps: models.NumText(reps)},
		},
	}
}

func testRows() []models.LogRow {
	d1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	vol := 500.0
	return []models.LogRow{
		row("s1", "Squat", d1, "100", "5"),
		row("s1", "Bench Press", d1, "60", "8"),
		{ClientID: "ana", SessionID: "s1", ExerciseName: models.SummaryExerciseName, RawDate: d1,
			NameWorkout: "Legs", TotalVolumeSession: &vol},
		row("s2", "Squat", d2, "110", "3"),
	}
}

func newTestHandlers(ds DataSource, defaultClient string) *handlers {
	return &handlers{ds: ds, defaultClient: defaultClient, log: slog.Default()}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

// TestClientIDFromContext verifies the transport-scoped client round trips
// and an empty id counts as unset.
func TestClientIDFromContext(t *testing.T) {
	if _, ok := ClientIDFromContext(context.Background()); ok {
		t.Error("empty context reported a client")
	}
	if id, ok := ClientIDFromContext(WithClientID(context.Background(), "ana")); !ok || id != "ana" {
		t.Errorf("ClientIDFromContext = %q, %v", id, ok)
	}
	if _, ok := ClientIDFromContext(WithClientID(context.Background(), "")); ok {
		t.Error("blank client reported as set")
	}
}

// TestClientResolution verifies argument, context and default precedence.
func TestClientResolution(t *testing.T) {
	h := newTestHandlers(&fakeSource{}, "Default")
	ctx := WithClientID(context.Background(), "Ctx")

	tests := []struct {
		name string
		ctx  context.Context
		arg  string
		want string
	}{
		{"argument wins", ctx, " Arg ", "arg"},
		{"context", ctx, "", "ctx"},
		{"default", context.Background(), "", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.client(tt.ctx, tt.arg); got != tt.want {
				t.Errorf("client = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTimeRange verifies optional bounds and parsing.
func TestTimeRange(t *testing.T) {
	start, end, err := timeRange("", "")
	if err != nil || !start.IsZero() || !end.IsZero() {
		t.Errorf("empty range = %v, %v, %v", start, end, err)
	}

	start, end, err = timeRange("2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Day() != 1 || end.Day() != 31 {
		t.Errorf("range = %v - %v", start, end)
	}

	start, _, err = timeRange("2024-06-15T10:30:00Z", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	if _, _, err := timeRange("not-a-date", ""); err == nil {
		t.Error("expected error for invalid date")
	}
}

// TestGetSessionsTool verifies sessions are returned newest first and the
// start bound filters older ones.
func TestGetSessionsTool(t *testing.T) {
	ds := &fakeSource{rows: map[string][]models.LogRow{"ana": testRows()}}
	h := newTestHandlers(ds, "ana")

	res, err := h.getSessions(context.Background(), callRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("getSessions: %v %v", err, res)
	}
	var sessions []history.Session
	if err := json.Unmarshal([]byte(resultText(t, res)), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].ID != "s2" || sessions[1].Name != "Legs" {
		t.Fatalf("sessions = %+v", sessions)
	}

	res, _ = h.getSessions(context.Background(), callRequest(map[string]any{"start": "2026-02-05"}))
	sessions = nil
	if err := json.Unmarshal([]byte(resultText(t, res)), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s2" {
		t.Errorf("filtered sessions = %+v", sessions)
	}

	res, _ = h.getSessions(context.Background(), callRequest(map[string]any{"start": "soon"}))
	if !res.IsError {
		t.Error("bad start date accepted")
	}
}

// TestPersonalBestTool verifies the best 1RM across sessions.
func TestPersonalBestTool(t *testing.T) {
	ds := &fakeSource{rows: map[string][]models.LogRow{"ana": testRows()}}
	h := newTestHandlers(ds, "")

	res, _ := h.getPersonalBest(context.Background(), callRequest(map[string]any{"exercise": "Squat", "user": "Ana"}))
	if res.IsError {
		t.Fatalf("error result: %s", resultText(t, res))
	}
	var pb history.PersonalBest
	if err := json.Unmarshal([]byte(resultText(t, res)), &pb); err != nil {
		t.Fatal(err)
	}
	// 100x5 → 117, 110x3 → 121
	if pb.Best1RM != 121 || pb.MaxWeight != 110 {
		t.Errorf("best = %+v", pb)
	}

	res, _ = h.getPersonalBest(context.Background(), callRequest(map[string]any{"exercise": "Squat"}))
	if !res.IsError {
		t.Error("missing client accepted")
	}
	res, _ = h.getPersonalBest(context.Background(), callRequest(map[string]any{"user": "ana"}))
	if !res.IsError {
		t.Error("missing exercise accepted")
	}
}

// TestSessionDetailTool verifies unknown ids and fetch failures surface as
// tool errors rather than protocol errors.
func TestSessionDetailTool(t *testing.T) {
	ds := &fakeSource{rows: map[string][]models.LogRow{"ana": testRows()}}
	h := newTestHandlers(ds, "ana")

	res, err := h.getSessionDetail(context.Background(), callRequest(map[string]any{"session_id": "s1"}))
	if err != nil || res.IsError {
		t.Fatalf("getSessionDetail: %v", err)
	}
	var d history.Detail
	if err := json.Unmarshal([]byte(resultText(t, res)), &d); err != nil {
		t.Fatal(err)
	}
	if len(d.Exercises) != 2 || d.Summary == nil {
		t.Errorf("detail = %+v", d)
	}

	res, _ = h.getSessionDetail(context.Background(), callRequest(map[string]any{"session_id": "nope"}))
	if !res.IsError {
		t.Error("unknown session accepted")
	}

	ds.err = errors.New("db down")
	res, err = h.getSessionDetail(context.Background(), callRequest(map[string]any{"session_id": "s1"}))
	if err != nil || !res.IsError {
		t.Errorf("fetch failure = %v, %v", res, err)
	}
}

// TestEstimate1RMTool verifies the Epley estimate and the single-rep case.
func TestEstimate1RMTool(t *testing.T) {
	h := newTestHandlers(&fakeSource{}, "")
	tests := []struct {
		weight, reps float64
		want         float64
	}{
		{100, 1, 100},
		{100, 10, 133},
		{0, 5, 0},
	}
	for _, tt := range tests {
		res, _ := h.estimate1RM(context.Background(), callRequest(map[string]any{"weight": tt.weight, "reps": tt.reps}))
		var got map[string]float64
		if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
			t.Fatal(err)
		}
		if got["estimated_1rm"] != tt.want {
			t.Errorf("estimate(%v, %v) = %v, want %v", tt.weight, tt.reps, got["estimated_1rm"], tt.want)
		}
	}

	res, _ := h.estimate1RM(context.Background(), callRequest(map[string]any{"weight": -5.0, "reps": 3.0}))
	if !res.IsError {
		t.Error("negative weight accepted")
	}
}

// TestExerciseCatalogResource verifies every exercise is listed with its best.
func TestExerciseCatalogResource(t *testing.T) {
	ds := &fakeSource{rows: map[string][]models.LogRow{"ana": testRows()}}
	h := newTestHandlers(ds, "ana")

	var req mcp.ReadResourceRequest
	req.Params.URI = "liftlog://exercise_catalog"
	contents, err := h.exerciseCatalog(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents)
	var catalog []history.PersonalBest
	if err := json.Unmarshal([]byte(text.Text), &catalog); err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 2 || catalog[0].Exercise != "Bench Press" || catalog[1].Best1RM != 121 {
		t.Errorf("catalog = %+v", catalog)
	}

	if _, err := newTestHandlers(ds, "").exerciseCatalog(context.Background(), req); err == nil {
		t.Error("catalog without a client should fail")
	}
}

// TestTrainingSummaryTool verifies the bucket defaults to weekly and the
// start bound is passed through.
func TestTrainingSummaryTool(t *testing.T) {
	ds := &fakeSource{}
	h := newTestHandlers(ds, "ana")

	res, _ := h.getTrainingSummary(context.Background(), callRequest(map[string]any{"start": "2026-03-02"}))
	if res.IsError {
		t.Fatalf("error result: %s", resultText(t, res))
	}
	var periods []storage.TrainingSummaryPeriod
	if err := json.Unmarshal([]byte(resultText(t, res)), &periods); err != nil {
		t.Fatal(err)
	}
	if len(periods) != 2 || periods[0].Period != "2026-03-02" || periods[1].Period != "1 week" {
		t.Errorf("periods = %+v", periods)
	}
	if len(ds.clients) != 1 || ds.clients[0] != "ana" {
		t.Errorf("clients = %v", ds.clients)
	}
}
