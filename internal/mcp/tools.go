package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/history"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/scoring"
)

// timeRange parses optional bounds. A missing bound is the zero time,
// meaning unbounded.
func timeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = parseFlexTime(startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		if end, err = parseFlexTime(endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

// --- Tool definitions ---

var userParam = mcp.WithString("user", mcp.Description("Client identifier. Defaults to the configured client."))

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("List logged workout sessions, newest first. Each session has its name, date, total time, volume (kg x reps), exercises with sets, and whether it contains a personal record."),
	userParam,
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Unbounded if omitted.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Unbounded if omitted.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions. Defaults to 20.")),
)

var toolGetSessionDetail = mcp.NewTool("get_session_detail",
	mcp.WithDescription("Get every exercise row and the summary row of one session."),
	userParam,
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from get_sessions")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List exercise names that have logged sets."),
	userParam,
	mcp.WithString("filter", mcp.Description("Case-insensitive substring filter")),
)

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Per-session best estimated 1RM and heaviest weight for one exercise, oldest first."),
	userParam,
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exact exercise name (see list_exercises)")),
	mcp.WithString("start", mcp.Description("Start date. Unbounded if omitted.")),
	mcp.WithString("end", mcp.Description("End date. Unbounded if omitted.")),
)

var toolGetPersonalBest = mcp.NewTool("get_personal_best",
	mcp.WithDescription("Best estimated 1RM and heaviest weight ever logged for an exercise."),
	userParam,
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exact exercise name")),
)

var toolGetTrainingStats = mcp.NewTool("get_training_stats",
	mcp.WithDescription("Totals across the whole history: sessions, sets, volume, date range and most trained exercises."),
	userParam,
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Training load per period: sessions, working sets, tonnage (kg x reps) and personal records, newest period first."),
	userParam,
	mcp.WithString("start", mcp.Description("Start date. Unbounded if omitted.")),
	mcp.WithString("end", mcp.Description("End date. Unbounded if omitted.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 week'."), mcp.Enum("1 day", "1 week", "1 month")),
)

var toolEstimate1RM = mcp.NewTool("estimate_1rm",
	mcp.WithDescription("Estimate a one-rep max from a weight and rep count (Epley). A single rep returns the weight."),
	mcp.WithNumber("weight", mcp.Required(), mcp.Description("Weight in kg")),
	mcp.WithNumber("reps", mcp.Required(), mcp.Description("Repetitions performed")),
)

// --- Tool handlers ---

func (h *handlers) rows(ctx context.Context, req mcp.CallToolRequest, tool string) ([]models.LogRow, *mcp.CallToolResult) {
	client := h.client(ctx, req.GetString("user", ""))
	if client == "" {
		return nil, mcp.NewToolResultError("user parameter is required")
	}
	rows, err := h.ds.FetchLogs(ctx, client)
	if err != nil {
		h.log.Error("mcp "+tool, "client_id", client, "error", err)
		return nil, mcp.NewToolResultError("query failed: " + err.Error())
	}
	return rows, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	rows, fail := h.rows(ctx, req, "get_sessions")
	if fail != nil {
		return fail, nil
	}

	limit := req.GetInt("limit", 20)
	var out []history.Session
	for _, s := range history.Sessions(rows) {
		if !inRange(s.RawDate, start, end) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return jsonResult(out)
}

func (h *handlers) getSessionDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	rows, fail := h.rows(ctx, req, "get_session_detail")
	if fail != nil {
		return fail, nil
	}
	detail, ok := history.SessionDetail(rows, id)
	if !ok {
		return mcp.NewToolResultError("session not found: " + id), nil
	}
	return jsonResult(detail)
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, fail := h.rows(ctx, req, "list_exercises")
	if fail != nil {
		return fail, nil
	}
	return jsonResult(history.Exercises(rows, req.GetString("filter", "")))
}

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	rows, fail := h.rows(ctx, req, "get_exercise_progress")
	if fail != nil {
		return fail, nil
	}

	var points []history.Point
	for _, p := range history.Progress(rows, exercise) {
		if inRange(p.RawDate, start, end) {
			points = append(points, p)
		}
	}
	return jsonResult(points)
}

func (h *handlers) getPersonalBest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	rows, fail := h.rows(ctx, req, "get_personal_best")
	if fail != nil {
		return fail, nil
	}
	return jsonResult(history.Best(rows, exercise))
}

func (h *handlers) getTrainingStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client := h.client(ctx, req.GetString("user", ""))
	if client == "" {
		return mcp.NewToolResultError("user parameter is required"), nil
	}
	stats, err := h.ds.GetDataStats(ctx, client)
	if err != nil {
		h.log.Error("mcp get_training_stats", "client_id", client, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(stats)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client := h.client(ctx, req.GetString("user", ""))
	if client == "" {
		return mcp.NewToolResultError("user parameter is required"), nil
	}
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	periods, err := h.ds.GetTrainingSummary(ctx, client, start, end, req.GetString("bucket", "1 week"))
	if err != nil {
		h.log.Error("mcp get_training_summary", "client_id", client, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(periods)
}

func (h *handlers) estimate1RM(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weight, err := req.RequireFloat("weight")
	if err != nil {
		return mcp.NewToolResultError("weight parameter is required"), nil
	}
	reps, err := req.RequireFloat("reps")
	if err != nil {
		return mcp.NewToolResultError("reps parameter is required"), nil
	}
	if weight < 0 || reps < 0 {
		return mcp.NewToolResultError("weight and reps must not be negative"), nil
	}
	return jsonResult(map[string]float64{
		"weight":        weight,
		"reps":          reps,
		"estimated_1rm": scoring.Estimate1RM(weight, reps),
	})
}
