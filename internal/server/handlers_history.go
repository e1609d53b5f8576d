package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/history"
	"github.com/claude/liftlog/internal/models"
)

// historyRows loads the history of the request's user straight from the log
// store; no login is needed.
func (s *Server) historyRows(w http.ResponseWriter, r *http.Request) ([]models.LogRow, bool) {
	user := userFromRequest(r)
	if user == "" {
		writeError(w, app.ErrNoUser)
		return nil, false
	}
	rows, err := s.app.History(r.Context(), user)
	if err != nil {
		s.log.Error("loading history", "user", user, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return rows, true
}

func (s *Server) handleHistoryLogs(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.historyRows(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []models.LogRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistorySessions(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.historyRows(w, r)
	if !ok {
		return
	}
	sessions := history.Sessions(rows)
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(sessions) {
		sessions = sessions[:limit]
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleHistorySession(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.historyRows(w, r)
	if !ok {
		return
	}
	detail, found := history.SessionDetail(rows, chi.URLParam(r, "id"))
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleHistoryExercises(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.historyRows(w, r)
	if !ok {
		return
	}
	names := history.Exercises(rows, r.URL.Query().Get("q"))
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleHistoryProgress(w http.ResponseWriter, r *http.Request) {
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	rows, ok := s.historyRows(w, r)
	if !ok {
		return
	}
	points := history.Progress(rows, exercise)
	if points == nil {
		points = []history.Point{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleHistoryBest(w http.ResponseWriter, r *http.Request) {
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	rows, ok := s.historyRows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, history.Best(rows, exercise))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if user == "" {
		writeError(w, app.ErrNoUser)
		return
	}
	stats, err := s.stats.GetDataStats(r.Context(), user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseTimeRange reads optional start and end query parameters as RFC 3339
// or YYYY-MM-DD. A missing bound is the zero time.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	parse := func(v string) (time.Time, error) {
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			t, err = time.Parse("2006-01-02", v)
		}
		return t, err
	}
	if start, err = parse(r.URL.Query().Get("start")); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = parse(r.URL.Query().Get("end")); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (s *Server) handleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if user == "" {
		writeError(w, app.ErrNoUser)
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid time format: " + err.Error()})
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "1 week"
	}
	periods, err := s.stats.GetTrainingSummary(r.Context(), user, start, end, bucket)
	if err != nil {
		s.log.Error("training summary", "user", user, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if user == "" {
		writeError(w, app.ErrNoUser)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.stats.QueryImportLogs(r.Context(), user, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if user == "" {
		writeError(w, app.ErrNoUser)
		return
	}
	result, err := s.alpha.Ingest(r.Context(), r.Body, user)
	if err != nil {
		s.log.Error("alpha import error", "user", user, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
