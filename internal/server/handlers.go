package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/keypad"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/navigation"
	"github.com/claude/liftlog/internal/plan"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/timer"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User string `json:"user"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	user := app.NormalizeUser(body.User)
	if user == "" {
		user = userFromRequest(r)
	}

	ws, err := s.app.Login(r.Context(), user)
	if err != nil {
		s.log.Warn("login failed", "user", user, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Status())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if err := s.app.Logout(user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	cues, notice := ws.Events()
	if cues == nil {
		cues = []timer.Cue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cues": cues, "record": notice})
}

func (s *Server) handleSelectDay(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.SelectDay(chi.URLParam(r, "key")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Mode models.ViewMode `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Mode == "" {
		body.Mode = models.ViewList
	}
	if err := ws.StartWorkout(r.Context(), body.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Status())
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	summary, err := ws.Finish(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, func(ws *app.Workspace) error { return ws.Exit(r.Context()) })
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, func(ws *app.Workspace) error { return ws.Resume(r.Context()) })
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, func(ws *app.Workspace) error { return ws.Discard(r.Context()) })
}

type logSetRequest struct {
	Exercise string         `json:"exercise"`
	Kg       models.NumText `json:"kg"`
	Reps     models.NumText `json:"reps"`
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body logSetRequest
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := ws.LogSet(r.Context(), body.Exercise, body.Kg.String(), body.Reps.String())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogDraft(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	res, err := ws.LogDraft(r.Context(), exercise)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	exercise := q.Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid set index"})
		return
	}
	if err := ws.DeleteSet(r.Context(), exercise, index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Status())
}

func (s *Server) handleNextSlide(w http.ResponseWriter, r *http.Request) {
	s.slideAction(w, r, (*app.Workspace).NextSlide)
}

func (s *Server) handlePrevSlide(w http.ResponseWriter, r *http.Request) {
	s.slideAction(w, r, (*app.Workspace).PrevSlide)
}

func (s *Server) slideAction(w http.ResponseWriter, r *http.Request, move func(*app.Workspace, context.Context) (int, error)) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	cursor, err := move(ws, r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cursor": cursor})
}

func (s *Server) handleKeypadFocus(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Exercise string `json:"exercise"`
		Field    string `json:"field"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	value, err := ws.Focus(body.Exercise, body.Field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

func (s *Server) handleKeypadPress(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Key string `json:"key"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	value, err := ws.Press(body.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

func (s *Server) handleKeypadDismiss(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, func(ws *app.Workspace) error {
		ws.DismissKeypad()
		return nil
	})
}

func (s *Server) handleRestCancel(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.CancelRest())
}

func (s *Server) handleRestAdd(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Seconds int `json:"seconds"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, ws.AddRest(body.Seconds))
}

func (s *Server) handleRestMinimize(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	body := struct {
		Minimized bool `json:"minimized"`
	}{Minimized: true}
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, ws.MinimizeRest(body.Minimized))
}

func (s *Server) handleRestTick(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.TickRest())
}

func (s *Server) handleCircuitOpen(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	slide, err := strconv.Atoi(chi.URLParam(r, "slide"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slide index"})
		return
	}
	st, err := ws.OpenCircuit(slide)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCircuitStart(w http.ResponseWriter, r *http.Request) {
	s.circuitAction(w, r, (*app.Workspace).StartCircuit)
}

func (s *Server) handleCircuitPause(w http.ResponseWriter, r *http.Request) {
	s.circuitAction(w, r, (*app.Workspace).PauseCircuit)
}

func (s *Server) handleCircuitSkip(w http.ResponseWriter, r *http.Request) {
	s.circuitAction(w, r, (*app.Workspace).SkipCircuit)
}

func (s *Server) handleCircuitTick(w http.ResponseWriter, r *http.Request) {
	s.circuitAction(w, r, (*app.Workspace).TickCircuit)
}

func (s *Server) handleCircuitClose(w http.ResponseWriter, r *http.Request) {
	s.workspaceAction(w, r, func(ws *app.Workspace) error {
		ws.CloseCircuit()
		return nil
	})
}

func (s *Server) circuitAction(w http.ResponseWriter, r *http.Request, do func(*app.Workspace) (timer.CircuitState, error)) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	st, err := do(ws)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// workspaceAction runs do and answers with the workspace status.
func (s *Server) workspaceAction(w http.ResponseWriter, r *http.Request, do func(*app.Workspace) error) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := do(ws); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Status())
}

// workspace resolves the request's logged-in user. It writes the error
// response itself.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*app.Workspace, bool) {
	user := userFromRequest(r)
	if user == "" {
		writeError(w, app.ErrNoUser)
		return nil, false
	}
	ws, err := s.app.Workspace(user)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ws, true
}

// decodeBody reads an optional JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, plan.ErrUserNotFound),
		errors.Is(err, navigation.ErrUnknownDay),
		errors.Is(err, app.ErrUnknownExercise),
		errors.Is(err, session.ErrUnknownExercise):
		return http.StatusNotFound
	case errors.Is(err, plan.ErrMalformedPlan):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrNoUser),
		errors.Is(err, app.ErrRepsRequired),
		errors.Is(err, app.ErrBadField),
		errors.Is(err, app.ErrNotTimed),
		errors.Is(err, keypad.ErrBadKey),
		errors.Is(err, session.ErrSetIndex),
		errors.Is(err, timer.ErrNoExercises):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrSessionActive),
		errors.Is(err, app.ErrResumePending),
		errors.Is(err, app.ErrNothingToResume),
		errors.Is(err, app.ErrNoCircuit),
		errors.Is(err, keypad.ErrNoTarget),
		errors.Is(err, navigation.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
