// Package app ties the workout pieces together per user: plan and history
// loading, the navigation and session state machines, timers and the
// numeric keypad. Each logged-in user gets a Workspace whose methods are
// serialised by a mutex.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

var (
	ErrNoUser          = errors.New("user identifier is required")
	ErrNotLoggedIn     = errors.New("user is not logged in")
	ErrResumePending   = errors.New("a saved session must be resumed or discarded first")
	ErrNothingToResume = errors.New("no saved session to resume")
	ErrRepsRequired    = errors.New("reps are required to log a set")
	ErrUnknownExercise = errors.New("exercise is not part of the selected day")
	ErrNotTimed        = errors.New("slide is not a circuit or EMOM block")
	ErrNoCircuit       = errors.New("no circuit is open")
	ErrBadField        = errors.New("field must be kg or reps")
)

// PlanSource loads a user's workout plan.
type PlanSource interface {
	Fetch(ctx context.Context, userID string) (*models.WorkoutData, error)
}

// LogStore reads history and writes finished sessions.
type LogStore interface {
	FetchLogs(ctx context.Context, clientID string) ([]models.LogRow, error)
	session.Persister
}

// Service owns the workspaces of logged-in users.
type Service struct {
	plans     PlanSource
	logs      LogStore
	snapshots session.Store
	log       *slog.Logger

	tick        time.Duration
	sessionOpts []session.Option
	now         func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// Option configures a Service.
type Option func(*Service)

// WithTickInterval drives timers in the background at the given interval.
// Zero leaves timers to be ticked by the caller.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) { s.tick = d }
}

// WithSessionOptions passes options to every session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Service) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithClock overrides time.Now for elapsed-time views.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(plans PlanSource, logs LogStore, snapshots session.Store, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		plans:      plans,
		logs:       logs,
		snapshots:  snapshots,
		log:        log,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NormalizeUser trims and lower-cases a typed user identifier.
func NormalizeUser(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Login loads the user's plan and history in parallel and opens a
// workspace. A plan failure fails the login; a history failure only leaves
// the history empty. Logging in again replaces the previous workspace.
func (s *Service) Login(ctx context.Context, userID string) (*Workspace, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	var (
		plan    *models.WorkoutData
		history []models.LogRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.plans.Fetch(gctx, userID)
		if err != nil {
			return fmt.Errorf("loading plan: %w", err)
		}
		plan = p
		return nil
	})
	g.Go(func() error {
		rows, err := s.logs.FetchLogs(gctx, userID)
		if err != nil {
			s.log.Warn("history unavailable, continuing without it", "user", userID, "error", err)
			return nil
		}
		history = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ws := newWorkspace(s, userID, plan, history)
	pending, err := ws.sessions.Pending(ctx)
	if err != nil {
		s.log.Warn("checking for a saved session", "user", userID, "error", err)
	}
	ws.pending = pending != nil

	s.mu.Lock()
	if old, ok := s.workspaces[userID]; ok {
		old.Close()
	}
	s.workspaces[userID] = ws
	s.mu.Unlock()

	s.log.Info("user logged in", "user", userID, "days", len(plan.Keys), "history_rows", len(history), "resumable", ws.pending)
	return ws, nil
}

// Workspace returns the workspace of a logged-in user.
func (s *Service) Workspace(userID string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotLoggedIn, userID)
	}
	return ws, nil
}

// Logout closes the user's workspace. A session in progress stays in the
// snapshot store and is offered for resume on the next login.
func (s *Service) Logout(userID string) error {
	s.mu.Lock()
	ws, ok := s.workspaces[userID]
	delete(s.workspaces, userID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotLoggedIn, userID)
	}
	ws.Close()
	s.log.Info("user logged out", "user", userID)
	return nil
}

// History fetches a client's rows straight from the log store.
func (s *Service) History(ctx context.Context, clientID string) ([]models.LogRow, error) {
	return s.logs.FetchLogs(ctx, clientID)
}

// Close closes every workspace.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.workspaces {
		ws.Close()
		delete(s.workspaces, id)
	}
}
