package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/claude/liftlog/internal/app"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/storage"
)

// StatsStore serves the history statistics endpoints.
type StatsStore interface {
	GetDataStats(ctx context.Context, clientID string) (*storage.DataStats, error)
	QueryImportLogs(ctx context.Context, clientID string, limit int) ([]storage.ImportLog, error)
	GetTrainingSummary(ctx context.Context, clientID string, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
}

// Importer stores an uploaded history export for a client.
type Importer interface {
	Ingest(ctx context.Context, r io.Reader, clientID string) (*ingest.Result, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	app    *app.Service
	stats  StatsStore
	alpha  Importer
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(svc *app.Service, stats StatsStore, alpha Importer, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		app:    svc,
		stats:  stats,
		alpha:  alpha,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(UserPath)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Post("/days/{key}", s.handleSelectDay)

		r.Route("/workout", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/finish", s.handleFinish)
			r.Post("/exit", s.handleExit)
			r.Post("/resume", s.handleResume)
			r.Post("/discard", s.handleDiscard)
			r.Post("/sets", s.handleLogSet)
			// Exercise names may hold "/" so they travel in the query.
			r.Post("/sets/draft", s.handleLogDraft)
			r.Delete("/sets", s.handleDeleteSet)
			r.Post("/slides/next", s.handleNextSlide)
			r.Post("/slides/prev", s.handlePrevSlide)
		})

		r.Route("/keypad", func(r chi.Router) {
			r.Post("/focus", s.handleKeypadFocus)
			r.Post("/press", s.handleKeypadPress)
			r.Post("/dismiss", s.handleKeypadDismiss)
		})

		r.Route("/timer/rest", func(r chi.Router) {
			r.Post("/cancel", s.handleRestCancel)
			r.Post("/add", s.handleRestAdd)
			r.Post("/minimize", s.handleRestMinimize)
			r.Post("/tick", s.handleRestTick)
		})

		r.Route("/circuit", func(r chi.Router) {
			r.Post("/{slide}/open", s.handleCircuitOpen)
			r.Post("/start", s.handleCircuitStart)
			r.Post("/pause", s.handleCircuitPause)
			r.Post("/skip", s.handleCircuitSkip)
			r.Post("/tick", s.handleCircuitTick)
			r.Post("/close", s.handleCircuitClose)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/logs", s.handleHistoryLogs)
			r.Get("/sessions", s.handleHistorySessions)
			r.Get("/sessions/{id}", s.handleHistorySession)
			r.Get("/exercises", s.handleHistoryExercises)
			r.Get("/progress", s.handleHistoryProgress)
			r.Get("/best", s.handleHistoryBest)
			r.Get("/stats", s.handleStats)
			r.Get("/summary", s.handleTrainingSummary)
			r.Get("/imports", s.handleImportLogs)
		})

		// Imports need the API key.
		r.Route("/import", func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/alpha", s.handleAlphaImport)
		})
	})
}
