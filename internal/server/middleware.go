package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/claude/liftlog/internal/app"
)

type contextKey int

const userKey contextKey = iota

// appPathPrefix marks per-user links such as /app_ana/api/v1/status.
const appPathPrefix = "/app_"

// APIKeyAuth returns middleware that validates the X-API-Key header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
				return
			}
			if key != apiKey {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"user", userFromRequest(r),
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserPath strips a leading /app_<id> segment from the path and records
// <id> as the request's user.
func UserPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest, ok := strings.CutPrefix(r.URL.Path, appPathPrefix)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		id, tail, _ := strings.Cut(rest, "/")
		if id = app.NormalizeUser(id); id == "" {
			next.ServeHTTP(w, r)
			return
		}
		path := "/" + tail
		r.URL.Path = path
		r.URL.RawPath = ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			rctx.RoutePath = path
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

// userFromRequest resolves the user from the path, then ?usuario=, then
// ?user=. It returns "" when none is given.
func userFromRequest(r *http.Request) string {
	if id, ok := r.Context().Value(userKey).(string); ok && id != "" {
		return id
	}
	q := r.URL.Query()
	if id := app.NormalizeUser(q.Get("usuario")); id != "" {
		return id
	}
	return app.NormalizeUser(q.Get("user"))
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
