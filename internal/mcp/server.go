// Package mcp exposes a client's workout history to AI assistants as MCP
// tools and resources.
package mcp

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const clientIDKey contextKey = iota

// ClientIDFromContext extracts the client injected by the transport layer.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey).(string)
	return id, ok && id != ""
}

// WithClientID returns a context scoped to the given client.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// New creates an MCP server with all tools and resources registered.
// defaultClient answers requests that name no client.
func New(ds DataSource, defaultClient, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLog workout history server. Query logged training sessions, exercise progress and personal bests. Weights are in kg; 1RM values are Epley estimates."),
	)

	h := &handlers{ds: ds, defaultClient: defaultClient, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetSessions, Handler: h.getSessions},
		server.ServerTool{Tool: toolGetSessionDetail, Handler: h.getSessionDetail},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetExerciseProgress, Handler: h.getExerciseProgress},
		server.ServerTool{Tool: toolGetPersonalBest, Handler: h.getPersonalBest},
		server.ServerTool{Tool: toolGetTrainingStats, Handler: h.getTrainingStats},
		server.ServerTool{Tool: toolGetTrainingSummary, Handler: h.getTrainingSummary},
		server.ServerTool{Tool: toolEstimate1RM, Handler: h.estimate1RM},
	)

	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds            DataSource
	defaultClient string
	log           *slog.Logger
}

// client resolves the client for a call: the tool argument, then the
// transport context, then the server default. Ids are matched
// case-insensitively, as the HTTP API does.
func (h *handlers) client(ctx context.Context, arg string) string {
	id := arg
	if id == "" {
		id, _ = ClientIDFromContext(ctx)
	}
	if id == "" {
		id = h.defaultClient
	}
	return strings.ToLower(strings.TrimSpace(id))
}

var resRecentSessions = mcp.NewResource(
	"liftlog://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Workout sessions from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"liftlog://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Every exercise with logged sets, with its personal best"),
	mcp.WithMIMEType("application/json"),
)
