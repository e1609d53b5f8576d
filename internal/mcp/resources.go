package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/history"
)

// recentWindow is how far back the recent_sessions resource looks.
const recentWindow = 14 * 24 * time.Hour

var errNoClient = errors.New("no client configured")

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	client := h.client(ctx, "")
	if client == "" {
		return nil, errNoClient
	}
	rows, err := h.ds.FetchLogs(ctx, client)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-recentWindow)
	sessions := []history.Session{}
	for _, s := range history.Sessions(rows) {
		if s.RawDate.After(since) {
			sessions = append(sessions, s)
		}
	}
	return jsonContents(req.Params.URI, sessions)
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	client := h.client(ctx, "")
	if client == "" {
		return nil, errNoClient
	}
	rows, err := h.ds.FetchLogs(ctx, client)
	if err != nil {
		return nil, err
	}

	catalog := []history.PersonalBest{}
	for _, name := range history.Exercises(rows, "") {
		catalog = append(catalog, history.Best(rows, name))
	}
	return jsonContents(req.Params.URI, catalog)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
