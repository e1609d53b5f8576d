package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	FetchLogs(ctx context.Context, clientID string) ([]models.LogRow, error)
	GetDataStats(ctx context.Context, clientID string) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, clientID string, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
