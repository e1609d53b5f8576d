package alpha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Source names the import in import_logs.
const Source = "alpha_progression"

// Store is the part of the database an import writes to.
type Store interface {
	ReplaceSessionRows(ctx context.Context, clientID, sessionID string, rows []models.LogRow) (int64, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

// Provider imports Alpha Progression CSV exports into a client's history.
type Provider struct {
	db  Store
	log *slog.Logger
	now func() time.Time
}

// NewProvider creates a Provider.
func NewProvider(db Store, log *slog.Logger) *Provider {
	return &Provider{db: db, log: log, now: time.Now}
}

// Ingest parses an export and replaces each of its sessions in the client's
// history. Every run is recorded in import_logs; a failure to record it is
// only logged.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, clientID string) (*ingest.Result, error) {
	start := p.now()
	logID, err := p.db.InsertImportLog(ctx, storage.ImportLog{ClientID: clientID, Source: Source, Status: ingest.StatusRunning})
	if err != nil {
		p.log.Warn("recording import start", "client_id", clientID, "error", err)
	}

	result, err := p.ingest(ctx, r, clientID)
	if logID != 0 {
		p.finishLog(ctx, logID, clientID, result, err, p.now().Sub(start))
	}
	if err != nil {
		return nil, err
	}
	p.log.Info("alpha import done", "client_id", clientID,
		"sessions", result.SessionsImported, "rows", result.RowsInserted, "warmups_skipped", result.WarmupsSkipped)
	return result, nil
}

func (p *Provider) ingest(ctx context.Context, r io.Reader, clientID string) (*ingest.Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return &ingest.Result{}, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(sessions)}
	for _, s := range sessions {
		for _, ex := range s.Exercises {
			for _, set := range ex.Sets {
				if set.IsWarmup {
					result.WarmupsSkipped++
				} else {
					result.SetsReceived++
				}
			}
		}
		rows := ToLogRows(clientID, s)
		if len(rows) == 0 {
			continue
		}
		n, err := p.db.ReplaceSessionRows(ctx, clientID, SessionID(clientID, s), rows)
		if err != nil {
			return result, fmt.Errorf("storing session %s (%s): %w", s.Name, s.Date.Format("2006-01-02"), err)
		}
		result.SessionsImported++
		result.RowsInserted += n
	}
	if result.SessionsReceived == 0 {
		result.Message = "no sessions found in export"
	}
	return result, nil
}

func (p *Provider) finishLog(ctx context.Context, id int64, clientID string, result *ingest.Result, importErr error, elapsed time.Duration) {
	ms := int(elapsed.Milliseconds())
	entry := storage.ImportLog{
		ClientID:   clientID,
		Source:     Source,
		Status:     ingest.StatusSuccess,
		DurationMs: &ms,
	}
	if result != nil {
		entry.SessionsReceived = result.SessionsReceived
		entry.RowsInserted = result.RowsInserted
		if meta, err := json.Marshal(result); err == nil {
			raw := json.RawMessage(meta)
			entry.Metadata = &raw
		}
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = ingest.StatusError
		entry.ErrorMessage = &msg
	}
	// The request context may already be cancelled by the time a failed
	// import is recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.db.UpdateImportLog(ctx, id, entry); err != nil {
		p.log.Error("recording import result", "client_id", clientID, "error", err)
	}
}
