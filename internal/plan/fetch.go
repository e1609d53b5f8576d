// Package plan fetches a user's prescribed workout plan. The plan lives in a
// small script file per user that assigns an object literal to
// workoutData; the literal is extracted and decoded as data, never run.
package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
)

var (
	// ErrUserNotFound means the plan host had no document for the user.
	ErrUserNotFound = errors.New("user not found or has no plan assigned")
	// ErrMalformedPlan means the document was found but could not be read.
	ErrMalformedPlan = errors.New("malformed plan document")
)

// maxDocumentSize bounds the plan download.
const maxDocumentSize = 4 << 20

// Options configures a Fetcher.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport failure.
	Retries int
	// Backoff is the delay before the first retry; it doubles each time.
	Backoff time.Duration
}

// Fetcher downloads plan documents over HTTP.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options, log *slog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    max(opts.Retries, 0),
		backoff:    opts.Backoff,
		log:        log,
		now:        time.Now,
	}
}

// Fetch downloads and decodes the plan for userID. A non-2xx response is
// ErrUserNotFound and is not retried; transport failures are retried with
// exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, userID string) (*models.WorkoutData, error) {
	body, err := f.download(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := Parse(body)
	if err != nil {
		f.log.Warn("plan document unreadable", "user", userID, "error", err)
		return nil, err
	}
	return plan, nil
}

func (f *Fetcher) download(ctx context.Context, userID string) ([]byte, error) {
	// The cache-busting parameter forces a fresh copy from CDN-backed hosts.
	u := fmt.Sprintf("%s/%s.js?v=%s", f.baseURL, url.PathEscape(userID), strconv.FormatInt(f.now().UnixMilli(), 10))

	var lastErr error
	for attempt := range f.retries + 1 {
		if attempt > 0 {
			delay := f.backoff * time.Duration(1<<uint(attempt-1))
			f.log.Debug("retrying plan fetch", "user", userID, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("building plan request: %w", err)
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: %q (status %d)", ErrUserNotFound, userID, resp.StatusCode)
		}
		if err != nil {
			lastErr = fmt.Errorf("reading plan body: %w", err)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("fetching plan after %d attempts: %w", f.retries+1, lastErr)
}
