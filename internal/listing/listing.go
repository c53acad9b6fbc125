// Package listing turns the recent-actions index into listing entries and
// loads the text of their detail pages.
package listing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// Source yields recent listing entries and their detail text. It never
// returns transport or parse errors; failures are logged and degrade to
// an empty list or a missing detail.
type Source interface {
	ListRecent(ctx context.Context) []model.ListingEntry
	FetchDetail(ctx context.Context, entry model.ListingEntry) (string, bool)
}

// Pager downloads a page.
type Pager interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FailureRecorder counts degraded fetches by error kind.
type FailureRecorder interface {
	RecordFetchFailure(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordFetchFailure(string) {}

// errorKind names the taxonomy bucket of err for logs and metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrTransport):
		return "transport"
	case errors.Is(err, model.ErrParse):
		return "parse"
	default:
		return "unknown"
	}
}

// detailText fetches url and extracts its readable text.
func detailText(ctx context.Context, pager Pager, rec FailureRecorder, log *slog.Logger, entry model.ListingEntry) (string, bool) {
	body, err := pager.Fetch(ctx, entry.DetailURL)
	if err != nil {
		rec.RecordFetchFailure(errorKind(err))
		log.Warn("fetch detail", "id", entry.Identifier, "url", entry.DetailURL, "error", err)
		return "", false
	}
	text, err := ExtractText(body)
	if err != nil {
		rec.RecordFetchFailure(errorKind(err))
		log.Warn("extract detail text", "id", entry.Identifier, "url", entry.DetailURL, "error", err)
		return "", false
	}
	return text, true
}
