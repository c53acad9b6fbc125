// Package detector runs detection cycles: list recent actions, evaluate the
// new ones, notify on relevant entries and persist the notification state.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aprilius996/ofac-monitor/internal/listing"
	"github.com/Aprilius996/ofac-monitor/internal/metrics"
	"github.com/Aprilius996/ofac-monitor/internal/model"
	"github.com/Aprilius996/ofac-monitor/internal/notifier"
	"github.com/Aprilius996/ofac-monitor/internal/storage"
)

// maxExcerptLines caps the excerpt section of a notification body.
const maxExcerptLines = 10

// Matcher decides relevance and extracts the lines worth quoting.
type Matcher interface {
	Relevant(text string) bool
	Excerpts(text string, limit int) ([]string, bool)
}

// Recorder receives cycle and notification metrics.
type Recorder interface {
	RecordCycle(result string, d time.Duration)
	RecordNotification(result string)
	RecordEvaluated()
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle(string, time.Duration) {}
func (nopRecorder) RecordNotification(string)         {}
func (nopRecorder) RecordEvaluated()                  {}

// Options configures the deduplication policy and the clock.
type Options struct {
	Policy   model.DedupPolicy
	Location *time.Location
	Now      func() time.Time
}

// Report summarizes one cycle.
type Report struct {
	Listed           int
	Evaluated        int
	Relevant         int
	Notified         int
	DeliveryFailures int
	Suppressed       int
}

// Detector owns the in-memory state and runs cycles against it. Cycles are
// serialized.
type Detector struct {
	source   listing.Source
	matcher  Matcher
	store    storage.Storage
	notifier notifier.Notifier
	opts     Options
	rec      Recorder
	log      *slog.Logger

	mu    sync.Mutex
	state *model.State
}

// New creates a Detector. A nil recorder disables metrics.
func New(source listing.Source, matcher Matcher, store storage.Storage, n notifier.Notifier, opts Options, rec Recorder, log *slog.Logger) *Detector {
	if opts.Policy == "" {
		opts.Policy = model.PolicyEntry
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Detector{
		source:   source,
		matcher:  matcher,
		store:    store,
		notifier: n,
		opts:     opts,
		rec:      rec,
		log:      log,
		state:    model.NewState(),
	}
}

// Restore loads the persisted state. An unreadable store is logged and the
// detector starts from an empty state.
func (d *Detector) Restore(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.store.Load(ctx)
	if err != nil {
		d.log.Warn("load state, starting empty", "error", err)
		d.state = model.NewState()
		return
	}
	d.state = st
	d.log.Info("state restored",
		"seen", len(st.SeenIdentifiers),
		"notified", len(st.NotifiedIdentifiers),
		"notified_days", len(st.NotifiedDays),
	)
}

// State returns a copy of the committed state.
func (d *Detector) State() *model.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// RunCycle performs one detection cycle. Source failures degrade to an
// empty listing and leave the state untouched. An error is returned when the
// state write fails or ctx ends mid-cycle; in both cases the committed state
// is unchanged.
func (d *Detector) RunCycle(ctx context.Context) (Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	log := d.log.With("cycle_id", uuid.NewString())
	var report Report

	entries := d.source.ListRecent(ctx)
	report.Listed = len(entries)
	if len(entries) == 0 {
		log.Warn("no listing entries, state unchanged")
		d.rec.RecordCycle(metrics.ResultEmpty, time.Since(start))
		return report, nil
	}

	now := d.opts.Now()
	today := model.Day(now, d.opts.Location)
	next := d.state.Clone()
	handled := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if next.IsSeen(entry.Identifier) {
			continue
		}
		if _, ok := handled[entry.Identifier]; ok {
			continue
		}
		handled[entry.Identifier] = struct{}{}

		if ctx.Err() != nil {
			break
		}
		d.evaluate(ctx, log, next, entry, today, &report)
	}

	// An interrupted cycle commits nothing; the next run starts from the
	// last saved state.
	if err := ctx.Err(); err != nil {
		log.Info("cycle interrupted, state unchanged", "error", err)
		d.rec.RecordCycle(metrics.ResultInterrupted, time.Since(start))
		return report, fmt.Errorf("cycle interrupted: %w", err)
	}

	t := now
	next.LastCheckedAt = &t
	if err := d.store.Save(ctx, next); err != nil {
		d.rec.RecordCycle(metrics.ResultFailed, time.Since(start))
		return report, fmt.Errorf("%w: save state: %w", model.ErrState, err)
	}
	d.state = next

	d.rec.RecordCycle(metrics.ResultOK, time.Since(start))
	log.Info("cycle complete",
		"listed", report.Listed,
		"evaluated", report.Evaluated,
		"relevant", report.Relevant,
		"notified", report.Notified,
		"delivery_failures", report.DeliveryFailures,
		"suppressed", report.Suppressed,
	)
	return report, nil
}

func (d *Detector) evaluate(ctx context.Context, log *slog.Logger, st *model.State, entry model.ListingEntry, today string, report *Report) {
	report.Evaluated++
	d.rec.RecordEvaluated()

	text, ok := d.source.FetchDetail(ctx, entry)
	if !ok && ctx.Err() != nil {
		return
	}
	if !ok || !d.matcher.Relevant(text) {
		log.Debug("entry not relevant", "id", entry.Identifier, "detail", ok)
		st.MarkSeen(entry.Identifier)
		return
	}
	report.Relevant++

	if d.opts.Policy == model.PolicyDay && st.DayNotified(today) {
		log.Info("relevant entry suppressed, already notified today", "id", entry.Identifier, "day", today)
		report.Suppressed++
		d.rec.RecordNotification(metrics.NotifySuppressed)
		st.MarkSeen(entry.Identifier)
		return
	}

	excerpts, truncated := d.matcher.Excerpts(text, maxExcerptLines)
	subject := notifier.FormatSubject(entry)
	body := notifier.FormatBody(entry, excerpts, truncated)
	if !d.notifier.Notify(ctx, subject, body) {
		log.Warn("notification not delivered, will retry next cycle", "id", entry.Identifier)
		report.DeliveryFailures++
		d.rec.RecordNotification(metrics.NotifyFailed)
		return
	}

	log.Info("notification sent", "id", entry.Identifier, "title", entry.Title)
	report.Notified++
	d.rec.RecordNotification(metrics.NotifyDelivered)
	st.MarkNotified(entry.Identifier)
	if d.opts.Policy == model.PolicyDay {
		st.MarkDayNotified(today)
	}
	st.MarkSeen(entry.Identifier)
}
