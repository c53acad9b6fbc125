// Package scheduler runs detection cycles on a schedule until shutdown.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Aprilius996/ofac-monitor/internal/metrics"
)

// Cycle performs one unit of work.
type Cycle func(ctx context.Context) error

// Policy decides whether a cycle runs at now and how long to wait before
// asking again.
type Policy interface {
	Next(now time.Time) (wait time.Duration, run bool)
}

// Interval runs every cycle and then waits Every.
type Interval struct {
	Every time.Duration
}

// Next implements Policy.
func (p Interval) Next(time.Time) (time.Duration, bool) {
	return p.Every, true
}

// Window runs hourly between Start and End (local hours, end exclusive).
type Window struct {
	start, end int
	loc        *time.Location
	hourly     cron.Schedule
	opens      cron.Schedule
}

// NewWindow creates an active-hours policy. Hours must satisfy
// 0 <= start < end <= 24.
func NewWindow(start, end int, loc *time.Location) (*Window, error) {
	if start < 0 || start >= end || end > 24 {
		return nil, fmt.Errorf("invalid window %d-%d", start, end)
	}
	hourly, err := cron.ParseStandard("0 * * * *")
	if err != nil {
		return nil, fmt.Errorf("parse hourly schedule: %w", err)
	}
	opens, err := cron.ParseStandard(fmt.Sprintf("0 %d * * *", start))
	if err != nil {
		return nil, fmt.Errorf("parse window schedule: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Window{start: start, end: end, loc: loc, hourly: hourly, opens: opens}, nil
}

// Next implements Policy. Inside the window it runs and waits for the next
// hour boundary. Outside it skips and waits for the window to open or the
// next hour boundary, whichever comes first.
func (w *Window) Next(now time.Time) (time.Duration, bool) {
	local := now.In(w.loc)
	hour := w.hourly.Next(local)
	if h := local.Hour(); h >= w.start && h < w.end {
		return hour.Sub(now), true
	}
	wake := w.opens.Next(local)
	if hour.Before(wake) {
		wake = hour
	}
	return wake.Sub(now), false
}

// Recorder counts cycles the scheduler skips or that fail abnormally.
type Recorder interface {
	RecordCycle(result string, d time.Duration)
	RecordSkipped()
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle(string, time.Duration) {}
func (nopRecorder) RecordSkipped()                    {}

// Scheduler drives a Cycle according to a Policy.
type Scheduler struct {
	cycle    Cycle
	policy   Policy
	cooldown time.Duration
	rec      Recorder
	log      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates a Scheduler. A nil recorder disables metrics.
func New(cycle Cycle, policy Policy, cooldown time.Duration, rec Recorder, log *slog.Logger) *Scheduler {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Scheduler{
		cycle:    cycle,
		policy:   policy,
		cooldown: cooldown,
		rec:      rec,
		log:      log,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Run loops until ctx is cancelled. A failed or panicking cycle is retried
// after the cooldown rather than the policy wait.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", "cooldown", s.cooldown)
	for {
		now := s.now()
		wait, run := s.policy.Next(now)

		if run {
			if err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				s.log.Error("cycle failed, cooling down", "cooldown", s.cooldown, "error", err)
				wait = s.cooldown
			} else {
				wait -= s.now().Sub(now)
			}
		} else {
			s.rec.RecordSkipped()
			s.log.Debug("outside active window", "next_check_in", wait)
		}

		if !s.sleep(ctx, max(wait, 0)) {
			break
		}
	}
	s.log.Info("scheduler stopped")
}

// RunOnce executes a single cycle, converting a panic into an error.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.rec.RecordCycle(metrics.ResultFailed, time.Since(start))
			s.log.Error("cycle panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.cycle(ctx)
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
