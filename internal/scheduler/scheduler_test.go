package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func TestWindowNext(t *testing.T) {
	ny := mustLocation(t, "America/New_York")
	w, err := NewWindow(8, 20, ny)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	tests := []struct {
		name     string
		now      time.Time
		wantWait time.Duration
		wantRun  bool
	}{
		{
			name:     "inside window waits for next hour",
			now:      time.Date(2024, 5, 1, 9, 15, 0, 0, ny),
			wantWait: 45 * time.Minute,
			wantRun:  true,
		},
		{
			name:     "window start is inclusive",
			now:      time.Date(2024, 5, 1, 8, 0, 0, 0, ny),
			wantWait: time.Hour,
			wantRun:  true,
		},
		{
			name:     "window end is exclusive",
			now:      time.Date(2024, 5, 1, 20, 0, 0, 0, ny),
			wantWait: time.Hour,
			wantRun:  false,
		},
		{
			name:     "outside window rechecks at next hour",
			now:      time.Date(2024, 5, 1, 6, 30, 0, 0, ny),
			wantWait: 30 * time.Minute,
			wantRun:  false,
		},
		{
			name:     "last hour before opening",
			now:      time.Date(2024, 5, 1, 7, 10, 0, 0, ny),
			wantWait: 50 * time.Minute,
			wantRun:  false,
		},
		{
			name:     "evaluated in window location",
			now:      time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), // 09:00 EDT
			wantWait: time.Hour,
			wantRun:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, run := w.Next(tt.now)
			if diff := cmp.Diff(tt.wantRun, run); diff != "" {
				t.Errorf("run mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantWait, wait); diff != "" {
				t.Errorf("wait mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewWindowRejectsInvalidHours(t *testing.T) {
	for _, hours := range [][2]int{{-1, 5}, {10, 10}, {20, 8}, {0, 25}} {
		if _, err := NewWindow(hours[0], hours[1], time.UTC); err == nil {
			t.Errorf("NewWindow(%d, %d): expected error", hours[0], hours[1])
		}
	}
}

func TestIntervalNext(t *testing.T) {
	wait, run := Interval{Every: time.Hour}.Next(time.Now())
	if !run || wait != time.Hour {
		t.Errorf("Next() = (%v, %v), want (1h, true)", wait, run)
	}
}

// stepPolicy always returns the same answer.
type stepPolicy struct {
	wait time.Duration
	run  bool
}

func (p stepPolicy) Next(time.Time) (time.Duration, bool) { return p.wait, p.run }

type fakeRecorder struct {
	results []string
	skips   int
}

func (r *fakeRecorder) RecordCycle(result string, _ time.Duration) {
	r.results = append(r.results, result)
}

func (r *fakeRecorder) RecordSkipped() {
	r.results = append(r.results, "skipped")
	r.skips++
}

// newTestScheduler returns a scheduler whose sleeps are recorded and which
// cancels its context after n sleeps.
func newTestScheduler(cycle Cycle, policy Policy, rec Recorder, n int) (*Scheduler, *[]time.Duration, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(cycle, policy, time.Minute, rec, discardLogger())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		sleeps = append(sleeps, d)
		if len(sleeps) >= n {
			cancel()
		}
		return ctx.Err() == nil
	}
	return s, &sleeps, ctx
}

func TestRunUsesPolicyWait(t *testing.T) {
	calls := 0
	cycle := func(context.Context) error {
		calls++
		return nil
	}
	s, sleeps, ctx := newTestScheduler(cycle, Interval{Every: time.Hour}, nil, 3)

	s.Run(ctx)

	if diff := cmp.Diff(3, calls); diff != "" {
		t.Errorf("cycle calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{time.Hour, time.Hour, time.Hour}, *sleeps); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCoolsDownAfterFailure(t *testing.T) {
	calls := 0
	cycle := func(context.Context) error {
		calls++
		switch calls {
		case 1:
			return errors.New("save state: disk full")
		case 2:
			panic("unexpected markup")
		}
		return nil
	}
	rec := &fakeRecorder{}
	s, sleeps, ctx := newTestScheduler(cycle, Interval{Every: time.Hour}, rec, 3)

	s.Run(ctx)

	want := []time.Duration{time.Minute, time.Minute, time.Hour}
	if diff := cmp.Diff(want, *sleeps); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"failed"}, rec.results); diff != "" {
		t.Errorf("recorded results mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSkipsOutsideWindow(t *testing.T) {
	calls := 0
	cycle := func(context.Context) error {
		calls++
		return nil
	}
	rec := &fakeRecorder{}
	s, sleeps, ctx := newTestScheduler(cycle, stepPolicy{wait: 2 * time.Hour}, rec, 2)

	s.Run(ctx)

	if diff := cmp.Diff(0, calls); diff != "" {
		t.Errorf("cycle calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Hour, 2 * time.Hour}, *sleeps); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"skipped", "skipped"}, rec.results); diff != "" {
		t.Errorf("recorded results mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, rec.skips); diff != "" {
		t.Errorf("skip count mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(func(context.Context) error { return nil }, Interval{Every: time.Hour}, time.Minute, nil, discardLogger())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	s := New(func(context.Context) error { panic("boom") }, Interval{Every: time.Hour}, time.Minute, nil, discardLogger())

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from panicking cycle")
	}
}
