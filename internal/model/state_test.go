package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStateJSONRoundTrip(t *testing.T) {
	checked := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	s := NewState()
	s.LastCheckedAt = &checked
	s.MarkSeen("https://ofac.treasury.gov/recent-actions/20240501")
	s.MarkSeen("https://ofac.treasury.gov/recent-actions/20240430")
	s.MarkNotified("https://ofac.treasury.gov/recent-actions/20240501")
	s.MarkDayNotified("2024-05-01")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got := NewState()
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStateMarshalSortsArrays(t *testing.T) {
	s := NewState()
	s.MarkSeen("b")
	s.MarkSeen("a")
	s.MarkDayNotified("2024-05-02")
	s.MarkDayNotified("2024-05-01")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"lastCheckedAt":null,"seenIdentifiers":["a","b"],"notifiedIdentifiers":[],"notifiedDays":["2024-05-01","2024-05-02"]}`
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("marshal mismatch (-want +got):\n%s", diff)
	}
}

func TestStateUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantSeen []string
		wantDays []string
		wantErr  bool
	}{
		{
			name:     "current format",
			doc:      `{"lastCheckedAt":null,"seenIdentifiers":["u1","u2"],"notifiedDays":["2024-05-01"]}`,
			wantSeen: []string{"u1", "u2"},
			wantDays: []string{"2024-05-01"},
		},
		{
			name:     "legacy cache format",
			doc:      `{"last_check":"2024-05-01T10:00:00.123456","known_actions":["u9"]}`,
			wantSeen: []string{"u9"},
			wantDays: []string{},
		},
		{
			name:     "empty document",
			doc:      `{}`,
			wantSeen: []string{},
			wantDays: []string{},
		},
		{
			name:    "invalid day",
			doc:     `{"notifiedDays":["May 1"]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			doc:     `{"seenIdentifiers":[`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			err := json.Unmarshal([]byte(tt.doc), s)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantSeen, sortedKeys(s.SeenIdentifiers)); diff != "" {
				t.Errorf("seen mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDays, sortedKeys(s.NotifiedDays)); diff != "" {
				t.Errorf("days mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStateClone(t *testing.T) {
	s := NewState()
	s.MarkSeen("u1")

	c := s.Clone()
	c.MarkSeen("u2")
	c.MarkDayNotified("2024-05-01")

	if s.IsSeen("u2") {
		t.Error("clone mutation leaked into original seen set")
	}
	if s.DayNotified("2024-05-01") {
		t.Error("clone mutation leaked into original notified days")
	}
	if !c.IsSeen("u1") {
		t.Error("clone lost original identifier")
	}
}

func TestDay(t *testing.T) {
	eastern, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:00 UTC on May 2nd is still May 1st in New York.
	got := Day(time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC), eastern)
	if diff := cmp.Diff("2024-05-01", got); diff != "" {
		t.Errorf("Day() mismatch (-want +got):\n%s", diff)
	}
}
