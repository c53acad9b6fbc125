package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// State is the persisted notification record. It survives restarts and is
// mutated at most once per detection cycle.
type State struct {
	LastCheckedAt       *time.Time
	SeenIdentifiers     map[string]struct{}
	NotifiedIdentifiers map[string]struct{}
	NotifiedDays        map[string]struct{}
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		SeenIdentifiers:     make(map[string]struct{}),
		NotifiedIdentifiers: make(map[string]struct{}),
		NotifiedDays:        make(map[string]struct{}),
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := NewState()
	if s.LastCheckedAt != nil {
		t := *s.LastCheckedAt
		c.LastCheckedAt = &t
	}
	for k := range s.SeenIdentifiers {
		c.SeenIdentifiers[k] = struct{}{}
	}
	for k := range s.NotifiedIdentifiers {
		c.NotifiedIdentifiers[k] = struct{}{}
	}
	for k := range s.NotifiedDays {
		c.NotifiedDays[k] = struct{}{}
	}
	return c
}

// IsSeen reports whether the identifier has been evaluated before.
func (s *State) IsSeen(id string) bool {
	_, ok := s.SeenIdentifiers[id]
	return ok
}

// MarkSeen records an evaluated identifier.
func (s *State) MarkSeen(id string) {
	s.SeenIdentifiers[id] = struct{}{}
}

// MarkNotified records an identifier whose notification was delivered.
func (s *State) MarkNotified(id string) {
	s.NotifiedIdentifiers[id] = struct{}{}
}

// IsNotified reports whether a notification was delivered for id.
func (s *State) IsNotified(id string) bool {
	_, ok := s.NotifiedIdentifiers[id]
	return ok
}

// DayNotified reports whether a notification was delivered on day (YYYY-MM-DD).
func (s *State) DayNotified(day string) bool {
	_, ok := s.NotifiedDays[day]
	return ok
}

// MarkDayNotified records a delivered notification for day.
func (s *State) MarkDayNotified(day string) {
	s.NotifiedDays[day] = struct{}{}
}

// stateDocument is the JSON form of State. The legacy fields are read so
// that caches written by earlier deployments keep their history.
type stateDocument struct {
	LastCheckedAt       *time.Time `json:"lastCheckedAt"`
	SeenIdentifiers     []string   `json:"seenIdentifiers"`
	NotifiedIdentifiers []string   `json:"notifiedIdentifiers"`
	NotifiedDays        []string   `json:"notifiedDays"`

	LegacyLastCheck   *string  `json:"last_check,omitempty"`
	LegacyKnownAction []string `json:"known_actions,omitempty"`
}

// MarshalJSON encodes the state with sorted arrays so output is stable.
func (s *State) MarshalJSON() ([]byte, error) {
	doc := stateDocument{
		LastCheckedAt:       s.LastCheckedAt,
		SeenIdentifiers:     sortedKeys(s.SeenIdentifiers),
		NotifiedIdentifiers: sortedKeys(s.NotifiedIdentifiers),
		NotifiedDays:        sortedKeys(s.NotifiedDays),
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a state document, validating notified days.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	st := NewState()
	st.LastCheckedAt = doc.LastCheckedAt
	if st.LastCheckedAt == nil && doc.LegacyLastCheck != nil {
		// The legacy cache stored a naive local ISO timestamp.
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", *doc.LegacyLastCheck, time.Local); err == nil {
			st.LastCheckedAt = &t
		}
	}
	for _, id := range doc.SeenIdentifiers {
		st.MarkSeen(id)
	}
	for _, id := range doc.LegacyKnownAction {
		st.MarkSeen(id)
	}
	for _, id := range doc.NotifiedIdentifiers {
		st.MarkNotified(id)
	}
	for _, day := range doc.NotifiedDays {
		if _, err := time.Parse(DayLayout, day); err != nil {
			return fmt.Errorf("invalid notified day %q: %w", day, err)
		}
		st.MarkDayNotified(day)
	}
	*s = *st
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
