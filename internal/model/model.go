// Package model defines the domain types used across the application.
package model

import (
	"errors"
	"time"
)

// Error kinds. Components wrap one of these so callers can classify
// failures with errors.Is.
var (
	ErrTransport = errors.New("transport error")
	ErrParse     = errors.New("parse error")
	ErrDelivery  = errors.New("delivery error")
	ErrState     = errors.New("state error")
)

// DayLayout is the calendar-date format used for notified days.
const DayLayout = "2006-01-02"

// ListingEntry is one published notice on the recent-actions index.
type ListingEntry struct {
	// Identifier is the de-duplication key. It never changes between
	// fetches of the same logical entry.
	Identifier    string
	Title         string
	DateText      string
	PublishedDate time.Time
	DetailURL     string
	Link          string
}

// DedupPolicy selects the de-duplication granularity of the detector.
type DedupPolicy string

// Supported de-duplication policies.
const (
	// PolicyEntry notifies at most once per listing identifier.
	PolicyEntry DedupPolicy = "entry"
	// PolicyDay notifies at most once per calendar day.
	PolicyDay DedupPolicy = "day"
)

// Day formats t as a calendar date in loc.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}
