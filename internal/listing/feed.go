package listing

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// FeedSource reads an RSS or Atom listing of recent actions.
type FeedSource struct {
	pager   Pager
	feedURL string
	loc     *time.Location
	strip   *bluemonday.Policy
	rec     FailureRecorder
	log     *slog.Logger
}

// NewFeedSource creates a source for the feed at feedURL. Item dates are
// converted to loc.
func NewFeedSource(pager Pager, feedURL string, loc *time.Location, rec FailureRecorder, log *slog.Logger) *FeedSource {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &FeedSource{
		pager:   pager,
		feedURL: feedURL,
		loc:     loc,
		strip:   bluemonday.StrictPolicy(),
		rec:     rec,
		log:     log,
	}
}

// ListRecent fetches and parses the feed.
func (s *FeedSource) ListRecent(ctx context.Context) []model.ListingEntry {
	body, err := s.pager.Fetch(ctx, s.feedURL)
	if err != nil {
		s.rec.RecordFetchFailure(errorKind(err))
		s.log.Warn("fetch feed", "url", s.feedURL, "error", err)
		return nil
	}

	entries, err := s.parse(body)
	if err != nil {
		s.rec.RecordFetchFailure(errorKind(err))
		s.log.Warn("parse feed", "url", s.feedURL, "error", err)
		return nil
	}
	return entries
}

// FetchDetail returns the text of the item's linked page.
func (s *FeedSource) FetchDetail(ctx context.Context, entry model.ListingEntry) (string, bool) {
	return detailText(ctx, s.pager, s.rec, s.log, entry)
}

func (s *FeedSource) parse(body []byte) ([]model.ListingEntry, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %w", model.ErrParse, err)
	}

	var entries []model.ListingEntry
	seen := make(map[string]bool)
	for _, item := range feed.Items {
		title := html.UnescapeString(s.strip.Sanitize(item.Title))
		title = strings.Join(strings.Fields(title), " ")
		link := itemLink(item)
		if title == "" || link == "" {
			continue
		}
		id := ItemIdentifier(item)
		if seen[id] {
			continue
		}
		seen[id] = true

		entry := model.ListingEntry{
			Identifier: id,
			Title:      title,
			Link:       link,
			DetailURL:  link,
		}
		if item.PublishedParsed != nil {
			p := item.PublishedParsed.In(s.loc)
			entry.PublishedDate = time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, s.loc)
			entry.DateText = p.Format(listingDateLayout)
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: feed has no usable items", model.ErrParse)
	}
	return entries, nil
}

// ItemIdentifier returns the stable identifier for a feed item: its link,
// or its GUID when the link is missing.
func ItemIdentifier(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	return item.GUID
}

// itemLink returns the page to fetch for an item: its link, or a GUID that
// is itself an http(s) URL. Anything else yields "".
func itemLink(item *gofeed.Item) string {
	for _, candidate := range []string{item.Link, item.GUID} {
		u, err := url.Parse(strings.TrimSpace(candidate))
		if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return u.String()
		}
	}
	return ""
}
