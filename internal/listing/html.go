package listing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// Selectors for the recent-actions index.
const (
	rowSelector   = ".views-row"
	dateSelector  = ".datetime"
	titleSelector = "h3 a"

	listingDateLayout = "01/02/2006"
)

// nonContentSelectors lists elements stripped before extracting page text.
const nonContentSelectors = "script, style, noscript, nav, header, footer"

// HTMLSource reads the recent-actions HTML index.
type HTMLSource struct {
	pager      Pager
	listingURL string
	baseURL    string
	loc        *time.Location
	rec        FailureRecorder
	log        *slog.Logger
}

// NewHTMLSource creates a source for the index at listingURL. Relative links
// resolve against baseURL; listing dates are interpreted in loc.
func NewHTMLSource(pager Pager, listingURL, baseURL string, loc *time.Location, rec FailureRecorder, log *slog.Logger) *HTMLSource {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &HTMLSource{
		pager:      pager,
		listingURL: listingURL,
		baseURL:    strings.TrimRight(baseURL, "/"),
		loc:        loc,
		rec:        rec,
		log:        log,
	}
}

// ListRecent fetches and parses the index.
func (s *HTMLSource) ListRecent(ctx context.Context) []model.ListingEntry {
	body, err := s.pager.Fetch(ctx, s.listingURL)
	if err != nil {
		s.rec.RecordFetchFailure(errorKind(err))
		s.log.Warn("fetch listing", "url", s.listingURL, "error", err)
		return nil
	}

	entries, err := ParseIndex(body, s.baseURL, s.loc)
	if err != nil {
		s.rec.RecordFetchFailure(errorKind(err))
		s.log.Warn("parse listing", "url", s.listingURL, "error", err)
		return nil
	}
	s.log.Debug("listing parsed", "url", s.listingURL, "entries", len(entries))
	return entries
}

// FetchDetail returns the text of the entry's detail page.
func (s *HTMLSource) FetchDetail(ctx context.Context, entry model.ListingEntry) (string, bool) {
	return detailText(ctx, s.pager, s.rec, s.log, entry)
}

// ParseIndex extracts listing entries from the recent-actions HTML. A page
// without any recognisable row is a parse error: the site layout changed.
func ParseIndex(body []byte, baseURL string, loc *time.Location) ([]model.ListingEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", model.ErrParse, err)
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: parse base url: %w", model.ErrParse, err)
	}

	var entries []model.ListingEntry
	seen := make(map[string]bool)
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		dateText := strings.TrimSpace(row.Find(dateSelector).First().Text())
		anchor := row.Find(titleSelector).First()
		title := strings.Join(strings.Fields(anchor.Text()), " ")
		if dateText == "" || title == "" {
			return
		}

		href, _ := anchor.Attr("href")
		link := resolve(base, href)

		entry := model.ListingEntry{
			Title:    title,
			DateText: dateText,
			Link:     link,
		}
		if published, err := time.ParseInLocation(listingDateLayout, dateText, loc); err == nil {
			entry.PublishedDate = published
			entry.Identifier = resolve(base, "recent-actions/"+published.Format("20060102"))
			entry.DetailURL = entry.Identifier
		} else {
			entry.Identifier = link
			entry.DetailURL = link
		}
		if entry.Identifier == "" || seen[entry.Identifier] {
			return
		}
		seen[entry.Identifier] = true
		entries = append(entries, entry)
	})

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no %q rows with date and title", model.ErrParse, rowSelector)
	}
	return entries, nil
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// ExtractText returns the readable text of an HTML page, one non-empty
// line per output line.
func ExtractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %w", model.ErrParse, err)
	}

	doc.Find(nonContentSelectors).Remove()

	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}

	var lines []string
	for _, line := range strings.Split(content.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
