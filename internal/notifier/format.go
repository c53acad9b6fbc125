package notifier

import (
	"fmt"
	"strings"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// SubjectPrefix starts every notification subject.
const SubjectPrefix = "OFAC update - China/Hong Kong entities"

// FormatSubject returns the subject line for a relevant entry.
func FormatSubject(entry model.ListingEntry) string {
	return fmt.Sprintf("%s: %s", SubjectPrefix, entry.Title)
}

// FormatBody formats a relevant entry and the matching excerpts of its
// detail page.
func FormatBody(entry model.ListingEntry, excerpts []string, truncated bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", SubjectPrefix)
	fmt.Fprintf(&b, "Date: %s\n", entry.DateText)
	fmt.Fprintf(&b, "Title: %s\n", entry.Title)
	if entry.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", entry.Link)
	}
	if entry.DetailURL != "" && entry.DetailURL != entry.Link {
		fmt.Fprintf(&b, "Details: %s\n", entry.DetailURL)
	}
	if len(excerpts) > 0 {
		b.WriteString("\nRelated entities:\n")
		b.WriteString(strings.Join(excerpts, "\n"))
		if truncated {
			b.WriteString("\n...and more")
		}
		b.WriteString("\n")
	}
	return b.String()
}
