// Package filter decides whether a notice is relevant to the watched
// entities and pulls the matching lines out of it.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns are the entity phrase patterns searched in addition to the
// literal keywords.
var DefaultPatterns = []string{
	`chinese (entity|entities|person|individual|company|companies|organization|organisations)`,
	`hong kong (entity|entities|person|individual|company|companies|organization|organisations)`,
	`中国(公司|企业|实体|个人|组织)`,
	`香港(公司|企业|实体|个人|组织)`,
	`中国.*?(被列入|制裁)`,
	`香港.*?(被列入|制裁)`,
	`sanctions.*?china`,
	`sanctions.*?hong kong`,
}

// Matcher is an OR over literal keywords and regular expressions. All
// comparisons are case-insensitive and unanchored.
type Matcher struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewMatcher compiles the keyword and pattern set. An invalid pattern is an
// error; empty keywords are ignored.
func NewMatcher(keywords, patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			m.keywords = append(m.keywords, k)
		}
	}
	for _, p := range patterns {
		re, err := compile(p)
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Relevant reports whether text mentions any keyword or matches any pattern.
func (m *Matcher) Relevant(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range m.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// Keywords returns the normalized keyword list.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// Patterns returns the source of every compiled pattern, without the
// case-insensitivity flag.
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.patterns))
	for _, re := range m.patterns {
		out = append(out, strings.TrimPrefix(re.String(), "(?i)"))
	}
	return out
}

// Excerpts returns each line containing a keyword together with up to two
// non-empty neighbouring lines on either side, indented. The result holds
// at most limit lines; truncated reports whether more were available.
func (m *Matcher) Excerpts(text string, limit int) (lines []string, truncated bool) {
	all := strings.Split(text, "\n")
	for i, line := range all {
		lower := strings.ToLower(line)
		hit := false
		for _, k := range m.keywords {
			if strings.Contains(lower, k) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		lines = append(lines, strings.TrimSpace(line))
		for j := max(0, i-2); j < min(len(all), i+3); j++ {
			if j == i {
				continue
			}
			if ctx := strings.TrimSpace(all[j]); ctx != "" {
				lines = append(lines, "  "+ctx)
			}
		}
	}
	if len(lines) > limit {
		return lines[:limit], true
	}
	return lines, false
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re, nil
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := compile(pattern)
	return err
}
