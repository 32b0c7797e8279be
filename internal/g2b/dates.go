package g2b

import (
	"strings"
	"time"
)

// Layouts the portal has been observed to use across page revisions.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006.01.02 15:04",
	"2006.01.02",
	"20060102",
	time.RFC3339,
}

// ParseDate parses a portal-formatted timestamp, reporting success. Dates on
// the portal are wall-clock KST without zone markers; they are parsed as
// naive local times and only ever compared against each other.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StatusFromEndDate classifies a notice by its closing date. Malformed or
// missing dates yield StatusUnknown rather than an error: a bad date on one
// row must not disturb the rest of the page.
func StatusFromEndDate(raw string, now time.Time) BidStatus {
	end, ok := ParseDate(raw)
	if !ok {
		return StatusUnknown
	}
	if end.Before(now) {
		return StatusClosed
	}
	return StatusOpen
}
