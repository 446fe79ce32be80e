// Package filter holds the stateless admission checks applied to an event
// before any recipient-facing work: severity threshold and quiet hours.
package filter

import (
	"strconv"
	"strings"
	"time"

	"stalwartbot/internal/events"
)

// SeverityResolver classifies an event type.
type SeverityResolver interface {
	Severity(eventType string) events.Severity
}

// PassesSeverity reports whether eventType is at or above min.
// Unknown types resolve to info through the resolver.
func PassesSeverity(r SeverityResolver, eventType string, min events.Severity) bool {
	tier := events.SeverityInfo
	if r != nil {
		tier = r.Severity(eventType)
	}
	return tier >= min
}

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 || len(m) != 2 {
		return 0, false
	}
	return hh*60 + mm, true
}

// IsQuiet reports whether now falls in the [start, end) window.
//
// A window with start > end wraps past midnight. An empty or unparseable
// bound disables the window. Seconds are ignored: the comparison uses the
// wall-clock minute of now in its own location.
func IsQuiet(start, end string, now time.Time) bool {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return false
	}
	s, ok := ParseClock(start)
	if !ok {
		return false
	}
	e, ok := ParseClock(end)
	if !ok {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if s <= e {
		return cur >= s && cur < e
	}
	return (cur >= s && cur < minutesPerDay) || cur < e
}
