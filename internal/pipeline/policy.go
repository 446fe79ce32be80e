package pipeline

import (
	"strings"
	"time"

	"stalwartbot/internal/events"
	"stalwartbot/internal/pipeline/dedup"
	"stalwartbot/internal/pipeline/filter"
	logx "stalwartbot/pkg/logx"
)

// Settings are the raw policy values as configured.
type Settings struct {
	DedupEnabled       bool
	DedupWindowSeconds int
	MinSeverity        string
	QuietHoursStart    string
	QuietHoursEnd      string
	GroupWindowSeconds int
	DefaultTimezone    string
	// IgnoredIPs maps an event type to source addresses whose events are dropped.
	IgnoredIPs map[string][]string
}

// Policy is the validated form of Settings.
type Policy struct {
	Dedup       dedup.Config
	MinSeverity events.Severity
	QuietStart  string
	QuietEnd    string
	GroupWindow time.Duration
	Location    *time.Location
	ignored     map[string]map[string]struct{}
}

// Resolve validates s. Invalid values never fail: each one is replaced by
// its safe default (usually "feature off") and reported on log.
func Resolve(s Settings, log logx.Logger) Policy {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := Policy{
		Dedup:       dedup.Config{Enabled: s.DedupEnabled, Window: time.Duration(s.DedupWindowSeconds) * time.Second},
		MinSeverity: events.SeverityInfo,
		Location:    time.UTC,
		ignored:     map[string]map[string]struct{}{},
	}

	if s.DedupWindowSeconds <= 0 {
		if s.DedupWindowSeconds < 0 {
			log.Warn("invalid dedup window, using default", logx.Int("seconds", s.DedupWindowSeconds))
		}
		p.Dedup.Window = dedup.DefaultWindow
	}

	if raw := strings.TrimSpace(s.MinSeverity); raw != "" {
		if sev, ok := events.ParseSeverity(raw); ok {
			p.MinSeverity = sev
		} else {
			log.Warn("invalid minimum severity, using info", logx.String("value", raw))
		}
	}

	start, end := strings.TrimSpace(s.QuietHoursStart), strings.TrimSpace(s.QuietHoursEnd)
	if start != "" || end != "" {
		_, okS := filter.ParseClock(start)
		_, okE := filter.ParseClock(end)
		if okS && okE {
			p.QuietStart, p.QuietEnd = start, end
		} else {
			log.Warn("invalid quiet hours, disabling", logx.String("start", start), logx.String("end", end))
		}
	}

	if s.GroupWindowSeconds > 0 {
		p.GroupWindow = time.Duration(s.GroupWindowSeconds) * time.Second
	} else if s.GroupWindowSeconds < 0 {
		log.Warn("invalid grouping window, disabling", logx.Int("seconds", s.GroupWindowSeconds))
	}

	if tz := strings.TrimSpace(s.DefaultTimezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			p.Location = loc
		} else {
			log.Warn("unknown default timezone, using UTC", logx.String("timezone", tz), logx.Err(err))
		}
	}

	for typ, addrs := range s.IgnoredIPs {
		set := map[string]struct{}{}
		for _, a := range addrs {
			if a = strings.TrimSpace(a); a != "" {
				set[a] = struct{}{}
			}
		}
		if len(set) > 0 {
			p.ignored[strings.TrimSpace(typ)] = set
		}
	}
	return p
}

// Ignored reports whether events of eventType from addr are dropped.
func (p Policy) Ignored(eventType, addr string) bool {
	if addr == "" {
		return false
	}
	_, ok := p.ignored[eventType][addr]
	return ok
}
