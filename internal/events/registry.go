package events

import (
	"sort"
	"strings"
)

// Severity is the tier of an event type. Tiers are totally ordered.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityAlert
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityAlert:
		return "alert"
	default:
		return "info"
	}
}

// ParseSeverity parses "info", "warning" or "alert" (case-insensitive).
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "info":
		return SeverityInfo, true
	case "warning", "warn":
		return SeverityWarning, true
	case "alert":
		return SeverityAlert, true
	default:
		return SeverityInfo, false
	}
}

// Spec describes a supported event type.
type Spec struct {
	Severity Severity
	// HasAddress is true when the payload normally carries a remote address.
	HasAddress bool
}

// Registry maps event types to their Spec.
type Registry map[string]Spec

// Stalwart lists the event types this bridge understands.
var Stalwart = Registry{
	"auth.error":                  {Severity: SeverityWarning, HasAddress: true},
	"auth.failed":                 {Severity: SeverityWarning, HasAddress: true},
	"auth.success":                {Severity: SeverityInfo, HasAddress: true},
	"delivery.completed":          {Severity: SeverityInfo, HasAddress: true},
	"delivery.delivered":          {Severity: SeverityInfo, HasAddress: true},
	"delivery.failed":             {Severity: SeverityAlert, HasAddress: true},
	"security.abuse-ban":          {Severity: SeverityAlert, HasAddress: true},
	"security.authentication-ban": {Severity: SeverityAlert, HasAddress: true},
	"security.ip-blocked":         {Severity: SeverityAlert, HasAddress: true},
	"server.startup":              {Severity: SeverityInfo},
	"server.startup-error":        {Severity: SeverityAlert},
}

// Severity returns the tier of eventType; unknown types are info.
func (r Registry) Severity(eventType string) Severity {
	if s, ok := r[eventType]; ok {
		return s.Severity
	}
	return SeverityInfo
}

// Known reports whether eventType is registered.
func (r Registry) Known(eventType string) bool {
	_, ok := r[eventType]
	return ok
}

// Types returns the registered event types, sorted.
func (r Registry) Types() []string {
	out := make([]string, 0, len(r))
	for t := range r {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
