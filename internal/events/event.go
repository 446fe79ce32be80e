// Package events models the webhook events emitted by the Stalwart mail
// server and the static registry that classifies them.
package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TestMarkerKey is set (to true) by the test sender. It is never displayed.
const TestMarkerKey = "_test"

// WebhookEvent is one event from a Stalwart webhook delivery.
// It is immutable once decoded.
type WebhookEvent struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	Type      string `json:"type"`
	Data      Data   `json:"data"`
}

// ErrNotObject is returned when an event element is not a JSON object.
var ErrNotObject = errors.New("events: event is not a JSON object")

// UnmarshalJSON decodes an event leniently. Non-string id, type and
// createdAt are converted to text and a data field that is not an object
// decodes as empty. Only an element that is not an object is an error.
func (e *WebhookEvent) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return ErrNotObject
	}
	*e = WebhookEvent{
		ID:        scalarText(fields["id"]),
		CreatedAt: scalarText(fields["createdAt"]),
		Type:      scalarText(fields["type"]),
	}
	if raw, ok := fields["data"]; ok {
		var d Data
		if err := json.Unmarshal(raw, &d); err == nil {
			e.Data = d
		}
	}
	return nil
}

func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return ""
	}
	return v.String()
}

// Payload is the body of a webhook request.
type Payload struct {
	Events []WebhookEvent `json:"events"`
}

// IsTest reports whether the event carries the internal test marker.
func (e WebhookEvent) IsTest() bool {
	b, ok := e.Data.Get(TestMarkerKey).AsBool()
	return ok && b
}

// Time parses CreatedAt. ok is false when the timestamp is missing or invalid.
func (e WebhookEvent) Time() (time.Time, bool) {
	s := strings.TrimSpace(e.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05Z0700", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
