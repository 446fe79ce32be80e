package eventbus

import "stalwartbot/internal/events"

// Signal types published by the pipeline and dispatcher.
const (
	TypeEventReceived      = "event.received"
	TypeEventSkipped       = "event.skipped"
	TypeNotificationSent   = "notification.sent"
	TypeNotificationFailed = "notification.failed"
)

// EventReceived is published once per ingested event, before filtering.
type EventReceived struct {
	Event  events.WebhookEvent
	Source string
}

// EventSkipped is published when a filter stage drops an event.
type EventSkipped struct {
	Event  events.WebhookEvent
	Reason string
}

// Notification describes one delivery attempt to one recipient.
type Notification struct {
	Recipient string
	EventType string
	Events    int
	Err       error
}
