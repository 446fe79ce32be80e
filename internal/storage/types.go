package storage

import (
	"context"
	"errors"
	"time"

	"stalwartbot/internal/events"
)

var (
	ErrClosed           = errors.New("storage closed")
	ErrInvalidRecipient = errors.New("storage: empty recipient id")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON document at Path; an empty Path keeps everything in memory
//   - "sqlite": SQLite database file at Path
//   - "memory": in-memory only, nothing survives a restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Preferences are a recipient's rendering choices. Empty fields mean
// "use the process default".
type Preferences struct {
	Locale   string `json:"locale,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Short    bool   `json:"shortNotifications,omitempty"`
}

// StoredEvent is one entry of the received-event log.
type StoredEvent struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	CreatedAt  string      `json:"createdAt"`
	SourceIP   string      `json:"sourceIp,omitempty"`
	ReceivedAt time.Time   `json:"receivedAt"`
	Data       events.Data `json:"data,omitempty"`
}

// Store is the persistence API used by the pipeline, the bot commands and
// the maintenance jobs.
type Store interface {
	// SubscribersFor lists recipients subscribed to eventType.
	SubscribersFor(ctx context.Context, eventType string) ([]string, error)
	// Subscriptions lists the event types recipient is subscribed to, sorted.
	Subscriptions(ctx context.Context, recipient string) ([]string, error)
	// Subscribe reports whether a new subscription was created.
	Subscribe(ctx context.Context, recipient, eventType string) (bool, error)
	// Unsubscribe reports whether an existing subscription was removed.
	Unsubscribe(ctx context.Context, recipient, eventType string) (bool, error)

	// Preferences returns zero Preferences when none are stored.
	Preferences(ctx context.Context, recipient string) (Preferences, error)
	SetPreferences(ctx context.Context, recipient string, p Preferences) error

	AppendEvent(ctx context.Context, e StoredEvent) error
	RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error)
	RecordBlockedAddress(ctx context.Context, ip, eventID string, at time.Time) error
	// PurgeEventsBefore deletes log entries received before t and returns
	// how many were removed.
	PurgeEventsBefore(ctx context.Context, t time.Time) (int64, error)

	Close() error
}
