// Package dedup suppresses repeat notifications for the same
// (event type, source address) pair inside a time window.
package dedup

import (
	"sync"
	"time"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/events"
)

const (
	DefaultWindow = 60 * time.Second
	// CleanupInterval is how often expired entries should be swept.
	CleanupInterval = 60 * time.Second

	noAddress = "no-ip"
)

type Config struct {
	Enabled bool
	Window  time.Duration
}

// Cache is a process-local map of key -> first-seen time.
//
// The window is anchored to the first accepted occurrence: a suppressed
// duplicate does not refresh the entry, so a steady drip of duplicates
// becomes eligible again exactly Window after the accepted one.
//
// It is safe for concurrent use. ShouldNotify is a single check-and-set.
type Cache struct {
	clk clock.Clock

	mu      sync.Mutex
	cfg     Config
	entries map[string]time.Time
}

func New(cfg Config, clk clock.Clock) *Cache {
	c := &Cache{clk: clock.OrReal(clk), entries: map[string]time.Time{}}
	c.cfg = normalize(cfg)
	return c
}

func normalize(cfg Config) Config {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return cfg
}

// Apply swaps the configuration. Existing entries are kept.
func (c *Cache) Apply(cfg Config) {
	c.mu.Lock()
	c.cfg = normalize(cfg)
	c.mu.Unlock()
}

// Key builds the dedup key for an event type and address ("" = none).
func Key(eventType, addr string) string {
	if addr == "" {
		addr = noAddress
	}
	return eventType + "|" + addr
}

// ShouldNotify reports whether ev should produce a notification and records
// it when it does. With dedup disabled it always returns true and records
// nothing.
func (c *Cache) ShouldNotify(ev events.WebhookEvent, extract events.AddressExtractor) bool {
	if extract == nil {
		extract = events.SourceAddress
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Enabled {
		return true
	}

	key := Key(ev.Type, extract(ev))
	now := c.clk.Now()
	if seen, ok := c.entries[key]; ok && now.Sub(seen) < c.cfg.Window {
		return false
	}
	c.entries[key] = now
	return true
}

// Cleanup removes entries older than the window and returns how many were
// removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.clk.Now().Add(-c.cfg.Window)
	n := 0
	for k, seen := range c.entries {
		if seen.Before(cutoff) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of live entries (expired but not yet swept included).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = map[string]time.Time{}
	c.mu.Unlock()
}
