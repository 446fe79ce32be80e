package config

import "strings"

type Config struct {
	Telegram      TelegramConfig      `json:"telegram"`
	Webhook       WebhookConfig       `json:"webhook"`
	Notifications NotificationsConfig `json:"notifications"`
	Storage       StorageConfig       `json:"storage"`
	Logging       LoggingConfig       `json:"logging"`

	// Subscriptions seeds the store at startup: chat id -> event types.
	// Seeding only adds; it never removes subscriptions made through the bot.
	Subscriptions map[string][]string `json:"subscriptions,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AllowedUserIDs restricts bot commands. Empty means everyone.
	AllowedUserIDs []int64 `json:"allowed_user_ids,omitempty"`
	// AdminUserIDs may run /status. Empty falls back to AllowedUserIDs.
	AdminUserIDs []int64 `json:"admin_user_ids,omitempty"`
	// SendOnly disables long polling; the bot then only delivers
	// notifications and ignores commands.
	SendOnly bool `json:"send_only,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SendTimeout bounds one sendMessage call.
	SendTimeout string  `json:"send_timeout,omitempty"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
}

// WebhookConfig controls the HTTP endpoint Stalwart posts to.
//
// Key, Username and Password are optional; each check is enforced only when
// its credentials are set.
type WebhookConfig struct {
	Addr     string `json:"addr"`
	Key      string `json:"key,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// MetricsProtected puts /metrics behind the same Basic auth.
	MetricsProtected bool  `json:"metrics_protected,omitempty"`
	MaxBodyBytes     int64 `json:"max_body_bytes,omitempty"`
	// Pprof exposes /debug/pprof on the webhook listener.
	Pprof bool `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

type NotificationsConfig struct {
	// DedupEnabled is a pointer so an omitted key keeps the default (on).
	DedupEnabled       *bool  `json:"dedup_enabled,omitempty"`
	DedupWindowSeconds int    `json:"dedup_window_seconds,omitempty"`
	MinSeverity        string `json:"min_severity,omitempty"`
	QuietHoursStart    string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd      string `json:"quiet_hours_end,omitempty"`
	GroupWindowSeconds int    `json:"group_window_seconds,omitempty"`
	DefaultLocale      string `json:"default_locale,omitempty"`
	DefaultTimezone    string `json:"default_timezone,omitempty"`
	LookupURL          string `json:"lookup_url,omitempty"`

	// IgnoredIPs maps an event type to source addresses whose events are dropped.
	IgnoredIPs map[string][]string `json:"ignored_ips,omitempty"`
}

// StorageConfig controls the subscription store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./stalwartbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// EventsRetentionDays purges recorded events older than this. 0 keeps them.
	EventsRetentionDays int `json:"events_retention_days,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

const (
	DefaultWebhookAddr   = ":3000"
	DefaultLocale        = "en"
	DefaultTimezone      = "UTC"
	DefaultDedupWindow   = 60
	DefaultStorageDriver = "file"
	DefaultStoragePath   = "./subscriptions.json"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Logging: LoggingConfig{Level: "info", Console: true}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills omitted values. It never overrides explicit ones.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Webhook.Addr) == "" {
		c.Webhook.Addr = DefaultWebhookAddr
	}
	n := &c.Notifications
	if n.DedupEnabled == nil {
		on := true
		n.DedupEnabled = &on
	}
	if n.DedupWindowSeconds == 0 {
		n.DedupWindowSeconds = DefaultDedupWindow
	}
	if strings.TrimSpace(n.MinSeverity) == "" {
		n.MinSeverity = "info"
	}
	if strings.TrimSpace(n.DefaultLocale) == "" {
		n.DefaultLocale = DefaultLocale
	}
	if strings.TrimSpace(n.DefaultTimezone) == "" {
		n.DefaultTimezone = DefaultTimezone
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.Driver == "file" && strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// Dedup reports the effective dedup switch.
func (n NotificationsConfig) Dedup() bool {
	return n.DedupEnabled == nil || *n.DedupEnabled
}
