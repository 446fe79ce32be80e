package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMissingToken = errors.New("telegram.token is required (or TELEGRAM_BOT_TOKEN)")

// Validate rejects configurations the process cannot start with. Soft
// problems (bad severity, quiet hours, timezone) are not errors: they fall
// back to defaults when the pipeline policy is resolved.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, ErrMissingToken)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if cfg.Storage.EventsRetentionDays < 0 {
		errs = append(errs, errors.New("storage.events_retention_days must be >= 0"))
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"telegram.send_timeout", cfg.Telegram.SendTimeout},
		{"webhook.read_timeout", cfg.Webhook.ReadTimeout},
		{"webhook.write_timeout", cfg.Webhook.WriteTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}
	for chat := range cfg.Subscriptions {
		if _, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("subscriptions: %q is not a chat id", chat))
		}
	}
	return errors.Join(errs...)
}
