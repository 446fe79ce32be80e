package config

import (
	"reflect"

	logx "stalwartbot/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets (token, webhook credentials) are
// never included, only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.Bool("telegram.send_only", newCfg.Telegram.SendOnly),
			logx.Int("telegram.allowed_count", len(newCfg.Telegram.AllowedUserIDs)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Webhook, newCfg.Webhook) {
		changed = append(changed, "webhook")
		attrs = append(attrs,
			logx.String("webhook.addr", newCfg.Webhook.Addr),
			logx.Bool("webhook.signed", newCfg.Webhook.Key != ""),
			logx.Bool("webhook.basic_auth", newCfg.Webhook.Username != "" || newCfg.Webhook.Password != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifications, newCfg.Notifications) {
		n := newCfg.Notifications
		changed = append(changed, "notifications")
		attrs = append(attrs,
			logx.Bool("notifications.dedup", n.Dedup()),
			logx.Int("notifications.dedup_window_seconds", n.DedupWindowSeconds),
			logx.String("notifications.min_severity", n.MinSeverity),
			logx.String("notifications.quiet_hours", n.QuietHoursStart+"-"+n.QuietHoursEnd),
			logx.Int("notifications.group_window_seconds", n.GroupWindowSeconds),
			logx.String("notifications.locale", n.DefaultLocale),
			logx.String("notifications.timezone", n.DefaultTimezone),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Int("storage.retention_days", newCfg.Storage.EventsRetentionDays),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Subscriptions, newCfg.Subscriptions) {
		changed = append(changed, "subscriptions")
		attrs = append(attrs, logx.Int("subscriptions.chats", len(newCfg.Subscriptions)))
	}
	return changed, attrs
}

// RequiresRestart reports whether a change touches settings that are only
// read at startup.
func RequiresRestart(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	return oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.SendOnly != newCfg.Telegram.SendOnly ||
		oldCfg.Webhook.Addr != newCfg.Webhook.Addr ||
		oldCfg.Webhook.Pprof != newCfg.Webhook.Pprof ||
		oldCfg.Storage.Driver != newCfg.Storage.Driver ||
		oldCfg.Storage.Path != newCfg.Storage.Path
}
