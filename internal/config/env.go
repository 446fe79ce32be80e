package config

import (
	"os"
	"strconv"
	"strings"

	"stalwartbot/internal/events"
	logx "stalwartbot/pkg/logx"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// IgnoredIPsEnvKey is the variable holding ignored addresses for eventType,
// e.g. auth.failed -> AUTH_FAILED_IGNORED_IPS.
func IgnoredIPsEnvKey(eventType string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(r.Replace(eventType)) + "_IGNORED_IPS"
}

// ApplyEnv overlays environment variables on cfg. Set variables win over the
// file. Unparseable values are ignored with a warning.
func ApplyEnv(cfg *Config, lookup LookupFunc, log logx.Logger) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	num := func(dst *int, key string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Warn("ignoring invalid integer env", logx.String("key", key), logx.String("value", v))
			return
		}
		*dst = n
	}

	str(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	// WEEBHOOK_* are misspellings accepted by older deployments.
	str(&cfg.Webhook.Key, "WEBHOOK_KEY", "WEEBHOOK_KEY")
	str(&cfg.Webhook.Username, "WEBHOOK_USERNAME", "WEEBHOOK_USERNAME")
	str(&cfg.Webhook.Password, "WEBHOOK_PASSWORD", "WEEBHOOK_PASSWORD")
	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Webhook.Addr = ":" + strings.TrimSpace(v)
		} else {
			log.Warn("ignoring invalid PORT", logx.String("value", v))
		}
	}
	if v, ok := lookup("ALLOWED_USER_ID"); ok {
		if ids := parseIDs(v, log, "ALLOWED_USER_ID"); len(ids) > 0 {
			cfg.Telegram.AllowedUserIDs = ids
		}
	}
	if v, ok := lookup("ADMIN_USER_IDS"); ok {
		if ids := parseIDs(v, log, "ADMIN_USER_IDS"); len(ids) > 0 {
			cfg.Telegram.AdminUserIDs = ids
		}
	}

	n := &cfg.Notifications
	if v, ok := lookup("DEDUP_ENABLED"); ok && strings.TrimSpace(v) != "" {
		on := truthy(v)
		n.DedupEnabled = &on
	}
	num(&n.DedupWindowSeconds, "DEDUP_WINDOW_SECONDS")
	str(&n.MinSeverity, "SUBSCRIPTION_MIN_SEVERITY")
	str(&n.QuietHoursStart, "QUIET_HOURS_START")
	str(&n.QuietHoursEnd, "QUIET_HOURS_END")
	num(&n.GroupWindowSeconds, "NOTIFICATION_GROUP_WINDOW_SECONDS")
	str(&n.DefaultLocale, "DEFAULT_LOCALE")
	str(&n.DefaultTimezone, "DEFAULT_TIMEZONE")

	for _, typ := range events.Stalwart.Types() {
		v, ok := lookup(IgnoredIPsEnvKey(typ))
		if !ok {
			continue
		}
		list := splitList(v)
		if len(list) == 0 {
			continue
		}
		if n.IgnoredIPs == nil {
			n.IgnoredIPs = map[string][]string{}
		}
		n.IgnoredIPs[typ] = list
	}

	num(&cfg.Storage.EventsRetentionDays, "EVENTS_RETENTION_DAYS")
	str(&cfg.Storage.Driver, "STORAGE_DRIVER")
	str(&cfg.Storage.Path, "STORAGE_PATH")
	str(&cfg.Logging.Level, "LOG_LEVEL")
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseIDs(v string, log logx.Logger, key string) []int64 {
	var out []int64
	for _, s := range splitList(v) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			log.Warn("ignoring invalid user id", logx.String("key", key), logx.String("value", s))
			continue
		}
		out = append(out, id)
	}
	return out
}
