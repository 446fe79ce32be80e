package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stalwartbot/internal/config"
	"stalwartbot/internal/dispatch"
	"stalwartbot/internal/i18n"
	"stalwartbot/internal/pipeline"
	"stalwartbot/internal/render"
	"stalwartbot/internal/storage"
	"stalwartbot/internal/transport/telegram/adapter"
	"stalwartbot/internal/webhook"
	logx "stalwartbot/pkg/logx"
)

// settings holds every config mapping that can fail, resolved up front so
// NewApp and the reload validator reject a config before anything is opened.
type settings struct {
	adapter  adapter.Config
	storage  storage.Config
	dispatch dispatch.Options
	webhook  webhook.Config
}

func mapSettings(cfg *config.Config) (settings, error) {
	var (
		s   settings
		err error
	)
	if s.adapter, err = mapAdapterConfig(cfg); err != nil {
		return settings{}, err
	}
	if s.storage, err = mapStorageConfig(cfg); err != nil {
		return settings{}, err
	}
	if s.dispatch, err = mapDispatchOptions(cfg); err != nil {
		return settings{}, err
	}
	if s.webhook, err = mapWebhookConfig(cfg); err != nil {
		return settings{}, err
	}
	return s, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
			Compress:   l.File.Compress,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapAdapterConfig(cfg *config.Config) (adapter.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return adapter.Config{}, err
	}
	return adapter.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	path := strings.TrimSpace(cfg.Storage.Path)
	if (driver == "sqlite" || driver == "sqlite3") && path == "" {
		return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapDispatchOptions(cfg *config.Config) (dispatch.Options, error) {
	send, err := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, dispatch.DefaultSendTimeout)
	if err != nil {
		return dispatch.Options{}, err
	}
	return dispatch.Options{SendTimeout: send, RatePerSec: cfg.Telegram.RatePerSec}, nil
}

func mapWebhookConfig(cfg *config.Config) (webhook.Config, error) {
	rt, err := config.ParseDurationField("webhook.read_timeout", cfg.Webhook.ReadTimeout)
	if err != nil {
		return webhook.Config{}, err
	}
	wt, err := config.ParseDurationField("webhook.write_timeout", cfg.Webhook.WriteTimeout)
	if err != nil {
		return webhook.Config{}, err
	}
	return webhook.Config{
		Addr:         cfg.Webhook.Addr,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		ReadTimeout:  rt,
		WriteTimeout: wt,
		Pprof:        cfg.Webhook.Pprof,
	}, nil
}

func mapCredentials(cfg *config.Config) webhook.Credentials {
	return webhook.Credentials{
		Key:              cfg.Webhook.Key,
		Username:         cfg.Webhook.Username,
		Password:         cfg.Webhook.Password,
		MetricsProtected: cfg.Webhook.MetricsProtected,
	}
}

func mapPolicySettings(cfg *config.Config) pipeline.Settings {
	n := cfg.Notifications
	return pipeline.Settings{
		DedupEnabled:       n.Dedup(),
		DedupWindowSeconds: n.DedupWindowSeconds,
		MinSeverity:        n.MinSeverity,
		QuietHoursStart:    n.QuietHoursStart,
		QuietHoursEnd:      n.QuietHoursEnd,
		GroupWindowSeconds: n.GroupWindowSeconds,
		DefaultTimezone:    n.DefaultTimezone,
		IgnoredIPs:         n.IgnoredIPs,
	}
}

// newRenderer builds the catalog and formatter for the configured defaults.
func newRenderer(cfg *config.Config) (*i18n.Catalog, dispatch.Renderer) {
	cat := i18n.New(cfg.Notifications.DefaultLocale)
	f := render.New(cat, render.Config{
		DefaultTimezone: cfg.Notifications.DefaultTimezone,
		LookupURL:       cfg.Notifications.LookupURL,
	})
	return cat, dispatch.Renderer{Formatter: f, Locales: cat}
}

// seedSubscriptions adds the subscriptions listed in the config. It never
// removes anything and returns how many were created.
func seedSubscriptions(ctx context.Context, st storage.Store, seeds map[string][]string, log logx.Logger) int {
	created := 0
	for chat, types := range seeds {
		chat = strings.TrimSpace(chat)
		if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
			log.Warn("skipping subscription seed with invalid chat id", logx.String("chat_id", chat))
			continue
		}
		for _, typ := range types {
			typ = strings.TrimSpace(typ)
			if typ == "" {
				continue
			}
			ok, err := st.Subscribe(ctx, chat, typ)
			if err != nil {
				log.Warn("subscription seed failed", logx.String("chat_id", chat), logx.String("event_type", typ), logx.Err(err))
				continue
			}
			if ok {
				created++
			}
		}
	}
	return created
}
