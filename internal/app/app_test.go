package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stalwartbot/internal/config"
	"stalwartbot/internal/events"
	"stalwartbot/internal/render"
	"stalwartbot/internal/storage"
	logx "stalwartbot/pkg/logx"
)

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.Telegram.Token = "123:abc"
	return cfg
}

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		storage config.StorageConfig
		want    storage.Config
		wantErr bool
	}{
		{"file default", config.StorageConfig{Driver: "file", Path: "./subs.json"}, storage.Config{Driver: "file", Path: "./subs.json", BusyTimeout: time.Second}, false},
		{"sqlite", config.StorageConfig{Driver: "SQLite", Path: "bot.db", BusyTimeout: "3s"}, storage.Config{Driver: "sqlite", Path: "bot.db", BusyTimeout: 3 * time.Second}, false},
		{"sqlite without path", config.StorageConfig{Driver: "sqlite"}, storage.Config{}, true},
		{"bad busy timeout", config.StorageConfig{Driver: "sqlite", Path: "x", BusyTimeout: "soon"}, storage.Config{}, true},
	}
	for _, tc := range cases {
		cfg := baseConfig()
		cfg.Storage = tc.storage
		got, err := mapStorageConfig(cfg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestMapPolicySettings(t *testing.T) {
	cfg := baseConfig()
	off := false
	cfg.Notifications.DedupEnabled = &off
	cfg.Notifications.MinSeverity = "warning"
	cfg.Notifications.QuietHoursStart = "22:00"
	cfg.Notifications.QuietHoursEnd = "07:00"
	cfg.Notifications.GroupWindowSeconds = 30
	cfg.Notifications.IgnoredIPs = map[string][]string{"auth.failed": {"10.0.0.1"}}

	s := mapPolicySettings(cfg)
	require.False(t, s.DedupEnabled)
	require.Equal(t, config.DefaultDedupWindow, s.DedupWindowSeconds)
	require.Equal(t, "warning", s.MinSeverity)
	require.Equal(t, 30, s.GroupWindowSeconds)
	require.Equal(t, "UTC", s.DefaultTimezone)
	require.Equal(t, []string{"10.0.0.1"}, s.IgnoredIPs["auth.failed"])
}

func TestMapWebhookAndCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.Webhook.ReadTimeout = "20s"
	cfg.Webhook.Key = "secret"
	cfg.Webhook.MetricsProtected = true

	w, err := mapWebhookConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, config.DefaultWebhookAddr, w.Addr)
	require.Equal(t, 20*time.Second, w.ReadTimeout)
	require.Zero(t, w.WriteTimeout)

	c := mapCredentials(cfg)
	require.Equal(t, "secret", c.Key)
	require.True(t, c.MetricsProtected)

	cfg.Webhook.WriteTimeout = "-1s"
	_, err = mapWebhookConfig(cfg)
	require.Error(t, err)
}

func TestMapSettingsRejectsBeforeOpening(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: "bot.db"}
	set, err := mapSettings(cfg)
	require.NoError(t, err)
	require.Equal(t, "sqlite", set.storage.Driver)
	require.Equal(t, "123:abc", set.adapter.Token)

	cases := map[string]func(c *config.Config){
		"poll timeout":  func(c *config.Config) { c.Telegram.PollTimeout = "later" },
		"sqlite path":   func(c *config.Config) { c.Storage.Path = "" },
		"send timeout":  func(c *config.Config) { c.Telegram.SendTimeout = "-2s" },
		"write timeout": func(c *config.Config) { c.Webhook.WriteTimeout = "forever" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := baseConfig()
			c.Storage = config.StorageConfig{Driver: "sqlite", Path: "bot.db"}
			mutate(c)
			_, err := mapSettings(c)
			require.Error(t, err)
		})
	}
}

func TestNewAppOpensNoStoreOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "bot.db")
	cfgPath := filepath.Join(dir, "config.json")
	body := `{"telegram":{"token":"123:abc"},"storage":{"driver":"sqlite","path":` + strconv.Quote(db) + `},"webhook":{"write_timeout":"forever"}}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	_, err := NewApp(cfgPath)
	require.Error(t, err)
	_, statErr := os.Stat(db)
	require.True(t, os.IsNotExist(statErr), "store must not be opened")
}

func TestMapDispatchOptions(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RatePerSec = 5
	o, err := mapDispatchOptions(cfg)
	require.NoError(t, err)
	require.Equal(t, 5.0, o.RatePerSec)
	require.Positive(t, o.SendTimeout)

	cfg.Telegram.SendTimeout = "nope"
	_, err = mapDispatchOptions(cfg)
	require.Error(t, err)
}

func TestMapLogConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Logging.File = config.LoggingFile{Enabled: true, Path: "/var/log/bot.log", MaxSizeMB: 5, Compress: true}
	cfg.Logging.Telegram = config.LoggingTelegram{Enabled: true, ChatID: -100, MinLevel: "error"}

	l := mapLogConfig(cfg)
	require.True(t, l.File.Enabled)
	require.Equal(t, 5, l.File.MaxSizeMB)
	require.True(t, l.File.Compress)
	require.Equal(t, int64(-100), l.Telegram.ChatID)
	require.Equal(t, "error", l.Telegram.MinLevel)
}

func TestNewRendererUsesDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.Notifications.DefaultLocale = "fr"
	cat, r := newRenderer(cfg)
	require.Equal(t, "fr", cat.Default())
	require.Equal(t, "fr", r.Locales.Resolve(""))

	out := r.Formatter.Format(events.WebhookEvent{
		ID:   "1",
		Type: "auth.failed",
		Data: events.Data{"remoteIp": events.StringValue("203.0.113.7")},
	}, render.Options{Locale: "fr"})
	require.Contains(t, out, "203.0.113.7")
}

func TestSeedSubscriptions(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	seeds := map[string][]string{
		"100":      {"auth.failed", " delivery.failed ", ""},
		"not-a-id": {"auth.failed"},
	}
	require.Equal(t, 2, seedSubscriptions(ctx, st, seeds, logx.Nop()))
	// Seeding again creates nothing and keeps bot-made subscriptions.
	_, err = st.Subscribe(ctx, "100", "server.startup")
	require.NoError(t, err)
	require.Equal(t, 0, seedSubscriptions(ctx, st, seeds, logx.Nop()))

	subs, err := st.Subscriptions(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, []string{"auth.failed", "delivery.failed", "server.startup"}, subs)
}
