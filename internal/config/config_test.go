package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultsWithoutFile(t *testing.T) {
	m := NewConfigManager("")
	m.SetEnv(envMap(map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"}))
	cfg, err := m.Load()
	require.NoError(t, err)

	require.Equal(t, ":3000", cfg.Webhook.Addr)
	require.True(t, cfg.Notifications.Dedup())
	require.Equal(t, 60, cfg.Notifications.DedupWindowSeconds)
	require.Equal(t, "info", cfg.Notifications.MinSeverity)
	require.Equal(t, "en", cfg.Notifications.DefaultLocale)
	require.Equal(t, "UTC", cfg.Notifications.DefaultTimezone)
	require.Zero(t, cfg.Notifications.GroupWindowSeconds)
	require.Zero(t, cfg.Storage.EventsRetentionDays)
	require.Equal(t, "file", cfg.Storage.Driver)
}

func TestMissingTokenFailsLoad(t *testing.T) {
	m := NewConfigManager("")
	m.SetEnv(envMap(nil))
	_, err := m.Load()
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
telegram:
  token: from-file
webhook:
  addr: ":8080"
notifications:
  dedup_window_seconds: 30
  min_severity: warning
storage:
  driver: memory
`)
	m := NewConfigManager(path)
	m.SetEnv(envMap(map[string]string{
		"PORT":                              "4000",
		"WEEBHOOK_KEY":                      "legacy-key",
		"DEDUP_ENABLED":                     "off",
		"SUBSCRIPTION_MIN_SEVERITY":         "alert",
		"QUIET_HOURS_START":                 "22:00",
		"QUIET_HOURS_END":                   "08:00",
		"NOTIFICATION_GROUP_WINDOW_SECONDS": "15",
		"DEDUP_WINDOW_SECONDS":              "not-a-number",
		"AUTH_FAILED_IGNORED_IPS":           " 10.0.0.1, ,10.0.0.2 ",
		"SECURITY_IP_BLOCKED_IGNORED_IPS":   "192.0.2.1",
		"ALLOWED_USER_ID":                   "42",
	}))
	cfg, err := m.Load()
	require.NoError(t, err)

	require.Equal(t, "from-file", cfg.Telegram.Token)
	require.Equal(t, ":4000", cfg.Webhook.Addr)
	require.Equal(t, "legacy-key", cfg.Webhook.Key)
	require.False(t, cfg.Notifications.Dedup())
	require.Equal(t, 30, cfg.Notifications.DedupWindowSeconds)
	require.Equal(t, "alert", cfg.Notifications.MinSeverity)
	require.Equal(t, "22:00", cfg.Notifications.QuietHoursStart)
	require.Equal(t, 15, cfg.Notifications.GroupWindowSeconds)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Notifications.IgnoredIPs["auth.failed"])
	require.Equal(t, []string{"192.0.2.1"}, cfg.Notifications.IgnoredIPs["security.ip-blocked"])
	require.Equal(t, []int64{42}, cfg.Telegram.AllowedUserIDs)
}

func TestUnknownFieldsRejected(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram":{"token":"x"},"pluginz":{}}`)
	m := NewConfigManager(path)
	m.SetEnv(envMap(nil))
	_, err := m.Load()
	require.Error(t, err)
}

func TestTrailingDataRejected(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram":{"token":"x"}}{}`)
	m := NewConfigManager(path)
	m.SetEnv(envMap(nil))
	_, err := m.Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, false},
		{"negative retention", func(c *Config) { c.Storage.EventsRetentionDays = -1 }, false},
		{"bad duration", func(c *Config) { c.Telegram.SendTimeout = "soon" }, false},
		{"bad chat id", func(c *Config) { c.Subscriptions = map[string][]string{"me": {"auth.failed"}} }, false},
		{"numeric chat id", func(c *Config) { c.Subscriptions = map[string][]string{"-1001": {"auth.failed"}} }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Telegram.Token = "t"
			tc.mutate(cfg)
			if err := Validate(cfg); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestIgnoredIPsEnvKey(t *testing.T) {
	cases := map[string]string{
		"auth.failed":                 "AUTH_FAILED_IGNORED_IPS",
		"security.authentication-ban": "SECURITY_AUTHENTICATION_BAN_IGNORED_IPS",
	}
	for in, want := range cases {
		if got := IgnoredIPsEnvKey(in); got != want {
			t.Fatalf("IgnoredIPsEnvKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram":{"token":"x"},"notifications":{"min_severity":"info"}}`)
	m := NewConfigManager(path)
	m.SetEnv(envMap(nil))
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	require.False(t, m.Reload(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"x"},"notifications":{"min_severity":"alert"}}`), 0o600))
	require.True(t, m.Reload(context.Background()))
	select {
	case cfg := <-ch:
		require.Equal(t, "alert", cfg.Notifications.MinSeverity)
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":""}}`), 0o600))
	require.False(t, m.Reload(context.Background()))
	require.Equal(t, "alert", m.Get().Notifications.MinSeverity)
}

func TestSummarizeConfigChange(t *testing.T) {
	a := Default()
	b := Default()
	b.Telegram.Token = "secret"
	b.Notifications.MinSeverity = "alert"

	changed, attrs := SummarizeConfigChange(a, b)
	require.Equal(t, []string{"telegram", "notifications"}, changed)
	require.NotEmpty(t, attrs)
	require.True(t, RequiresRestart(a, b))

	c := Default()
	c.Notifications.GroupWindowSeconds = 10
	require.False(t, RequiresRestart(a, c))
}

func TestParseDurationOrDefault(t *testing.T) {
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 5 * time.Second, false},
		{"0", 5 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"15", 15 * time.Second, false},
		{" 1.5 ", 1500 * time.Millisecond, false},
		{"-1s", 0, true},
		{"-3", 0, true},
		{"NaN", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		d, err := ParseDurationOrDefault("webhook.read_timeout", tc.raw, 5*time.Second)
		if tc.wantErr {
			if err == nil || !strings.Contains(err.Error(), "webhook.read_timeout") {
				t.Fatalf("%q: err = %v, want error naming the key", tc.raw, err)
			}
			continue
		}
		if err != nil || d != tc.want {
			t.Fatalf("%q: got %v, %v; want %v", tc.raw, d, err, tc.want)
		}
	}
}

func TestYAMLDocuments(t *testing.T) {
	path := writeFile(t, "config.yml", `
telegram:
  token: x
subscriptions:
  123456: [auth.failed]
`)
	m := NewConfigManager(path)
	m.SetEnv(envMap(nil))
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"auth.failed"}, cfg.Subscriptions["123456"])

	_, err = toJSON("config.yaml", []byte("- a\n- b\n"))
	require.ErrorIs(t, err, errTopLevel)

	_, err = toJSON("config.toml", []byte("a = 1"))
	require.Error(t, err)

	j, err := toJSON("config.yaml", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(j))
}
