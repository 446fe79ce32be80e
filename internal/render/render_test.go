package render

import (
	"fmt"
	"strings"
	"testing"
	_ "time/tzdata"

	"stalwartbot/internal/events"
	"stalwartbot/internal/i18n"
)

func newFormatter() *Formatter {
	return New(i18n.New("en"), Config{DefaultTimezone: "UTC"})
}

func authFailed(id, addr string) events.WebhookEvent {
	return events.WebhookEvent{
		ID:        id,
		CreatedAt: "2025-01-15T14:30:45Z",
		Type:      "auth.failed",
		Data: events.Data{
			"accountName": events.StringValue("alice"),
			"id":          events.StringValue("alice@example.org"),
			"spanId":      events.NumberValue(123),
			"listenerId":  events.StringValue("smtp"),
			"localPort":   events.NumberValue(25),
			"remoteIp":    events.StringValue(addr),
			"remotePort":  events.NumberValue(51234),
		},
	}
}

func fieldLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.HasPrefix(l, "• ") {
			out = append(out, l)
		}
	}
	return out
}

func headerLines(s string) []string {
	lines := strings.Split(s, "\n")
	return lines[:5]
}

func TestShortModeIsFieldPrefix(t *testing.T) {
	f := newFormatter()
	ev := authFailed("evt-1", "198.51.100.10")

	full := f.Format(ev, Options{Locale: "en"})
	short := f.Format(ev, Options{Locale: "en", Short: true})

	fullFields, shortFields := fieldLines(full), fieldLines(short)
	if len(fullFields) != 7 || len(shortFields) != 3 {
		t.Fatalf("field counts = %d/%d, want 7/3", len(fullFields), len(shortFields))
	}
	for i := range shortFields {
		if shortFields[i] != fullFields[i] {
			t.Fatalf("short field %d = %q, want %q", i, shortFields[i], fullFields[i])
		}
	}
	if fmt.Sprint(headerLines(full)) != fmt.Sprint(headerLines(short)) {
		t.Fatalf("header changed in short mode:\n%v\n%v", headerLines(full), headerLines(short))
	}
}

func TestTemplatedLayout(t *testing.T) {
	got := newFormatter().Format(authFailed("evt-1", "198.51.100.10"), Options{Locale: "en"})
	lines := strings.Split(got, "\n")

	want := []string{
		"❌ <b>Auth failed</b>",
		"",
		"📋 <b>Event</b> · <code>auth.failed</code>",
		"🕐 <b>Date</b> · Jan 15, 2025, 2:30:45 PM",
		"🆔 <b>Ref.</b> · <code>evt-1</code>",
		"",
		"━━━ Connection details ━━━",
		"• Account · <code>alice</code>",
		"• ID · <code>alice@example.org</code>",
		"• Span ID · <code>123</code>",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("line %d = %q, want %q", i, lines[i], w)
		}
	}
	last := lines[len(lines)-1]
	if last != `🔗 <a href="https://www.abuseipdb.com/check/198.51.100.10">View on AbuseIPDB</a>` {
		t.Fatalf("last line = %q", last)
	}
}

func TestFallbackRendering(t *testing.T) {
	ev := events.WebhookEvent{
		ID:        "x1",
		CreatedAt: "2025-01-15T14:30:45Z",
		Type:      "queue.unknown-thing",
		Data: events.Data{
			"foo":                events.StringValue("bar"),
			events.TestMarkerKey: events.BoolValue(true),
		},
	}
	got := newFormatter().Format(ev, Options{})
	for _, want := range []string{"foo", "bar", "<pre>", "📬 <b>queue.unknown-thing</b>", "🧪 <b>TEST</b>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, `&#34;_test&#34;`) {
		t.Fatalf("test marker leaked into data block:\n%s", got)
	}
}

func TestMalformedDataNeverPanics(t *testing.T) {
	ev := events.WebhookEvent{
		Type: "delivery.failed",
		Data: events.Data{
			"from":  events.Null(),
			"to":    events.StringsValue(" a@x ", "", "b@y"),
			"error": events.StringValue("   "),
			"size":  events.BoolValue(true),
		},
	}
	got := newFormatter().Format(ev, Options{Locale: "zz", Timezone: "Not/AZone"})
	for _, want := range []string{
		"• Error · <code>—</code>",
		"• From · <code>—</code>",
		"• To · <code>a@x, b@y</code>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   events.Value
		want string
	}{
		{"null", events.Null(), "—"},
		{"blank", events.StringValue("  "), "—"},
		{"trimmed", events.StringValue(" x "), "x"},
		{"number", events.NumberValue(25), "25"},
		{"float", events.NumberValue(1.5), "1.5"},
		{"bool", events.BoolValue(false), "false"},
		{"list", events.StringsValue("a", "b"), "a, b"},
		{"empty list", events.StringsValue(), "—"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Stringify(tt.in); got != tt.want {
				t.Fatalf("Stringify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	f := newFormatter()
	tests := []struct {
		name string
		raw  string
		opts Options
		want string
	}{
		{"english default zone", "2025-01-15T14:30:45Z", Options{Locale: "en"}, "Jan 15, 2025, 2:30:45 PM"},
		{"french paris", "2025-01-15T14:30:45Z", Options{Locale: "fr", Timezone: "Europe/Paris"}, "15 janv. 2025, 15:30:45"},
		{"german", "2025-01-15T14:30:45.123Z", Options{Locale: "de"}, "15.01.2025, 14:30:45"},
		{"unknown zone uses default", "2025-01-15T14:30:45Z", Options{Locale: "it", Timezone: "Mars/Base"}, "15 gen 2025, 14:30:45"},
		{"invalid", "yesterday", Options{Locale: "en"}, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := f.Timestamp(tt.raw, tt.opts); got != tt.want {
				t.Fatalf("Timestamp = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalizedTitle(t *testing.T) {
	got := newFormatter().Format(authFailed("e", "203.0.113.7"), Options{Locale: "fr"})
	if !strings.HasPrefix(got, "❌ <b>Échec d&#39;authentification</b>") {
		t.Fatalf("unexpected french title: %q", strings.SplitN(got, "\n", 2)[0])
	}
	if !strings.Contains(got, "Voir sur AbuseIPDB") {
		t.Fatalf("link label not localized:\n%s", got)
	}
}

func TestNoLinkWithoutAddress(t *testing.T) {
	ev := events.WebhookEvent{ID: "s1", Type: "server.startup", Data: events.Data{"version": events.StringValue("0.11.0")}}
	got := newFormatter().Format(ev, Options{})
	if strings.Contains(got, "🔗") {
		t.Fatalf("unexpected link:\n%s", got)
	}
	if !strings.Contains(got, "━━━ Server info ━━━") {
		t.Fatalf("missing section label:\n%s", got)
	}
}

func TestFormatGroup(t *testing.T) {
	f := newFormatter()
	var evs []events.WebhookEvent
	for i := 1; i <= 7; i++ {
		evs = append(evs, authFailed(fmt.Sprintf("evt-%d", i), fmt.Sprintf("198.51.100.%d", i)))
	}

	got := f.FormatGroup("auth.failed", evs, Options{Locale: "en"})
	if !strings.HasPrefix(got, "📬 <b>7× Auth failed</b>") {
		t.Fatalf("unexpected header: %q", strings.SplitN(got, "\n", 2)[0])
	}
	if !strings.Contains(got, "5. <code>evt-5</code> · <code>198.51.100.5</code>") {
		t.Fatalf("index missing fifth entry:\n%s", got)
	}
	if strings.Contains(got, "6. <code>evt-6</code>") {
		t.Fatalf("index exceeds limit:\n%s", got)
	}
	if !strings.Contains(got, "… and 2 more") || !strings.Contains(got, "<b>Latest:</b>") {
		t.Fatalf("missing suffix or latest marker:\n%s", got)
	}
	if !strings.Contains(got, "🆔 <b>Ref.</b> · <code>evt-7</code>") {
		t.Fatalf("latest event not rendered in full:\n%s", got)
	}

	single := f.FormatGroup("auth.failed", evs[:1], Options{Locale: "en"})
	if single != f.Format(evs[0], Options{Locale: "en"}) {
		t.Fatalf("single-event group should render as a normal notification")
	}
}
