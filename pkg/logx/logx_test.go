package logx

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stalwartbot/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	to   []transport.ChatTarget
}

func (r *recordingSender) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	r.to = append(r.to, to)
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestWithFieldsAreApplied(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf)).With(String("comp", "pipeline"))
	log.Info("event_notification", String("event_type", "auth.failed"), Int("recipients", 2))

	out := buf.String()
	for _, want := range []string{`"comp":"pipeline"`, `"event_type":"auth.failed"`, `"recipients":2`, `"message":"event_notification"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %s missing %s", out, want)
		}
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Error("ignored", Err(nil))
	Nop().With(String("a", "b")).Warn("ignored")
}

func TestFormatTelegramJSON(t *testing.T) {
	line := []byte(`{"level":"error","time":"x","message":"send failed","recipient":"42","event_type":"auth.failed"}`)
	got := formatTelegramJSON(line)
	want := "[ERROR] send failed\n- event_type=auth.failed\n- recipient=42"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := formatTelegramJSON([]byte("plain text\n")); got != "plain text" {
		t.Fatalf("non-JSON line = %q", got)
	}
}

func TestTelegramSinkRespectsLevel(t *testing.T) {
	sender := &recordingSender{}
	svc, log := New(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled:    true,
			ChatID:     -100,
			MinLevel:   "warn",
			RatePerSec: 10,
		},
	}, sender)
	defer svc.Close()

	log.Info("not mirrored")
	log.Error("mirrored", String("k", "v"))

	deadline := time.Now().Add(2 * time.Second)
	for sender.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1: %v", len(sender.sent), sender.sent)
	}
	if !strings.HasPrefix(sender.sent[0], "[ERROR] mirrored") || sender.to[0].ChatID != -100 {
		t.Fatalf("unexpected ops message %q to %+v", sender.sent[0], sender.to[0])
	}
}
