package buffer

import (
	"fmt"
	"testing"
	"time"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/events"
	logx "stalwartbot/pkg/logx"
)

func ev(typ, addr string) events.WebhookEvent {
	return events.WebhookEvent{ID: typ + "-" + addr, Type: typ, Data: events.Data{"remoteIp": events.StringValue(addr)}}
}

func newBuffer() (*Buffer, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	return New(clk, logx.Nop()), clk
}

func TestGroupsSameTypeIntoOneBatch(t *testing.T) {
	b, clk := newBuffer()
	var got []Batch
	flush := func(batch Batch) { got = append(got, batch) }

	for i := 0; i < 5; i++ {
		b.Add(ev("auth.failed", fmt.Sprintf("198.51.100.%d", i)), []string{"100"}, 10*time.Second, flush)
		clk.Advance(time.Second)
	}
	b.Add(ev("delivery.failed", "203.0.113.1"), []string{"100", "200"}, 10*time.Second, flush)

	if len(got) != 0 {
		t.Fatalf("flushed before window expired")
	}
	clk.Advance(10 * time.Second)

	if len(got) != 2 {
		t.Fatalf("batches = %d, want 2", len(got))
	}
	if got[0].EventType != "auth.failed" || len(got[0].Events) != 5 {
		t.Fatalf("first batch = %s with %d events", got[0].EventType, len(got[0].Events))
	}
	for i, e := range got[0].Events {
		if want := fmt.Sprintf("auth.failed-198.51.100.%d", i); e.ID != want {
			t.Fatalf("event %d = %s, want %s (arrival order)", i, e.ID, want)
		}
	}
	if got[1].EventType != "delivery.failed" || len(got[1].Recipients) != 2 {
		t.Fatalf("second batch = %+v", got[1])
	}
	if b.Len() != 0 {
		t.Fatalf("queue not drained: %d", b.Len())
	}
}

func TestWindowAnchoredToFirstArrival(t *testing.T) {
	b, clk := newBuffer()
	flushes := 0
	flush := func(Batch) { flushes++ }

	b.Add(ev("auth.failed", "a"), []string{"1"}, 10*time.Second, flush)
	clk.Advance(9 * time.Second)
	b.Add(ev("auth.failed", "b"), []string{"1"}, 10*time.Second, flush)
	if clk.Pending() != 1 {
		t.Fatalf("timers armed = %d, want 1", clk.Pending())
	}
	clk.Advance(time.Second)
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1 at first-arrival + window", flushes)
	}
}

func TestRecipientUnion(t *testing.T) {
	batches := Group([]Pending{
		{Event: ev("auth.failed", "a"), Recipients: []string{"1", "2"}},
		{Event: ev("auth.failed", "b"), Recipients: []string{"2", "3"}},
	})
	if len(batches) != 1 {
		t.Fatalf("batches = %d", len(batches))
	}
	want := []string{"1", "2", "3"}
	if fmt.Sprint(batches[0].Recipients) != fmt.Sprint(want) {
		t.Fatalf("recipients = %v, want %v", batches[0].Recipients, want)
	}
	if batches[0].Latest().ID != "auth.failed-b" {
		t.Fatalf("latest = %s", batches[0].Latest().ID)
	}
}

func TestPanickingFlushDoesNotBlockNextWindow(t *testing.T) {
	b, clk := newBuffer()
	calls := 0
	flush := func(Batch) {
		calls++
		panic("downstream exploded")
	}
	b.Add(ev("auth.failed", "a"), []string{"1"}, time.Second, flush)
	b.Add(ev("auth.error", "a"), []string{"1"}, time.Second, flush)
	clk.Advance(time.Second)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (one per batch despite panic)", calls)
	}

	ok := false
	b.Add(ev("auth.failed", "b"), []string{"1"}, time.Second, func(Batch) { ok = true })
	clk.Advance(time.Second)
	if !ok {
		t.Fatalf("next window did not flush")
	}
}

func TestNonPositiveWindowIsNoop(t *testing.T) {
	b, clk := newBuffer()
	b.Add(ev("auth.failed", "a"), []string{"1"}, 0, func(Batch) { t.Fatalf("unexpected flush") })
	if b.Len() != 0 || clk.Pending() != 0 {
		t.Fatalf("zero window must not queue or arm")
	}
}

func TestResetDropsWindow(t *testing.T) {
	b, clk := newBuffer()
	b.Add(ev("auth.failed", "a"), []string{"1"}, time.Second, func(Batch) { t.Fatalf("flushed after reset") })
	b.Reset()
	clk.Advance(2 * time.Second)
	if b.Len() != 0 {
		t.Fatalf("reset left %d items", b.Len())
	}
}
