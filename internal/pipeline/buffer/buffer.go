// Package buffer groups notifications of the same event type that arrive
// within one grouping window into a single batch.
package buffer

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/events"
	logx "stalwartbot/pkg/logx"
)

// Pending is one admitted event with the recipients it is destined to.
type Pending struct {
	Event      events.WebhookEvent
	Recipients []string
}

// Batch is every pending notification of one event type drained in a flush.
// Events keep arrival order; Recipients is the union of all contributors in
// first-seen order.
type Batch struct {
	EventType  string
	Events     []events.WebhookEvent
	Recipients []string
}

// Latest returns the most recent event of the batch.
func (b Batch) Latest() events.WebhookEvent {
	if len(b.Events) == 0 {
		return events.WebhookEvent{}
	}
	return b.Events[len(b.Events)-1]
}

// FlushFunc receives one grouped batch. It is called once per event type.
type FlushFunc func(b Batch)

// Buffer is a single shared queue with a one-shot flush timer.
//
// The first Add after the queue was empty arms the timer; later Adds join the
// open window without re-arming it, which bounds the latency of every batch
// to one window regardless of inflow.
type Buffer struct {
	clk clock.Clock
	log logx.Logger

	mu      sync.Mutex
	queue   []Pending
	timer   clock.Timer
	onFlush FlushFunc
	gen     uint64
}

func New(clk clock.Clock, log logx.Logger) *Buffer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Buffer{clk: clock.OrReal(clk), log: log}
}

// Add queues ev for recipients. onFlush is bound to the window this call
// opens; calls joining an open window keep the window's callback.
// A non-positive window is a no-op: callers bypass the buffer in that case.
func (b *Buffer) Add(ev events.WebhookEvent, recipients []string, window time.Duration, onFlush FlushFunc) {
	if window <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, Pending{Event: ev, Recipients: append([]string(nil), recipients...)})
	if b.timer != nil {
		return
	}
	b.onFlush = onFlush
	gen := b.gen
	b.timer = b.clk.AfterFunc(window, func() { b.flush(gen) })
}

// Len returns the number of queued notifications.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Reset stops a pending window and drops everything queued.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.queue = nil
	b.onFlush = nil
	b.gen++
}

func (b *Buffer) flush(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		// Reset ran after this window was armed.
		b.mu.Unlock()
		return
	}
	items := b.queue
	b.queue = nil
	fn := b.onFlush
	b.onFlush = nil
	b.timer = nil
	b.gen++
	b.mu.Unlock()

	if len(items) == 0 || fn == nil {
		return
	}
	for _, batch := range Group(items) {
		b.emit(fn, batch)
	}
}

// emit isolates one batch: a panicking callback must not keep later batches
// (or the next window) from running.
func (b *Buffer) emit(fn FlushFunc, batch Batch) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("flush callback panicked",
				logx.String("event_type", batch.EventType),
				logx.Int("events", len(batch.Events)),
				logx.String("panic", fmt.Sprint(r)),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn(batch)
}

// Group merges pending notifications by event type. Batches are returned in
// the order their type first appeared.
func Group(items []Pending) []Batch {
	out := make([]Batch, 0, len(items))
	index := map[string]int{}
	seen := map[string]map[string]struct{}{}
	for _, it := range items {
		t := it.Event.Type
		i, ok := index[t]
		if !ok {
			i = len(out)
			index[t] = i
			out = append(out, Batch{EventType: t})
			seen[t] = map[string]struct{}{}
		}
		out[i].Events = append(out[i].Events, it.Event)
		for _, r := range it.Recipients {
			if _, dup := seen[t][r]; dup {
				continue
			}
			seen[t][r] = struct{}{}
			out[i].Recipients = append(out[i].Recipients, r)
		}
	}
	return out
}
