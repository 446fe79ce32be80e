// Package pipeline runs each incoming webhook event through the filter,
// deduplication, subscriber lookup and (optional) grouping stages before
// handing it to the dispatcher.
package pipeline

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/eventbus"
	"stalwartbot/internal/events"
	"stalwartbot/internal/metrics"
	"stalwartbot/internal/pipeline/buffer"
	"stalwartbot/internal/pipeline/dedup"
	"stalwartbot/internal/pipeline/filter"
	logx "stalwartbot/pkg/logx"
)

var ErrClosed = errors.New("pipeline closed")

// Outcome is the terminal decision for one event.
type Outcome string

const (
	OutcomeIgnoredIP       Outcome = "ignored_ip"
	OutcomeSeverity        Outcome = "severity"
	OutcomeQuietHours      Outcome = "quiet_hours"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeNoSubscribers   Outcome = "no_subscribers"
	OutcomeSubscriberError Outcome = "subscriber_error"
	OutcomeBuffered        Outcome = "buffered"
	OutcomeDelivered       Outcome = "delivered"
	OutcomeClosed          Outcome = "closed"
	OutcomeInternalError   Outcome = "internal_error"
)

// msgType maps skip outcomes to the log message types operators grep for.
var msgType = map[Outcome]string{
	OutcomeIgnoredIP:     "event_ignored_ip",
	OutcomeSeverity:      "event_skipped_severity",
	OutcomeQuietHours:    "event_skipped_quiet_hours",
	OutcomeDuplicate:     "event_deduplicated",
	OutcomeNoSubscribers: "event_skipped_no_subscribers",
}

// Registry classifies event types.
type Registry interface {
	filter.SeverityResolver
	Known(eventType string) bool
}

// SubscriberResolver maps an event type to its recipients.
type SubscriberResolver interface {
	SubscribersFor(ctx context.Context, eventType string) ([]string, error)
}

// Deliverer sends admitted events. Implementations isolate per-recipient
// failures and never return errors.
type Deliverer interface {
	DeliverEvent(ctx context.Context, recipients []string, ev events.WebhookEvent)
	DeliverBatch(ctx context.Context, b buffer.Batch)
}

type Deps struct {
	Registry    Registry
	Subscribers SubscriberResolver
	Deliverer   Deliverer
	Extract     events.AddressExtractor
	Clock       clock.Clock
	Log         logx.Logger
	Metrics     *metrics.Metrics
	Bus         eventbus.Bus
}

// Pipeline owns the dedup cache and the grouping buffer.
type Pipeline struct {
	reg     Registry
	subs    SubscriberResolver
	out     Deliverer
	extract events.AddressExtractor
	clk     clock.Clock
	log     logx.Logger
	metrics *metrics.Metrics
	bus     eventbus.Bus

	policy atomic.Pointer[Policy]
	dedup  *dedup.Cache
	buf    *buffer.Buffer

	// base is the context of admitted work. It is never cancelled so that
	// in-flight deliveries finish during shutdown.
	base   context.Context
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(d Deps, p Policy) *Pipeline {
	if d.Registry == nil {
		d.Registry = events.Stalwart
	}
	if d.Extract == nil {
		d.Extract = events.SourceAddress
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	clk := clock.OrReal(d.Clock)
	if p.Location == nil {
		p.Location = time.UTC
	}
	pl := &Pipeline{
		reg:     d.Registry,
		subs:    d.Subscribers,
		out:     d.Deliverer,
		extract: d.Extract,
		clk:     clk,
		log:     d.Log,
		metrics: d.Metrics,
		bus:     d.Bus,
		dedup:   dedup.New(p.Dedup, clk),
		buf:     buffer.New(clk, d.Log.With(logx.String("comp", "buffer"))),
		base:    context.Background(),
	}
	pl.policy.Store(&p)
	return pl
}

// Apply swaps the policy. Events already buffered keep their window.
func (p *Pipeline) Apply(pol Policy) {
	if pol.Location == nil {
		pol.Location = p.Policy().Location
	}
	p.policy.Store(&pol)
	p.dedup.Apply(pol.Dedup)
}

// Policy returns the active policy.
func (p *Pipeline) Policy() Policy { return *p.policy.Load() }

// Ingest processes ev asynchronously. It never blocks on I/O and never
// panics; every failure is logged.
func (p *Pipeline) Ingest(ev events.WebhookEvent) {
	if !p.acquire() {
		p.log.Warn("event dropped, pipeline closed", logx.String("event_type", ev.Type), logx.String("event_id", ev.ID))
		return
	}
	go func() {
		defer p.wg.Done()
		_ = p.process(p.base, ev)
	}()
}

// Process runs ev through the pipeline synchronously and returns the
// terminal decision.
func (p *Pipeline) Process(ctx context.Context, ev events.WebhookEvent) Outcome {
	if !p.acquire() {
		return OutcomeClosed
	}
	defer p.wg.Done()
	return p.process(ctx, ev)
}

func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

func (p *Pipeline) process(ctx context.Context, ev events.WebhookEvent) (out Outcome) {
	addr := p.extract(ev)
	log := p.log.With(
		logx.String("event_type", ev.Type),
		logx.String("event_id", ev.ID),
		logx.String("ip", addr),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("event processing panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			p.metrics.EventSkipped(string(OutcomeInternalError))
			p.publish(eventbus.TypeEventSkipped, eventbus.EventSkipped{Event: ev, Reason: string(OutcomeInternalError)})
			out = OutcomeInternalError
		}
	}()

	known := p.reg.Known(ev.Type)
	p.metrics.EventReceived(ev.Type, known)
	p.publish(eventbus.TypeEventReceived, eventbus.EventReceived{Event: ev, Source: addr})

	pol := p.Policy()
	switch {
	case pol.Ignored(ev.Type, addr):
		return p.skip(log, ev, OutcomeIgnoredIP)
	case !filter.PassesSeverity(p.reg, ev.Type, pol.MinSeverity):
		return p.skip(log, ev, OutcomeSeverity)
	case filter.IsQuiet(pol.QuietStart, pol.QuietEnd, p.clk.Now().In(pol.Location)):
		return p.skip(log, ev, OutcomeQuietHours)
	case !p.dedup.ShouldNotify(ev, p.extract):
		return p.skip(log, ev, OutcomeDuplicate)
	}
	p.metrics.SetDedupEntries(p.dedup.Len())

	recipients, err := p.subs.SubscribersFor(ctx, ev.Type)
	if err != nil {
		log.Error("subscriber lookup failed", logx.Err(err))
		p.metrics.EventSkipped(string(OutcomeSubscriberError))
		p.publish(eventbus.TypeEventSkipped, eventbus.EventSkipped{Event: ev, Reason: string(OutcomeSubscriberError)})
		return OutcomeSubscriberError
	}
	if len(recipients) == 0 {
		return p.skip(log, ev, OutcomeNoSubscribers)
	}

	if pol.GroupWindow > 0 {
		p.buf.Add(ev, recipients, pol.GroupWindow, p.flush)
		p.metrics.SetBufferPending(p.buf.Len())
		log.Debug("event buffered", logx.Int("recipients", len(recipients)), logx.Duration("window", pol.GroupWindow))
		return OutcomeBuffered
	}
	p.out.DeliverEvent(ctx, recipients, ev)
	return OutcomeDelivered
}

func (p *Pipeline) skip(log logx.Logger, ev events.WebhookEvent, o Outcome) Outcome {
	log.Info("event skipped", logx.String("msg_type", msgType[o]))
	p.metrics.EventSkipped(string(o))
	p.publish(eventbus.TypeEventSkipped, eventbus.EventSkipped{Event: ev, Reason: string(o)})
	return o
}

// flush runs on the buffer's timer once per grouped batch.
func (p *Pipeline) flush(b buffer.Batch) {
	p.metrics.SetBufferPending(p.buf.Len())
	if !p.acquire() {
		return
	}
	defer p.wg.Done()
	p.log.Info("flushing grouped notifications",
		logx.String("event_type", b.EventType),
		logx.Int("events", len(b.Events)),
		logx.Int("recipients", len(b.Recipients)),
	)
	p.out.DeliverBatch(p.base, b)
}

func (p *Pipeline) publish(typ string, data any) {
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: typ, Time: p.clk.Now(), Data: data})
	}
}

// CleanupDedup sweeps expired dedup entries and returns how many were removed.
func (p *Pipeline) CleanupDedup() int {
	n := p.dedup.Cleanup()
	p.metrics.SetDedupEntries(p.dedup.Len())
	return n
}

// Reset clears the dedup cache and drops any open grouping window.
func (p *Pipeline) Reset() {
	p.dedup.Reset()
	p.buf.Reset()
	p.metrics.SetDedupEntries(0)
	p.metrics.SetBufferPending(0)
}

// Close stops accepting events, drops the pending grouping window and waits
// for in-flight processing and deliveries to finish or ctx to expire.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if n := p.buf.Len(); n > 0 {
		p.log.Warn("dropping pending grouped notifications", logx.Int("pending", n))
	}
	p.buf.Reset()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
