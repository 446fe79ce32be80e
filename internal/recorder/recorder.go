// Package recorder consumes pipeline signals from the event bus. It keeps
// the counters shown by /status and, when a store is configured, persists
// every received event and the addresses of security.ip-blocked events.
package recorder

import (
	"context"
	"sync"
	"time"

	"stalwartbot/internal/eventbus"
	"stalwartbot/internal/events"
	"stalwartbot/internal/storage"
	logx "stalwartbot/pkg/logx"
)

const (
	busBuffer    = 256
	writeTimeout = 5 * time.Second
	blockedType  = "security.ip-blocked"
)

// EventLog is the subset of storage.Store the recorder writes to.
type EventLog interface {
	AppendEvent(ctx context.Context, e storage.StoredEvent) error
	RecordBlockedAddress(ctx context.Context, ip, eventID string, at time.Time) error
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Received    uint64
	Skipped     map[string]uint64
	Sent        uint64
	Failed      uint64
	LastEvent   time.Time
	LastType    string
	StartedAt   time.Time
	WriteErrors uint64
	BusDropped  uint64
}

type Recorder struct {
	bus eventbus.Bus
	out EventLog
	log logx.Logger

	mu    sync.Mutex
	stats Stats
}

// New returns a recorder. out may be nil; counters are kept regardless.
func New(bus eventbus.Bus, out EventLog, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{
		bus:   bus,
		out:   out,
		log:   log,
		stats: Stats{Skipped: map[string]uint64{}, StartedAt: time.Now()},
	}
}

// Run consumes the bus until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	ch, unsub := r.bus.Subscribe(busBuffer)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			r.Handle(ctx, e)
		}
	}
}

// Handle applies one signal.
func (r *Recorder) Handle(ctx context.Context, e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeEventReceived:
		d, ok := e.Data.(eventbus.EventReceived)
		if !ok {
			return
		}
		r.mu.Lock()
		r.stats.Received++
		r.stats.LastEvent = e.Time
		r.stats.LastType = d.Event.Type
		r.mu.Unlock()
		r.persist(ctx, d.Event, d.Source, e.Time)
	case eventbus.TypeEventSkipped:
		if d, ok := e.Data.(eventbus.EventSkipped); ok {
			r.mu.Lock()
			r.stats.Skipped[d.Reason]++
			r.mu.Unlock()
		}
	case eventbus.TypeNotificationSent:
		r.mu.Lock()
		r.stats.Sent++
		r.mu.Unlock()
	case eventbus.TypeNotificationFailed:
		r.mu.Lock()
		r.stats.Failed++
		r.mu.Unlock()
	}
}

func (r *Recorder) persist(ctx context.Context, ev events.WebhookEvent, addr string, at time.Time) {
	if r.out == nil || ev.IsTest() {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err := r.out.AppendEvent(wctx, storage.StoredEvent{
		ID:         ev.ID,
		Type:       ev.Type,
		CreatedAt:  ev.CreatedAt,
		SourceIP:   addr,
		ReceivedAt: at,
		Data:       ev.Data,
	})
	if err == nil && ev.Type == blockedType && addr != "" {
		err = r.out.RecordBlockedAddress(wctx, addr, ev.ID, at)
	}
	if err != nil {
		r.mu.Lock()
		r.stats.WriteErrors++
		r.mu.Unlock()
		r.log.Error("event record failed", logx.String("event_type", ev.Type), logx.String("event_id", ev.ID), logx.Err(err))
	}
}

// Snapshot returns a copy of the counters.
func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Skipped = make(map[string]uint64, len(r.stats.Skipped))
	for k, v := range r.stats.Skipped {
		s.Skipped[k] = v
	}
	if r.bus != nil {
		s.BusDropped = r.bus.Dropped()
	}
	return s
}
