package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/eventbus"
	"stalwartbot/internal/events"
	"stalwartbot/internal/metrics"
	"stalwartbot/internal/pipeline/buffer"
	logx "stalwartbot/pkg/logx"
)

type staticSubs struct {
	byType map[string][]string
	err    error
}

func (s staticSubs) SubscribersFor(_ context.Context, eventType string) ([]string, error) {
	return s.byType[eventType], s.err
}

type recorder struct {
	mu      sync.Mutex
	single  []events.WebhookEvent
	to      [][]string
	batches []buffer.Batch
}

func (r *recorder) DeliverEvent(_ context.Context, recipients []string, ev events.WebhookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.single = append(r.single, ev)
	r.to = append(r.to, recipients)
}

func (r *recorder) DeliverBatch(_ context.Context, b buffer.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func authFailed(id, ip string) events.WebhookEvent {
	return events.WebhookEvent{
		ID:        id,
		CreatedAt: "2025-01-15T14:30:45Z",
		Type:      "auth.failed",
		Data:      events.Data{"remoteIp": events.StringValue(ip)},
	}
}

var start = time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)

func newPipeline(t *testing.T, s Settings, subs SubscriberResolver) (*Pipeline, *recorder, *clock.Fake, *prometheus.Registry) {
	t.Helper()
	clk := clock.NewFake(start)
	rec := &recorder{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := New(Deps{
		Subscribers: subs,
		Deliverer:   rec,
		Clock:       clk,
		Metrics:     m,
		Bus:         eventbus.New(),
	}, Resolve(s, logx.Nop()))
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, rec, clk, reg
}

func TestDuplicateWithinWindowDeliversOnce(t *testing.T) {
	subs := staticSubs{byType: map[string][]string{"auth.failed": {"42"}}}
	p, rec, clk, _ := newPipeline(t, Settings{DedupEnabled: true, DedupWindowSeconds: 60}, subs)

	require.Equal(t, OutcomeDelivered, p.Process(context.Background(), authFailed("e1", "198.51.100.10")))
	clk.Advance(5 * time.Second)
	require.Equal(t, OutcomeDuplicate, p.Process(context.Background(), authFailed("e2", "198.51.100.10")))

	require.Len(t, rec.single, 1)
	require.Equal(t, []string{"42"}, rec.to[0])
	require.Equal(t, "e1", rec.single[0].ID)
}

func TestSkipReasons(t *testing.T) {
	subs := staticSubs{byType: map[string][]string{
		"auth.failed":        {"1"},
		"delivery.completed": {"1"},
	}}
	cases := []struct {
		name     string
		settings Settings
		ev       events.WebhookEvent
		want     Outcome
	}{
		{
			name:     "ignored address",
			settings: Settings{IgnoredIPs: map[string][]string{"auth.failed": {"203.0.113.7"}}},
			ev:       authFailed("a", "203.0.113.7"),
			want:     OutcomeIgnoredIP,
		},
		{
			name:     "ignored list is per type",
			settings: Settings{IgnoredIPs: map[string][]string{"auth.success": {"203.0.113.7"}}},
			ev:       authFailed("a", "203.0.113.7"),
			want:     OutcomeDelivered,
		},
		{
			name:     "below minimum severity",
			settings: Settings{MinSeverity: "alert"},
			ev:       authFailed("a", "203.0.113.7"),
			want:     OutcomeSeverity,
		},
		{
			name:     "quiet hours",
			settings: Settings{QuietHoursStart: "14:00", QuietHoursEnd: "15:00"},
			ev:       authFailed("a", "203.0.113.7"),
			want:     OutcomeQuietHours,
		},
		{
			name:     "quiet hours follow the default timezone",
			settings: Settings{QuietHoursStart: "14:00", QuietHoursEnd: "15:00", DefaultTimezone: "Asia/Tokyo"},
			ev:       authFailed("a", "203.0.113.7"),
			want:     OutcomeDelivered,
		},
		{
			name: "no subscribers",
			ev:   events.WebhookEvent{ID: "s", Type: "server.startup"},
			want: OutcomeNoSubscribers,
		},
		{
			name:     "grouping buffers",
			settings: Settings{GroupWindowSeconds: 30},
			ev:       authFailed("a", "203.0.113.7"),
			want:     OutcomeBuffered,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _, _, _ := newPipeline(t, tc.settings, subs)
			if got := p.Process(context.Background(), tc.ev); got != tc.want {
				t.Fatalf("Process = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSubscriberErrorSkipsDelivery(t *testing.T) {
	p, rec, _, reg := newPipeline(t, Settings{}, staticSubs{err: errors.New("store down")})
	require.Equal(t, OutcomeSubscriberError, p.Process(context.Background(), authFailed("a", "198.51.100.10")))
	require.Empty(t, rec.single)

	n, err := testutil.GatherAndCount(reg, "stalwartbot_events_skipped_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

type panickingSubs struct{}

func (panickingSubs) SubscribersFor(context.Context, string) ([]string, error) {
	panic("lookup exploded")
}

func TestPanicReportedAsInternalError(t *testing.T) {
	p, rec, _, reg := newPipeline(t, Settings{}, panickingSubs{})
	require.Equal(t, OutcomeInternalError, p.Process(context.Background(), authFailed("a", "198.51.100.10")))
	require.Empty(t, rec.single)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var reasons []string
	for _, mf := range mfs {
		if mf.GetName() != "stalwartbot_events_skipped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" {
					reasons = append(reasons, l.GetValue())
				}
			}
		}
	}
	require.Equal(t, []string{"internal_error"}, reasons)
}

func TestGroupingFlushesOneBatchPerType(t *testing.T) {
	subs := staticSubs{byType: map[string][]string{
		"auth.failed":        {"1", "2"},
		"delivery.completed": {"2"},
	}}
	p, rec, clk, _ := newPipeline(t, Settings{GroupWindowSeconds: 30}, subs)
	ctx := context.Background()

	p.Process(ctx, authFailed("a", "198.51.100.1"))
	clk.Advance(10 * time.Second)
	p.Process(ctx, events.WebhookEvent{ID: "d", Type: "delivery.completed"})
	p.Process(ctx, authFailed("b", "198.51.100.2"))
	require.Empty(t, rec.batches)

	clk.Advance(20 * time.Second)
	require.Len(t, rec.batches, 2)
	require.Equal(t, "auth.failed", rec.batches[0].EventType)
	require.Len(t, rec.batches[0].Events, 2)
	require.Equal(t, "b", rec.batches[0].Latest().ID)
	require.Equal(t, "delivery.completed", rec.batches[1].EventType)
	require.Empty(t, rec.single)
}

func TestApplyChangesPolicyLive(t *testing.T) {
	subs := staticSubs{byType: map[string][]string{"auth.failed": {"1"}}}
	p, _, _, _ := newPipeline(t, Settings{}, subs)
	ctx := context.Background()

	require.Equal(t, OutcomeDelivered, p.Process(ctx, authFailed("a", "198.51.100.1")))
	p.Apply(Resolve(Settings{MinSeverity: "alert"}, logx.Nop()))
	require.Equal(t, OutcomeSeverity, p.Process(ctx, authFailed("b", "198.51.100.2")))
}

func TestCloseDropsPendingWindowAndRejects(t *testing.T) {
	subs := staticSubs{byType: map[string][]string{"auth.failed": {"1"}}}
	p, rec, clk, _ := newPipeline(t, Settings{GroupWindowSeconds: 30}, subs)

	p.Process(context.Background(), authFailed("a", "198.51.100.1"))
	require.NoError(t, p.Close(context.Background()))
	clk.Advance(time.Minute)

	require.Empty(t, rec.batches)
	require.Equal(t, OutcomeClosed, p.Process(context.Background(), authFailed("b", "198.51.100.2")))
}

func TestIngestIsAsynchronousAndDrainedByClose(t *testing.T) {
	subs := staticSubs{byType: map[string][]string{"auth.failed": {"1"}}}
	p, rec, _, _ := newPipeline(t, Settings{}, subs)

	p.Ingest(authFailed("a", "198.51.100.1"))
	require.NoError(t, p.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.single, 1)
}

func TestResolveFallsBackOnInvalidValues(t *testing.T) {
	pol := Resolve(Settings{
		DedupWindowSeconds: -5,
		MinSeverity:        "critical",
		QuietHoursStart:    "25:00",
		QuietHoursEnd:      "07:00",
		GroupWindowSeconds: -1,
		DefaultTimezone:    "Mars/Olympus",
	}, logx.Nop())

	require.Equal(t, 60*time.Second, pol.Dedup.Window)
	require.Equal(t, events.SeverityInfo, pol.MinSeverity)
	require.Empty(t, pol.QuietStart)
	require.Zero(t, pol.GroupWindow)
	require.Equal(t, time.UTC, pol.Location)
}
