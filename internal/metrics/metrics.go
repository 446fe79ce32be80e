// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stalwartbot"

// OtherType replaces unknown event types in labels to bound cardinality.
const OtherType = "other"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsReceived      *prometheus.CounterVec
	eventsSkipped       *prometheus.CounterVec
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	deliveryDuration    prometheus.Histogram
	dedupEntries        prometheus.Gauge
	bufferPending       prometheus.Gauge
	eventsPurged        prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		eventsReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_received_total",
				Help:      "Webhook events handed to the pipeline.",
			},
			[]string{"event_type", "known"},
		),
		eventsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_skipped_total",
				Help:      "Events dropped before delivery, by reason.",
			},
			[]string{"reason"},
		),
		notificationsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Messages delivered to recipients.",
			},
			[]string{"event_type"},
		),
		notificationsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Delivery attempts that failed.",
			},
			[]string{"event_type"},
		),
		deliveryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent sending one message to one recipient.",
			Buckets:   prometheus.DefBuckets,
		}),
		dedupEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dedup_entries",
			Help:      "Live entries in the deduplication cache.",
		}),
		bufferPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_pending",
			Help:      "Notifications waiting in the grouping buffer.",
		}),
		eventsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_purged_total",
			Help:      "Stored events removed by the retention job.",
		}),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func knownLabel(known bool) string {
	if known {
		return "true"
	}
	return "false"
}

func (m *Metrics) EventReceived(eventType string, known bool) {
	if m == nil {
		return
	}
	if !known {
		eventType = OtherType
	}
	m.eventsReceived.WithLabelValues(eventType, knownLabel(known)).Inc()
}

func (m *Metrics) EventSkipped(reason string) {
	if m == nil {
		return
	}
	m.eventsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) NotificationSent(eventType string, took time.Duration) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(eventType).Inc()
	m.deliveryDuration.Observe(took.Seconds())
}

func (m *Metrics) NotificationFailed(eventType string, took time.Duration) {
	if m == nil {
		return
	}
	m.notificationsFailed.WithLabelValues(eventType).Inc()
	m.deliveryDuration.Observe(took.Seconds())
}

func (m *Metrics) SetDedupEntries(n int) {
	if m == nil {
		return
	}
	m.dedupEntries.Set(float64(n))
}

func (m *Metrics) SetBufferPending(n int) {
	if m == nil {
		return
	}
	m.bufferPending.Set(float64(n))
}

func (m *Metrics) EventsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsPurged.Add(float64(n))
}
