package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EventReceived("auth.failed", true)
	m.EventReceived("made.up", false)
	m.EventSkipped("severity")
	m.EventSkipped("severity")
	m.NotificationSent("auth.failed", 10*time.Millisecond)
	m.NotificationFailed("auth.failed", time.Millisecond)
	m.SetDedupEntries(3)
	m.EventsPurged(0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.eventsReceived.WithLabelValues("auth.failed", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.eventsReceived.WithLabelValues(OtherType, "false")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.eventsSkipped.WithLabelValues("severity")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notificationsSent.WithLabelValues("auth.failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notificationsFailed.WithLabelValues("auth.failed")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.dedupEntries))
	require.Equal(t, 0.0, testutil.ToFloat64(m.eventsPurged))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EventReceived("x", true)
	m.NotificationFailed("x", 0)
	m.SetBufferPending(1)
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "418")))
}
