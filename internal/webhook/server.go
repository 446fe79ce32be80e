// Package webhook receives Stalwart webhook deliveries over HTTP and feeds
// each event to the notification pipeline.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"stalwartbot/internal/events"
	"stalwartbot/internal/metrics"
	logx "stalwartbot/pkg/logx"
)

const (
	DefaultMaxBodyBytes = 4 << 20
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Ingestor accepts decoded events. Ingest must not block on delivery.
type Ingestor interface {
	Ingest(ev events.WebhookEvent)
}

// Credentials are optional; each check runs only when its values are set.
type Credentials struct {
	Key      string
	Username string
	Password string
	// MetricsProtected puts /metrics behind Basic auth.
	MetricsProtected bool
}

func (c Credentials) basic() bool { return c.Username != "" || c.Password != "" }

type Config struct {
	Addr         string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Pprof mounts net/http/pprof under /debug, behind the metrics auth.
	Pprof bool
}

type Server struct {
	cfg     Config
	creds   atomic.Pointer[Credentials]
	ingest  Ingestor
	metrics *metrics.Metrics
	promH   http.Handler
	log     logx.Logger
	known   func(eventType string) bool
}

// New builds the server. promHandler serves /metrics and may be nil.
func New(cfg Config, creds Credentials, in Ingestor, m *metrics.Metrics, promHandler http.Handler, log logx.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, ingest: in, metrics: m, promH: promHandler, log: log, known: events.Stalwart.Known}
	s.creds.Store(&creds)
	return s
}

// SetCredentials swaps the webhook credentials without restarting.
func (s *Server) SetCredentials(c Credentials) { s.creds.Store(&c) }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.HTTPMiddleware)
	r.Post("/", s.receive)
	r.Get("/", ok)
	r.Get("/health", ok)
	if s.promH != nil {
		r.With(s.protectMetrics).Method(http.MethodGet, "/metrics", s.promH)
	}
	if s.cfg.Pprof {
		r.With(s.protectMetrics).Mount("/debug", middleware.Profiler())
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("webhook not found", logx.String("method", r.Method), logx.String("path", r.URL.Path))
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	return r
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) protectMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := s.creds.Load()
		if c.MetricsProtected && c.basic() && !VerifyBasicAuth(r, c.Username, c.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.log.Warn("webhook body read failed", logx.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	c := s.creds.Load()
	if c.Key != "" && !VerifySignature(body, c.Key, r.Header.Get(SignatureHeader)) {
		s.log.Warn("webhook unauthorized: invalid signature", logx.String("remote", r.RemoteAddr))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if c.basic() && !VerifyBasicAuth(r, c.Username, c.Password) {
		s.log.Warn("webhook unauthorized: invalid basic auth", logx.String("remote", r.RemoteAddr))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	evs, skipped, err := DecodePayload(body)
	if skipped > 0 {
		s.log.Warn("webhook events dropped: not JSON objects", logx.Int("skipped", skipped))
	}
	if err != nil {
		s.log.Warn("webhook bad request", logx.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	known := 0
	for i := range evs {
		if strings.TrimSpace(evs[i].ID) == "" {
			evs[i].ID = uuid.NewString()
		}
		k := s.known(evs[i].Type)
		if k {
			known++
		}
		s.log.Info("event received",
			logx.String("event_type", evs[i].Type),
			logx.String("event_id", evs[i].ID),
			logx.String("ip", events.SourceAddress(evs[i])),
			logx.Bool("known", k),
		)
		s.ingest.Ingest(evs[i])
	}
	s.log.Debug("webhook accepted", logx.Int("events", len(evs)), logx.Int("known", known))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"ok":true}`)
}

var ErrNoEvents = errors.New("webhook: body has no events array")

// DecodePayload parses a webhook body. The events field must be an array;
// elements that are not objects are dropped and counted in skipped.
func DecodePayload(body []byte) (evs []events.WebhookEvent, skipped int, err error) {
	var p struct {
		Events *[]json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, 0, err
	}
	if p.Events == nil {
		return nil, 0, ErrNoEvents
	}
	evs = make([]events.WebhookEvent, 0, len(*p.Events))
	for _, raw := range *p.Events {
		var ev events.WebhookEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			skipped++
			continue
		}
		evs = append(evs, ev)
	}
	return evs, skipped, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("webhook server listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.log.Warn("webhook server shutdown", logx.Err(err))
		}
		return nil
	}
}
