// Package maintenance runs the periodic housekeeping jobs: dedup cache
// sweeps and retention of recorded events.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/metrics"
	logx "stalwartbot/pkg/logx"
)

const (
	CleanupSpec = "@every 1m"
	PurgeSpec   = "@hourly"

	jobTimeout = 2 * time.Minute
)

// DedupCleaner sweeps expired dedup entries.
type DedupCleaner interface {
	CleanupDedup() int
}

// Purger deletes recorded events older than a cutoff.
type Purger interface {
	PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	dedup   DedupCleaner
	purger  Purger
	clk     clock.Clock
	log     logx.Logger
	metrics *metrics.Metrics

	retentionDays atomic.Int64

	mu sync.Mutex
	c  *cron.Cron
}

// New returns a stopped service. purger may be nil when events are not
// recorded.
func New(dedup DedupCleaner, purger Purger, retentionDays int, clk clock.Clock, m *metrics.Metrics, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{dedup: dedup, purger: purger, clk: clock.OrReal(clk), log: log, metrics: m}
	s.retentionDays.Store(int64(retentionDays))
	return s
}

// SetRetentionDays changes the retention; 0 disables purging.
func (s *Service) SetRetentionDays(days int) { s.retentionDays.Store(int64(days)) }

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.log}),
		cron.SkipIfStillRunning(cronLogger{s.log}),
	))
	if _, err := c.AddFunc(CleanupSpec, func() { s.Cleanup() }); err != nil {
		return fmt.Errorf("maintenance: schedule cleanup: %w", err)
	}
	if _, err := c.AddFunc(PurgeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_, _ = s.Purge(ctx)
	}); err != nil {
		return fmt.Errorf("maintenance: schedule purge: %w", err)
	}
	c.Start()
	s.c = c
	s.log.Info("maintenance started", logx.String("cleanup", CleanupSpec), logx.String("purge", PurgeSpec))
	return nil
}

// Stop halts the schedule and waits for a running job.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("maintenance stopped")
}

// Cleanup sweeps the dedup cache once.
func (s *Service) Cleanup() int {
	if s.dedup == nil {
		return 0
	}
	n := s.dedup.CleanupDedup()
	if n > 0 {
		s.log.Debug("dedup entries expired", logx.Int("removed", n))
	}
	return n
}

// Purge deletes recorded events older than the retention once.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	days := s.retentionDays.Load()
	if s.purger == nil || days <= 0 {
		return 0, nil
	}
	cutoff := s.clk.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := s.purger.PurgeEventsBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("event purge failed", logx.Err(err), logx.Time("cutoff", cutoff))
		return 0, err
	}
	s.metrics.EventsPurged(n)
	if n > 0 {
		s.log.Info("purged old events", logx.Int64("deleted", n), logx.Int64("retention_days", days))
	}
	return n, nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
