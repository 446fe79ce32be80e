package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"stalwartbot/internal/clock"
	logx "stalwartbot/pkg/logx"
)

type cleaner struct{ calls, removed int }

func (c *cleaner) CleanupDedup() int {
	c.calls++
	return c.removed
}

type purger struct {
	cutoff time.Time
	n      int64
	err    error
}

func (p *purger) PurgeEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.n, p.err
}

func TestPurgeUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p := &purger{n: 7}
	s := New(nil, p, 30, clock.NewFake(now), nil, logx.Nop())

	n, err := s.Purge(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("Purge = %d, %v", n, err)
	}
	if want := now.AddDate(0, 0, -30); !p.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", p.cutoff, want)
	}
}

func TestPurgeDisabled(t *testing.T) {
	p := &purger{n: 3}
	s := New(nil, p, 0, nil, nil, logx.Nop())
	if n, _ := s.Purge(context.Background()); n != 0 || !p.cutoff.IsZero() {
		t.Fatalf("purge ran with retention 0")
	}
	s.SetRetentionDays(1)
	if n, _ := s.Purge(context.Background()); n != 3 {
		t.Fatalf("purge after SetRetentionDays = %d", n)
	}
	if n, _ := New(nil, nil, 5, nil, nil, logx.Nop()).Purge(context.Background()); n != 0 {
		t.Fatalf("purge without store = %d", n)
	}
}

func TestPurgeErrorIsReturned(t *testing.T) {
	p := &purger{err: errors.New("disk full")}
	s := New(nil, p, 1, nil, nil, logx.Nop())
	if _, err := s.Purge(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCleanup(t *testing.T) {
	c := &cleaner{removed: 2}
	s := New(c, nil, 0, nil, nil, logx.Nop())
	if got := s.Cleanup(); got != 2 || c.calls != 1 {
		t.Fatalf("Cleanup = %d (calls %d)", got, c.calls)
	}
	if got := New(nil, nil, 0, nil, nil, logx.Nop()).Cleanup(); got != 0 {
		t.Fatalf("Cleanup without cache = %d", got)
	}
}

func TestSpecsParse(t *testing.T) {
	for _, spec := range []string{CleanupSpec, PurgeSpec} {
		if _, err := cron.ParseStandard(spec); err != nil {
			t.Fatalf("ParseStandard(%q): %v", spec, err)
		}
	}
}

func TestStartStop(t *testing.T) {
	s := New(&cleaner{}, nil, 0, nil, nil, logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)
}
