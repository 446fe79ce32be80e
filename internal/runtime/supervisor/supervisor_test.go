package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPanicIsRecoveredAndRecorded(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go("boom", func(context.Context) error { panic("kaboom") })

	err := s.Wait(waitCtx(t))
	if err == nil {
		t.Fatalf("expected recorded error")
	}
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Panics != 1 || snap[0].Active != 0 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func TestCancelOnError(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })
	s.Go("failer", func(context.Context) error { return errors.New("bad") })

	if err := s.Wait(waitCtx(t)); err == nil || err.Error() != "failer: bad" {
		t.Fatalf("Wait err = %v", err)
	}
}

func TestCanceledIsCleanExit(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := s.Stop(waitCtx(t)); err != nil {
		t.Fatalf("Stop err = %v", err)
	}
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	s := NewSupervisor(context.Background())
	var runs int32
	s.GoRestart("flaky", func(context.Context) error {
		if atomic.AddInt32(&runs, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait err = %v", err)
	}
	if got := atomic.LoadInt32(&runs); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestGoRestartGivesUp(t *testing.T) {
	s := NewSupervisor(context.Background())
	var runs int32
	s.GoRestart("broken", func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("nope")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	if err := s.Wait(waitCtx(t)); err == nil {
		t.Fatalf("expected final error")
	}
	if got := atomic.LoadInt32(&runs); got != 3 {
		t.Fatalf("runs = %d, want 3 (initial + 2 restarts)", got)
	}
}
