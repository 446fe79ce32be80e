// Package clock abstracts wall-clock reads and one-shot timers so that
// time-windowed components (dedup, grouping, quiet hours) can be driven
// deterministically in tests.
package clock

import "time"

// Timer is a handle for a scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped the timer
	// (false if it already fired or was stopped).
	Stop() bool
}

// Clock is the time source used by the pipeline.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// OrReal returns c, or the real clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
