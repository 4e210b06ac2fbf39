// Package timer provides interval timers that are probed from the outside.
//
// Timers never sleep and never start goroutines. The owner passes in the
// current instant, usually the instant of the frame being processed, and the
// timer reports whether it was due. A Timer is not safe for concurrent use.
package timer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

var (
	ErrInvalidInterval = errors.New("timer: interval must be positive")
	ErrNoInterval      = errors.New("timer: no interval set")
)

// Timer tracks when it is next due. Missed ticks are skipped, never replayed.
type Timer struct {
	next    time.Time
	tickLen time.Duration
}

// New creates a timer that first fires one tick length after start.
func New(tickLen time.Duration, start time.Time) (*Timer, error) {
	if tickLen <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, tickLen)
	}
	return &Timer{next: advance(start, tickLen, 1), tickLen: tickLen}, nil
}

func (t *Timer) TickLength() time.Duration {
	return t.tickLen
}

// Next is the instant the timer is next due.
func (t *Timer) Next() time.Time {
	return t.next
}

// HasFired reports whether the timer is due at now.
func (t *Timer) HasFired(now time.Time) bool {
	return !t.next.After(now)
}

// Remaining is the time left until the timer is due, zero once it is.
func (t *Timer) Remaining(now time.Time) time.Duration {
	return timeutil.Sub(t.next, now)
}

// Reset re-arms a fired timer on the first tick boundary after now and
// returns how many boundaries were skipped on the way. Calling it on a timer
// that has not fired does nothing.
func (t *Timer) Reset(now time.Time) uint32 {
	if !t.HasFired(now) {
		return 0
	}
	skipped := ticksBetween(t.next, now, t.tickLen)
	t.next = advance(t.next, t.tickLen, skipped+1)
	if skipped > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(skipped)
}

// Handle resets the timer if it has fired and reports whether it did.
func (t *Timer) Handle(now time.Time) bool {
	if !t.HasFired(now) {
		return false
	}
	t.Reset(now)
	return true
}

// ticksBetween returns floor((to-from)/tickLen), zero if to precedes from.
func ticksBetween(from, to time.Time, tickLen time.Duration) uint64 {
	return timeutil.MustNanos(timeutil.Sub(to, from)) / timeutil.MustNanos(tickLen)
}

// advance returns t moved forward by n ticks. Overflowing a time.Duration is
// fatal: it means the timer has been running for centuries.
func advance(t time.Time, tickLen time.Duration, n uint64) time.Time {
	tickNanos := timeutil.MustNanos(tickLen)
	if n > math.MaxInt64/tickNanos {
		panic(fmt.Errorf("%w: %d ticks of %v", timeutil.ErrOverflow, n, tickLen))
	}
	return t.Add(time.Duration(n * tickNanos))
}
