// Package delay provides a fixed, non-adaptive delay between iterations and
// a retry helper built on it.
package delay

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

var ErrNoAttempts = errors.New("delay: attempts must be positive")

// Delay sleeps a fixed duration between steps. Unlike clock.Clock it does not
// account for the time spent between steps.
type Delay struct {
	delay  time.Duration
	first  bool
	source timeutil.Source
}

// New creates a delay whose first step returns immediately.
func New(d time.Duration, src timeutil.Source) *Delay {
	return &Delay{delay: d, first: true, source: src}
}

// Delayed creates a delay that also sleeps before the first step.
func Delayed(d time.Duration, src timeutil.Source) *Delay {
	return &Delay{delay: d, source: src}
}

// Next blocks until the next step is due.
func (d *Delay) Next() {
	if d.first {
		d.first = false
		return
	}
	d.source.Sleep(d.delay)
}

// Steps is an infinite sequence of step numbers, starting at zero, that calls
// Next before yielding each one.
func (d *Delay) Steps() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; ; i++ {
			d.Next()
			if !yield(i) {
				return
			}
		}
	}
}

// Retry calls fn up to attempts times, waiting on d between calls, and
// returns the first successful result. If every attempt fails the error is a
// *multierror.Error holding each failure in order, the last one last.
// ctx is checked before every attempt; a cancelled context ends the retries
// with ctx.Err() appended to the failures.
func Retry[T any](ctx context.Context, d *Delay, attempts int, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		return zero, fmt.Errorf("%w: %d", ErrNoAttempts, attempts)
	}

	var result *multierror.Error
	for attempt := range d.Steps() {
		if err := ctx.Err(); err != nil {
			return zero, multierror.Append(result, err)
		}
		v, err := fn(attempt)
		if err == nil {
			return v, nil
		}
		result = multierror.Append(result, err)
		if attempt+1 >= attempts {
			break
		}
		slog.Debug("Retrying after failure", "attempt", attempt+1, "of", attempts, "error", err)
	}
	return zero, result.ErrorOrNil()
}
