package timer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

// Policy decides what happens to tick boundaries that passed between two
// updates.
type Policy int

const (
	// Skip coalesces every missed boundary into a single call.
	Skip Policy = iota
	// CatchUp calls the update function once per missed boundary. Use it
	// when every interval matters, e.g. fixed physics steps.
	CatchUp
)

func (p Policy) String() string {
	switch p {
	case Skip:
		return "skip"
	case CatchUp:
		return "catch-up"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Updater mutates a timer's value each time the timer fires. elapsed is the
// time since the previous scheduled firing.
type Updater[V, R any] interface {
	Invoke(elapsed time.Duration, value *V) R
}

// Func adapts a plain function to Updater.
type Func[V, R any] func(elapsed time.Duration, value *V) R

func (f Func[V, R]) Invoke(elapsed time.Duration, value *V) R {
	return f(elapsed, value)
}

// Builder collects the settings of an Applied timer. Obtain one from Apply.
type Builder[V, R any] struct {
	updater  Updater[V, R]
	initial  V
	interval time.Duration
	set      bool
	repeat   bool
	policy   Policy
}

// Apply starts building a timer that periodically runs fn against a value
// initialised to initial.
//
//	heartbeat, err := timer.Apply(func(_ time.Duration, n *int) int {
//		*n++
//		return *n
//	}, 0).Every(500 * time.Millisecond).Start(time.Now())
func Apply[V, R any](fn func(elapsed time.Duration, value *V) R, initial V) *Builder[V, R] {
	return ApplyUpdater[V, R](Func[V, R](fn), initial)
}

// ApplyUpdater is Apply for an explicit Updater implementation.
func ApplyUpdater[V, R any](u Updater[V, R], initial V) *Builder[V, R] {
	return &Builder[V, R]{updater: u, initial: initial, repeat: true}
}

// Every makes the timer fire repeatedly, once per interval. Time spent in
// the update function is not accounted for.
func (b *Builder[V, R]) Every(interval time.Duration) *Builder[V, R] {
	b.interval, b.set, b.repeat = interval, true, true
	return b
}

// Once makes the timer fire a single time after delay.
func (b *Builder[V, R]) Once(delay time.Duration) *Builder[V, R] {
	b.interval, b.set, b.repeat = delay, true, false
	return b
}

// CatchUp switches the timer to the CatchUp policy.
func (b *Builder[V, R]) CatchUp() *Builder[V, R] {
	b.policy = CatchUp
	return b
}

// Skip switches the timer back to the default Skip policy.
func (b *Builder[V, R]) Skip() *Builder[V, R] {
	b.policy = Skip
	return b
}

// Start records now as the timer's origin. The first firing is due one
// interval later.
func (b *Builder[V, R]) Start(now time.Time) (*Applied[V, R], error) {
	if !b.set {
		return nil, ErrNoInterval
	}
	if b.interval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, b.interval)
	}
	return &Applied[V, R]{
		updater:  b.updater,
		value:    b.initial,
		interval: b.interval,
		next:     advance(now, b.interval, 1),
		repeat:   b.repeat,
		policy:   b.policy,
	}, nil
}

// Applied is a timer that owns a value and updates it each time it fires.
type Applied[V, R any] struct {
	updater  Updater[V, R]
	value    V
	interval time.Duration
	next     time.Time
	repeat   bool
	done     bool
	policy   Policy
}

func (a *Applied[V, R]) Interval() time.Duration {
	return a.interval
}

func (a *Applied[V, R]) Policy() Policy {
	return a.policy
}

// Next is the instant the timer is next due.
func (a *Applied[V, R]) Next() time.Time {
	return a.next
}

// Done reports whether a one-shot timer has already fired.
func (a *Applied[V, R]) Done() bool {
	return a.done
}

// Value returns a copy of the stored value.
func (a *Applied[V, R]) Value() V {
	return a.value
}

// Ptr gives direct access to the stored value.
func (a *Applied[V, R]) Ptr() *V {
	return &a.value
}

// SetValue replaces the stored value.
func (a *Applied[V, R]) SetValue(v V) {
	a.value = v
}

// Update runs the update function if the timer is due at now and returns
// its result. The second return value is false when nothing ran.
//
// Under Skip the function runs exactly once, with elapsed covering every
// missed interval. Under CatchUp it runs once per missed boundary and the
// last result is returned; use UpdateAll to see all of them.
func (a *Applied[V, R]) Update(now time.Time) (R, bool) {
	var zero R
	if a.policy == CatchUp {
		results := a.UpdateAll(now)
		if len(results) == 0 {
			return zero, false
		}
		return results[len(results)-1], true
	}

	if a.done || now.Before(a.next) {
		return zero, false
	}

	late := timeutil.MustNanos(timeutil.Sub(now, a.next))
	intervalNanos := timeutil.MustNanos(a.interval)
	elapsed := timeutil.SaturatingFromNanos(late + intervalNanos)
	ticks := (late + intervalNanos) / intervalNanos
	if ticks > 1 {
		slog.Debug("Timer skipped ticks", "missed", ticks-1, "interval", a.interval)
	}

	a.next = advance(a.next, a.interval, ticks)
	if !a.repeat {
		a.done = true
	}
	return a.updater.Invoke(elapsed, &a.value), true
}

// UpdateAll runs the update function once for every boundary passed by now,
// regardless of policy, and returns the results in order.
func (a *Applied[V, R]) UpdateAll(now time.Time) []R {
	if a.policy == Skip {
		if r, ok := a.Update(now); ok {
			return []R{r}
		}
		return nil
	}

	var results []R
	for !a.done && !now.Before(a.next) {
		a.next = advance(a.next, a.interval, 1)
		if !a.repeat {
			a.done = true
		}
		results = append(results, a.updater.Invoke(a.interval, &a.value))
	}
	return results
}
