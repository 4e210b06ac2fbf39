// Package clock implements a fixed-interval clock that ticks as precisely as
// the underlying sleep allows.
//
// A Clock holds nothing but a start instant and a tick length. Every tick
// boundary is computed from those two values, so a loop driven by a Clock
// does not drift even when individual iterations run long: a late iteration
// simply lands on the next boundary that is still in the future.
//
//	clk, _ := clock.New(time.Second / 60)
//	for tick, at := range clk.Ticks() {
//		render(tick, at)
//	}
package clock

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

var (
	ErrInvalidTickLength = errors.New("clock: tick length must be positive")
	ErrInvalidFramerate  = errors.New("clock: framerate must be positive and finite")
)

// Clock produces ticks at a fixed interval measured from its start instant.
// A Clock is immutable; it is safe to share between goroutines, although the
// waits themselves block whichever goroutine calls them.
type Clock struct {
	start   time.Time
	tickLen time.Duration
	source  timeutil.Source
}

type Option func(*Clock)

// WithStart sets the instant tick zero is anchored to. Defaults to the
// source's current time.
func WithStart(start time.Time) Option {
	return func(c *Clock) { c.start = start }
}

// WithSource replaces the monotonic time source used for reading and sleeping.
func WithSource(src timeutil.Source) Option {
	return func(c *Clock) { c.source = src }
}

// New creates a clock ticking every tickLen.
func New(tickLen time.Duration, opts ...Option) (*Clock, error) {
	if tickLen <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTickLength, tickLen)
	}
	c := &Clock{tickLen: tickLen, source: timeutil.System()}
	for _, opt := range opts {
		opt(c)
	}
	if c.start.IsZero() {
		c.start = c.source.Now()
	}
	return c, nil
}

// Framerate creates a clock ticking fps times per second.
func Framerate(fps float64, opts ...Option) (*Clock, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFramerate, fps)
	}
	tickLen, err := timeutil.FromSeconds(1 / fps)
	if err != nil {
		return nil, fmt.Errorf("clock: framerate %v: %w", fps, err)
	}
	return New(tickLen, opts...)
}

// Synced returns a clock with a different tick length sharing this clock's
// start instant and source, so both stay phase aligned.
func (c *Clock) Synced(tickLen time.Duration) (*Clock, error) {
	return New(tickLen, WithStart(c.start), WithSource(c.source))
}

// Start is the instant of tick zero.
func (c *Clock) Start() time.Time {
	return c.start
}

// TickLength is the interval between two ticks.
func (c *Clock) TickLength() time.Duration {
	return c.tickLen
}

// Source is the time source the clock reads and sleeps on.
func (c *Clock) Source() timeutil.Source {
	return c.source
}

// TickAt returns the index of the tick preceding t. Instants before the
// start of the clock count as tick zero.
func (c *Clock) TickAt(t time.Time) uint64 {
	elapsed := timeutil.MustNanos(timeutil.Sub(t, c.start))
	return elapsed / timeutil.MustNanos(c.tickLen)
}

// TickInstant returns the instant tick n is due.
//
// It panics with timeutil.ErrOverflow if the offset does not fit a
// time.Duration, which for a 1ns tick happens after ~292 years. That is the
// hard operating limit of a Clock.
func (c *Clock) TickInstant(n uint64) time.Time {
	tickNanos := timeutil.MustNanos(c.tickLen)
	if n > math.MaxInt64/tickNanos {
		panic(fmt.Errorf("%w: tick %d of %v", timeutil.ErrOverflow, n, c.tickLen))
	}
	return c.start.Add(time.Duration(n * tickNanos))
}

// WaitForNextTick blocks until the next tick boundary and returns its index
// and instant. If the boundary has already passed by the time the sleep is
// computed, it returns without sleeping.
func (c *Clock) WaitForNextTick() (uint64, time.Time) {
	now := c.source.Now()
	next := c.TickAt(now) + 1
	target := c.TickInstant(next)
	if wait := target.Sub(now); wait > 0 {
		c.source.Sleep(wait)
	}
	return next, target
}

// Ticks returns an infinite sequence of (tick index, tick instant), calling
// WaitForNextTick for every element. Break out of the range loop to stop.
func (c *Clock) Ticks() iter.Seq2[uint64, time.Time] {
	return func(yield func(uint64, time.Time) bool) {
		for {
			if !yield(c.WaitForNextTick()) {
				return
			}
		}
	}
}

// RelativeTicks is Ticks with each instant expressed as the duration since
// the clock started.
func (c *Clock) RelativeTicks() iter.Seq2[uint64, time.Duration] {
	return func(yield func(uint64, time.Duration) bool) {
		for {
			n, at := c.WaitForNextTick()
			if !yield(n, at.Sub(c.start)) {
				return
			}
		}
	}
}
