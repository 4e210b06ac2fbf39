// Package timing paces frame loops and measures how fast they actually run.
package timing

import (
	"fmt"
	"math"
	"time"

	"github.com/valerio/go-ticktock/ticktock/clock"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

// Limiter controls frame rate timing for a render or processing loop.
type Limiter interface {
	// WaitForNextFrame blocks until it's time for the next frame.
	// Returns immediately if timing is behind schedule.
	WaitForNextFrame()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless runs and
// benchmarks).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextFrame() {}
func (n *noOpLimiter) Reset()            {}

// FrameDuration returns the duration of a single frame at fps. Framerates
// whose frame would be shorter than a nanosecond are rejected.
func FrameDuration(fps float64) (time.Duration, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("%w: %v", clock.ErrInvalidFramerate, fps)
	}
	d, err := timeutil.FromSeconds(1 / fps)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %v", clock.ErrInvalidFramerate, fps)
	}
	return d, nil
}
