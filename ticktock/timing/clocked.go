package timing

import (
	"log/slog"
	"time"

	"github.com/valerio/go-ticktock/ticktock/clock"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

// ClockLimiter paces frames on the boundaries of a clock.Clock. Frames that
// run long don't shift the schedule: the next wait lands on the next boundary
// still ahead, and the boundaries in between are counted as dropped.
type ClockLimiter struct {
	clock   *clock.Clock
	source  timeutil.Source
	last    uint64
	at      time.Time
	dropped uint64
	frames  uint64
}

// NewClockLimiter creates a limiter that waits on the boundaries of clk.
func NewClockLimiter(clk *clock.Clock) *ClockLimiter {
	return &ClockLimiter{clock: clk, source: clk.Source(), at: clk.Start()}
}

// WaitForNextFrame waits for the next boundary of the clock. Boundaries
// passed since the previous frame, or since the start of the clock for the
// first frame, count as dropped.
func (c *ClockLimiter) WaitForNextFrame() {
	tick, at := c.clock.WaitForNextTick()
	if tick > c.last+1 {
		missed := tick - c.last - 1
		c.dropped += missed
		slog.Debug("Frame timing fell behind", "tick", tick, "missed", missed)
	}
	c.last, c.at = tick, at
	c.frames++
}

// Reset re-anchors the schedule at the current instant so a pause is not
// reported as a long run of dropped frames.
func (c *ClockLimiter) Reset() {
	clk, err := clock.New(c.clock.TickLength(), clock.WithStart(c.source.Now()), clock.WithSource(c.source))
	if err != nil {
		// the tick length was already validated by the original clock
		panic(err)
	}
	c.clock = clk
	c.last = 0
	c.at = clk.Start()
}

// Tick returns the index and instant of the last frame boundary waited for.
func (c *ClockLimiter) Tick() (uint64, time.Time) {
	return c.last, c.at
}

// Dropped is the number of frame boundaries skipped because frames ran long.
func (c *ClockLimiter) Dropped() uint64 {
	return c.dropped
}

// Frames is the number of frames waited for.
func (c *ClockLimiter) Frames() uint64 {
	return c.frames
}
