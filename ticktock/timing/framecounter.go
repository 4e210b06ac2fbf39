package timing

import (
	"fmt"
	"time"

	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

// FrameCounter measures frames per second over fixed slices of time.
// Print it with %v to get "12.34 FPS".
type FrameCounter struct {
	source     timeutil.Source
	sliceStart time.Time
	slice      time.Duration
	frames     uint32
	fps        float64
}

// NewFrameCounter creates a counter reporting once per second.
func NewFrameCounter(src timeutil.Source) *FrameCounter {
	return NewFrameCounterWithSlice(src, time.Second)
}

// NewFrameCounterWithSlice creates a counter reporting once per slice.
// Non-positive slices fall back to one second.
func NewFrameCounterWithSlice(src timeutil.Source, slice time.Duration) *FrameCounter {
	if slice <= 0 {
		slice = time.Second
	}
	return &FrameCounter{
		source:     src,
		sliceStart: src.Now(),
		slice:      slice,
	}
}

// NextFrame counts one frame. It returns true when a measuring slice has
// just ended, which is a good moment to print the counter.
func (f *FrameCounter) NextFrame() bool {
	now := f.source.Now()
	completed := false

	elapsed := timeutil.Sub(now, f.sliceStart)
	if slices := elapsed / f.slice; slices > 0 {
		f.fps = float64(f.frames) / timeutil.Seconds(elapsed)
		f.frames = 0
		f.sliceStart = f.sliceStart.Add(slices * f.slice)
		completed = true
	}

	f.frames++
	return completed
}

// FPS is the rate measured over the last completed slice.
func (f *FrameCounter) FPS() float64 {
	return f.fps
}

func (f *FrameCounter) String() string {
	return fmt.Sprintf("%.2f FPS", f.fps)
}
