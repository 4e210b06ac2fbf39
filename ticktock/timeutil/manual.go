package timeutil

import (
	"sync"
	"time"
)

// ManualSource is a Source whose time only moves when told to. Sleep
// advances the clock by the requested duration instead of blocking, which
// makes the blocking components deterministic under test.
type ManualSource struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewManualSource creates a ManualSource reading start.
func NewManualSource(start time.Time) *ManualSource {
	return &ManualSource{now: start}
}

func (m *ManualSource) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep records d and advances the clock by it. Non-positive durations are
// recorded but do not move time.
func (m *ManualSource) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	if d > 0 {
		m.now = m.now.Add(d)
	}
}

// Advance moves the clock forward by d.
func (m *ManualSource) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Sleeps returns every duration passed to Sleep so far.
func (m *ManualSource) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}

// Slept is the sum of all positive sleeps.
func (m *ManualSource) Slept() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, d := range m.sleeps {
		if d > 0 {
			total += d
		}
	}
	return total
}
