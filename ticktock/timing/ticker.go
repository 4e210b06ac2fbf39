package timing

import "time"

// TickerLimiter uses time.Ticker for simple, consistent frame timing.
// Less accurate than ClockLimiter: the runtime drops ticks for slow
// receivers and it cannot report how many frames were missed.
type TickerLimiter struct {
	ticker *time.Ticker
	period time.Duration
}

// NewTickerLimiter creates a limiter firing every period. period must be
// positive.
func NewTickerLimiter(period time.Duration) *TickerLimiter {
	return &TickerLimiter{
		ticker: time.NewTicker(period),
		period: period,
	}
}

func (t *TickerLimiter) WaitForNextFrame() {
	<-t.ticker.C
}

func (t *TickerLimiter) Reset() {
	t.ticker.Reset(t.period)
}

func (t *TickerLimiter) Stop() {
	t.ticker.Stop()
}
