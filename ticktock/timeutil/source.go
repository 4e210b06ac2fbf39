package timeutil

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Source is the only way the blocking components observe and spend time.
//
// Now must read a monotonic clock; Sleep pauses the calling goroutine for at
// least d and returns immediately for d <= 0.
type Source interface {
	Now() time.Time
	Sleep(d time.Duration)
}

var system Source = clock.New()

// System returns the process monotonic clock.
func System() Source {
	return system
}
