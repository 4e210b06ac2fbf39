// Package timeutil holds the duration arithmetic shared by the clock, timer
// and throttle packages.
//
// Durations are carried around as unsigned nanosecond counts when doing
// interval math. Conversions into that form are range checked and fail
// instead of wrapping. Floating point second conversions are lossy: a float64
// has 53 bits of mantissa, so above roughly 104 days the sub-microsecond part
// of a duration starts to disappear, and above ~285 years whole nanoseconds
// can no longer be told apart from their neighbours at all.
package timeutil

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const NanosPerSecond = uint64(time.Second)

var (
	// ErrOverflow is returned when a value does not fit the target
	// representation. Callers should treat it as fatal.
	ErrOverflow = errors.New("timeutil: nanosecond overflow")

	// ErrInvalidSeconds is returned for negative, NaN or infinite seconds.
	ErrInvalidSeconds = errors.New("timeutil: invalid seconds value")
)

// ToNanos converts d into an unsigned nanosecond count.
// Negative durations are outside the unsigned range and fail with ErrOverflow.
func ToNanos(d time.Duration) (uint64, error) {
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %v", ErrOverflow, d)
	}
	return uint64(d), nil
}

// MustNanos is ToNanos for call sites where overflow cannot be recovered from.
func MustNanos(d time.Duration) uint64 {
	n, err := ToNanos(d)
	if err != nil {
		panic(err)
	}
	return n
}

// FromNanos converts n back into a duration. It is exact for every value a
// time.Duration can hold; anything above math.MaxInt64 fails.
func FromNanos(n uint64) (time.Duration, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d ns exceeds time.Duration", ErrOverflow, n)
	}
	return time.Duration(n), nil
}

// SaturatingFromNanos is FromNanos clamped to the largest duration.
func SaturatingFromNanos(n uint64) time.Duration {
	if n > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(n)
}

// Seconds converts d to floating point seconds. Never fails, see the package
// doc for precision.
func Seconds(d time.Duration) float64 {
	secs := d / time.Second
	nsec := d % time.Second
	return float64(secs) + float64(nsec)/float64(NanosPerSecond)
}

// FromSeconds converts floating point seconds to a duration, truncating
// anything below a nanosecond.
func FromSeconds(f float64) (time.Duration, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSeconds, f)
	}
	whole, frac := math.Modf(f)
	if whole >= float64(math.MaxInt64/int64(time.Second)) {
		return 0, fmt.Errorf("%w: %v seconds", ErrOverflow, f)
	}
	return time.Duration(whole)*time.Second + time.Duration(frac*float64(NanosPerSecond)), nil
}

// Sub returns a-b, saturating at zero when b is after a.
//
// Monotonic sources are not guaranteed to be monotonic across every platform
// boundary, so every elapsed-time computation in this module goes through
// here instead of wrapping or going negative.
func Sub(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return 0
	}
	return d
}
