package timeutil_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

func TestNanosRoundTrip(t *testing.T) {
	durations := []time.Duration{
		0,
		1,
		999_999_999,
		time.Second,
		50 * time.Millisecond,
		123*time.Hour + 456*time.Nanosecond,
		time.Duration(math.MaxInt64),
	}

	for _, d := range durations {
		n, err := timeutil.ToNanos(d)
		require.NoError(t, err)
		back, err := timeutil.FromNanos(n)
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
}

func TestToNanosRejectsNegative(t *testing.T) {
	_, err := timeutil.ToNanos(-time.Nanosecond)
	assert.ErrorIs(t, err, timeutil.ErrOverflow)

	assert.Panics(t, func() { timeutil.MustNanos(-time.Second) })
}

func TestFromNanosOutOfRange(t *testing.T) {
	_, err := timeutil.FromNanos(math.MaxUint64)
	assert.ErrorIs(t, err, timeutil.ErrOverflow)

	assert.Equal(t, time.Duration(math.MaxInt64), timeutil.SaturatingFromNanos(math.MaxUint64))
	assert.Equal(t, 5*time.Second, timeutil.SaturatingFromNanos(5_000_000_000))
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0.0, timeutil.Seconds(0))
	assert.Equal(t, 1.5, timeutil.Seconds(1500*time.Millisecond))
	assert.InDelta(t, 0.016, timeutil.Seconds(16*time.Millisecond), 1e-12)
}

func TestFromSeconds(t *testing.T) {
	d, err := timeutil.FromSeconds(1.5)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = timeutil.FromSeconds(0)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	d, err = timeutil.FromSeconds(1.0 / 60.0)
	require.NoError(t, err)
	assert.InDelta(t, float64(16_666_666), float64(d), 1)

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := timeutil.FromSeconds(bad)
		assert.ErrorIs(t, err, timeutil.ErrInvalidSeconds, "value %v", bad)
	}

	_, err = timeutil.FromSeconds(1e12)
	assert.ErrorIs(t, err, timeutil.ErrOverflow)
}

func TestSubSaturates(t *testing.T) {
	t0 := time.Unix(1000, 0)
	assert.Equal(t, time.Second, timeutil.Sub(t0.Add(time.Second), t0))
	assert.Equal(t, time.Duration(0), timeutil.Sub(t0, t0.Add(time.Second)))
}

func TestSystemSource(t *testing.T) {
	src := timeutil.System()
	a := src.Now()
	src.Sleep(time.Millisecond)
	b := src.Now()
	assert.True(t, b.After(a))
}

func TestManualSource(t *testing.T) {
	start := time.Unix(1000, 0)
	src := timeutil.NewManualSource(start)
	assert.Equal(t, start, src.Now())

	src.Sleep(30 * time.Millisecond)
	src.Sleep(0)
	src.Sleep(-time.Second)
	src.Advance(time.Second)

	assert.Equal(t, start.Add(1030*time.Millisecond), src.Now())
	assert.Equal(t, []time.Duration{30 * time.Millisecond, 0, -time.Second}, src.Sleeps())
	assert.Equal(t, 30*time.Millisecond, src.Slept())
}
