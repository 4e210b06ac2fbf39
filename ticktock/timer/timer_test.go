package timer_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-ticktock/ticktock/timer"
)

func TestNewRejectsInvalidTickLength(t *testing.T) {
	_, err := timer.New(0, time.Now())
	assert.ErrorIs(t, err, timer.ErrInvalidInterval)
}

func TestTimerSkipsMissedTicks(t *testing.T) {
	mock := clock.NewMock()
	t0 := mock.Now()
	tm, err := timer.New(50*time.Millisecond, t0)
	require.NoError(t, err)

	mock.Add(49 * time.Millisecond)
	assert.False(t, tm.HasFired(mock.Now()))
	assert.Equal(t, time.Millisecond, tm.Remaining(mock.Now()))
	assert.False(t, tm.Handle(mock.Now()))

	mock.Add(time.Millisecond)
	assert.True(t, tm.HasFired(mock.Now()))
	assert.Equal(t, uint32(0), tm.Reset(mock.Now()))
	assert.False(t, tm.Handle(mock.Now()), "already reset")

	mock.Set(t0.Add(10 * time.Second))
	assert.True(t, tm.Handle(mock.Now()))
	assert.False(t, tm.Handle(mock.Now()), "missed ticks are coalesced")
	assert.Equal(t, t0.Add(10050*time.Millisecond), tm.Next())
}

func TestTimerResetReportsSkipped(t *testing.T) {
	t0 := time.Unix(0, 0)
	tm, err := timer.New(10*time.Millisecond, t0)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), tm.Reset(t0.Add(55*time.Millisecond)))
	assert.Equal(t, t0.Add(60*time.Millisecond), tm.Next())
}

func TestTimerResetIsNoOpWhenArmed(t *testing.T) {
	t0 := time.Unix(0, 0)
	tm, err := timer.New(10*time.Millisecond, t0)
	require.NoError(t, err)

	before := tm.Next()
	assert.Equal(t, uint32(0), tm.Reset(t0.Add(5*time.Millisecond)))
	assert.False(t, tm.Handle(t0.Add(9*time.Millisecond)))
	assert.Equal(t, before, tm.Next())
}

func TestMultipleTimers(t *testing.T) {
	mock := clock.NewMock()
	t0 := mock.Now()
	a, err := timer.New(10*time.Millisecond, t0)
	require.NoError(t, err)
	b, err := timer.New(50*time.Millisecond, t0)
	require.NoError(t, err)

	mock.Add(15 * time.Millisecond)
	now := mock.Now()

	assert.Equal(t, time.Duration(0), a.Remaining(now))
	assert.Equal(t, 35*time.Millisecond, b.Remaining(now))

	a.Reset(now)
	b.Reset(now)

	assert.Equal(t, 5*time.Millisecond, a.Remaining(now))
	assert.Equal(t, 35*time.Millisecond, b.Remaining(now))
}

func TestRemainingBeforeStart(t *testing.T) {
	t0 := time.Unix(100, 0)
	tm, err := timer.New(time.Second, t0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, tm.Remaining(t0.Add(-time.Second)))
}
