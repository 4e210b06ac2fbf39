package delay_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-ticktock/ticktock/delay"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestDelaySkipsFirstSleep(t *testing.T) {
	src := timeutil.NewManualSource(epoch)
	d := delay.New(time.Second, src)

	var steps []int
	for i := range d.Steps() {
		steps = append(steps, i)
		if i == 2 {
			break
		}
	}
	assert.Equal(t, []int{0, 1, 2}, steps)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, src.Sleeps())
}

func TestDelayed(t *testing.T) {
	src := timeutil.NewManualSource(epoch)
	d := delay.Delayed(250*time.Millisecond, src)
	d.Next()
	d.Next()
	assert.Equal(t, 500*time.Millisecond, src.Slept())
}

func TestRetryFirstSuccess(t *testing.T) {
	src := timeutil.NewManualSource(epoch)
	calls := 0
	v, err := delay.Retry(context.Background(), delay.New(time.Second, src), 5, func(attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", fmt.Errorf("attempt %d failed", attempt)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2*time.Second, src.Slept())
}

func TestRetryAllFail(t *testing.T) {
	src := timeutil.NewManualSource(epoch)
	last := errors.New("last")
	_, err := delay.Retry(context.Background(), delay.New(time.Second, src), 3, func(attempt int) (int, error) {
		if attempt == 2 {
			return 0, last
		}
		return 0, errors.New("early")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, last)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 3)
	assert.Same(t, last, merr.Errors[2])
	// no sleep after the final attempt
	assert.Equal(t, 2*time.Second, src.Slept())
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := timeutil.NewManualSource(epoch)
	_, err := delay.Retry(ctx, delay.New(time.Second, src), 10, func(int) (int, error) {
		cancel()
		return 0, errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryRejectsNoAttempts(t *testing.T) {
	_, err := delay.Retry(context.Background(), delay.New(0, timeutil.System()), 0, func(int) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, delay.ErrNoAttempts)
}
