package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-ticktock/ticktock/clock"
	"github.com/valerio/go-ticktock/ticktock/metrics"
	"github.com/valerio/go-ticktock/ticktock/throttle"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
	"github.com/valerio/go-ticktock/ticktock/timing"
)

// sizeReader serves zeros forever and records how much each read asked for.
type sizeReader struct {
	sizes []int
}

func (r *sizeReader) Read(p []byte) (int, error) {
	r.sizes = append(r.sizes, len(p))
	clear(p)
	return len(p), nil
}

func TestThrottledCopyUsesBufferSize(t *testing.T) {
	out, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer out.Close()

	src := timeutil.NewManualSource(time.Unix(1_700_000_000, 0))
	in := &sizeReader{}

	n, err := throttledCopy(out, in, 1024, 2048, 512, throttle.WithSource(src))
	require.NoError(t, err)
	assert.Equal(t, int64(2048), n)
	assert.Equal(t, []int{512, 512, 512, 512}, in.sizes)
	assert.Equal(t, 2*time.Second, src.Slept())

	info, err := out.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(2048), info.Size())
}

func TestThrottledCopyZeroRate(t *testing.T) {
	_, err := throttledCopy(&sizeBuffer{}, &sizeReader{}, 0, 10, 10)
	assert.ErrorIs(t, err, throttle.ErrZeroRate)
}

type sizeBuffer struct{ n int }

func (b *sizeBuffer) Write(p []byte) (int, error) {
	b.n += len(p)
	return len(p), nil
}

func TestNewLimiter(t *testing.T) {
	clk, err := clock.New(time.Millisecond)
	require.NoError(t, err)

	tests := []struct {
		kind    string
		check   func(t *testing.T, l timing.Limiter)
		wantErr bool
	}{
		{
			kind: "clock",
			check: func(t *testing.T, l timing.Limiter) {
				assert.IsType(t, &timing.ClockLimiter{}, l)
			},
		},
		{
			kind: "ticker",
			check: func(t *testing.T, l timing.Limiter) {
				assert.IsType(t, &timing.TickerLimiter{}, l)
			},
		},
		{
			kind: "none",
			check: func(t *testing.T, l timing.Limiter) {
				start := time.Now()
				for i := 0; i < 1000; i++ {
					l.WaitForNextFrame()
				}
				assert.Less(t, time.Since(start), time.Second)
			},
		},
		{
			kind:    "adaptive",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.kind, func(t *testing.T) {
			l, stop, err := newLimiter(tc.kind, clk)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer stop()
			tc.check(t, l)
		})
	}
}

func TestSampleJitterReadsClockSource(t *testing.T) {
	src := timeutil.NewManualSource(time.Unix(1_700_000_000, 0))
	clk, err := clock.New(10*time.Millisecond, clock.WithSource(src))
	require.NoError(t, err)
	met, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	rec := sampleJitter(clk, 20, met)
	assert.Equal(t, 20, rec.Len())

	stats, err := rec.Stats()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), stats.Max)
}
