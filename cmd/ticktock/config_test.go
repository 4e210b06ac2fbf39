package main

import (
	"flag"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"github.com/valerio/go-ticktock/ticktock/clock"
)

func newClockContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.Duration("tick", 0, "")
	set.Float64("fps", 0, "")
	set.Uint64("ticks", 0, "")
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestLoadClockConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    clockConfig
		wantErr bool
	}{
		{
			name: "tick",
			args: []string{"--tick", "16ms", "--ticks", "10"},
			want: clockConfig{Tick: 16 * time.Millisecond, Ticks: 10},
		},
		{
			name: "fps",
			args: []string{"--fps", "60"},
			want: clockConfig{FPS: 60},
		},
		{
			name:    "both",
			args:    []string{"--tick", "16ms", "--fps", "60"},
			wantErr: true,
		},
		{
			name:    "neither",
			args:    []string{"--ticks", "5"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := loadClockConfig(newClockContext(t, tc.args...))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg)
		})
	}
}

func TestNewClockFromConfig(t *testing.T) {
	clk, err := clockConfig{FPS: 60}.newClock()
	require.NoError(t, err)
	assert.Equal(t, 16_666_666*time.Nanosecond, clk.TickLength())

	clk, err = clockConfig{Tick: 5 * time.Millisecond}.newClock()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, clk.TickLength())

	_, err = clockConfig{FPS: math.Inf(1)}.newClock()
	assert.ErrorIs(t, err, clock.ErrInvalidFramerate)
}

func TestLoadGlobalConfig(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", "info", "")
	set.String("log-file", "", "")
	set.String("metrics-addr", "", "")
	require.NoError(t, set.Parse([]string{"--log-level", "debug", "--log-file", "/tmp/ticktock.log"}))

	cfg, err := loadGlobalConfig(cli.NewContext(cli.NewApp(), set, nil))
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/ticktock.log", cfg.LogFile)
	assert.Empty(t, cfg.MetricsAddr)

	require.NoError(t, set.Set("log-level", "loud"))
	_, err = loadGlobalConfig(cli.NewContext(cli.NewApp(), set, nil))
	assert.Error(t, err)
}

func TestSetupMetricsWithoutAddress(t *testing.T) {
	m, err := globalConfig{}.setupMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m)
}
