package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/valerio/go-ticktock/ticktock/clock"
	"github.com/valerio/go-ticktock/ticktock/metrics"
	"github.com/valerio/go-ticktock/ticktock/timing"
)

// globalConfig holds the options shared by every command.
type globalConfig struct {
	LogLevel    slog.Level
	LogFile     string
	MetricsAddr string
}

func loadGlobalConfig(c *cli.Context) (globalConfig, error) {
	var cfg globalConfig
	if err := cfg.LogLevel.UnmarshalText([]byte(c.GlobalString("log-level"))); err != nil {
		return cfg, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg.LogFile = c.GlobalString("log-file")
	cfg.MetricsAddr = c.GlobalString("metrics-addr")
	return cfg, nil
}

// logWriter returns where text logs go: a rotating file if configured,
// stderr otherwise.
func (g globalConfig) logWriter() io.Writer {
	if g.LogFile == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   g.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

// setupLogging installs the default text logger.
func (g globalConfig) setupLogging() {
	handler := slog.NewTextHandler(g.logWriter(), &slog.HandlerOptions{
		Level: g.LogLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// setupMetrics registers the collectors and, if an address is configured,
// serves them over HTTP in the background.
func (g globalConfig) setupMetrics() (*metrics.Metrics, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	if g.MetricsAddr == "" {
		return m, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: g.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "addr", g.MetricsAddr, "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", g.MetricsAddr)
	return m, nil
}

// clockConfig selects the tick length of a command's clock, either directly
// or as a framerate.
type clockConfig struct {
	Tick  time.Duration
	FPS   float64
	Ticks uint64
}

func loadClockConfig(c *cli.Context) (clockConfig, error) {
	cfg := clockConfig{
		Tick:  c.Duration("tick"),
		FPS:   c.Float64("fps"),
		Ticks: c.Uint64("ticks"),
	}
	if cfg.Tick > 0 && cfg.FPS > 0 {
		return cfg, errors.New("--tick and --fps are mutually exclusive")
	}
	if cfg.Tick <= 0 && cfg.FPS <= 0 {
		return cfg, errors.New("one of --tick or --fps is required")
	}
	return cfg, nil
}

// period is the tick length, converted from --fps when that was given.
func (c clockConfig) period() (time.Duration, error) {
	if c.FPS > 0 {
		return timing.FrameDuration(c.FPS)
	}
	return c.Tick, nil
}

func (c clockConfig) newClock() (*clock.Clock, error) {
	period, err := c.period()
	if err != nil {
		return nil, err
	}
	return clock.New(period)
}

// newLimiter builds the frame limiter selected by --limiter. The returned
// stop function releases the limiter's resources.
func newLimiter(kind string, clk *clock.Clock) (timing.Limiter, func(), error) {
	switch kind {
	case "", "clock":
		return timing.NewClockLimiter(clk), func() {}, nil
	case "ticker":
		l := timing.NewTickerLimiter(clk.TickLength())
		return l, l.Stop, nil
	case "none":
		return timing.NewNoOpLimiter(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("invalid --limiter %q: want clock, ticker or none", kind)
	}
}

var clockFlags = []cli.Flag{
	cli.DurationFlag{
		Name:  "tick",
		Usage: "Tick length (e.g. 16ms)",
	},
	cli.Float64Flag{
		Name:  "fps",
		Usage: "Ticks per second, alternative to --tick",
	},
}
