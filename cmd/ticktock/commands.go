package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli"

	"github.com/valerio/go-ticktock/ticktock/clock"
	"github.com/valerio/go-ticktock/ticktock/delay"
	"github.com/valerio/go-ticktock/ticktock/jitter"
	"github.com/valerio/go-ticktock/ticktock/metrics"
	"github.com/valerio/go-ticktock/ticktock/monitor"
	"github.com/valerio/go-ticktock/ticktock/throttle"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
	"github.com/valerio/go-ticktock/ticktock/timing"
)

var clockCommand = cli.Command{
	Name:  "clock",
	Usage: "Run a headless frame loop on a fixed-tick clock",
	Flags: append([]cli.Flag{
		cli.Uint64Flag{
			Name:  "ticks",
			Usage: "Number of ticks to run (required)",
		},
		cli.DurationFlag{
			Name:  "work",
			Usage: "Simulated work per frame, to observe dropped ticks",
		},
		cli.StringFlag{
			Name:  "limiter",
			Usage: "Frame pacing: clock, ticker or none",
			Value: "clock",
		},
		cli.BoolFlag{
			Name:  "relative",
			Usage: "Print tick times relative to the clock start instead of pacing with a limiter",
		},
	}, clockFlags...),
	Action: runClock,
}

func runClock(c *cli.Context) error {
	global, err := loadGlobalConfig(c)
	if err != nil {
		return err
	}
	global.setupLogging()
	met, err := global.setupMetrics()
	if err != nil {
		return err
	}

	cfg, err := loadClockConfig(c)
	if err != nil {
		return err
	}
	if cfg.Ticks == 0 {
		return errors.New("clock requires --ticks option with a positive value")
	}
	clk, err := cfg.newClock()
	if err != nil {
		return err
	}
	work := c.Duration("work")

	if c.Bool("relative") {
		var done uint64
		for n, rel := range clk.RelativeTicks() {
			fmt.Fprintf(c.App.Writer, "%d\t%v\n", n, rel)
			if done++; done >= cfg.Ticks {
				break
			}
		}
		return nil
	}

	limiter, stop, err := newLimiter(c.String("limiter"), clk)
	if err != nil {
		return err
	}
	defer stop()

	src := clk.Source()
	fps := timing.NewFrameCounter(src)
	slog.Info("Running frame loop", "ticks", cfg.Ticks, "period", clk.TickLength(), "limiter", c.String("limiter"), "work", work)

	// only the clock limiter knows which boundary a frame belongs to
	clocked, _ := limiter.(*timing.ClockLimiter)
	var frames, dropped uint64
	for frames < cfg.Ticks {
		limiter.WaitForNextFrame()
		frames++
		if clocked != nil {
			_, at := clocked.Tick()
			met.ObserveTick(timeutil.Sub(src.Now(), at))
			if d := clocked.Dropped(); d > dropped {
				met.ObserveDropped(d - dropped)
				dropped = d
			}
		}

		if fps.NextFrame() {
			slog.Info("Frame progress", "completed", frames, "total", cfg.Ticks, "fps", fps.String())
		}
		if work > 0 {
			src.Sleep(work)
		}
	}

	slog.Info("Frame loop completed", "frames", frames, "dropped", dropped)
	return nil
}

var throttleCommand = cli.Command{
	Name:  "throttle",
	Usage: "Copy input to output at a bounded byte rate",
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name:  "rate",
			Usage: "Maximum bytes per second (required)",
		},
		cli.StringFlag{
			Name:  "in",
			Usage: "Input file (default: stdin)",
		},
		cli.StringFlag{
			Name:  "out",
			Usage: "Output file (default: stdout)",
		},
		cli.Int64Flag{
			Name:  "bytes",
			Usage: "Stop after this many bytes (0 = until EOF)",
		},
		cli.IntFlag{
			Name:  "buffer",
			Usage: "Copy buffer size in bytes",
			Value: 32 * 1024,
		},
		cli.IntFlag{
			Name:  "open-retries",
			Usage: "Attempts at opening the input before giving up",
			Value: 1,
		},
		cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Delay between attempts at opening the input",
			Value: time.Second,
		},
	},
	Action: runThrottle,
}

func runThrottle(c *cli.Context) error {
	global, err := loadGlobalConfig(c)
	if err != nil {
		return err
	}
	global.setupLogging()
	met, err := global.setupMetrics()
	if err != nil {
		return err
	}

	rate := c.Uint64("rate")
	if rate == 0 {
		return errors.New("throttle requires --rate option with a positive value")
	}
	if c.Int("buffer") <= 0 {
		return errors.New("--buffer must be positive")
	}

	in, err := openInput(c.String("in"), c.Int("open-retries"), c.Duration("retry-delay"))
	if err != nil {
		return err
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	start := time.Now()
	n, err := throttledCopy(out, in, rate, c.Int64("bytes"), c.Int("buffer"), throttle.WithObserver(met))
	if err != nil {
		return fmt.Errorf("copy failed after %d bytes: %w", n, err)
	}
	elapsed := time.Since(start)
	slog.Info("Throttled copy completed",
		"bytes", n,
		"elapsed", elapsed,
		"bytes_per_second", float64(n)/timeutil.Seconds(elapsed))
	return nil
}

// throttledCopy copies at most limit bytes (all of src if limit is 0) from
// src to dst at rate bytes per second, reading bufSize bytes at a time.
func throttledCopy(dst io.Writer, src io.Reader, rate uint64, limit int64, bufSize int, opts ...throttle.Option) (int64, error) {
	if limit > 0 {
		src = io.LimitReader(src, limit)
	}
	throttled, err := throttle.NewReader(src, rate, opts...)
	if err != nil {
		return 0, err
	}
	// hide ReadFrom so the copy goes through buf instead of the
	// destination's own buffer
	return io.CopyBuffer(struct{ io.Writer }{dst}, throttled, make([]byte, bufSize))
}

// openInput opens path, retrying with a fixed delay. An empty path is stdin.
func openInput(path string, attempts int, wait time.Duration) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return delay.Retry(context.Background(), delay.New(wait, timeutil.System()), attempts, func(int) (io.ReadCloser, error) {
		return os.Open(path)
	})
}

var jitterCommand = cli.Command{
	Name:  "jitter",
	Usage: "Measure how late ticks are observed and plot the distribution",
	Flags: append([]cli.Flag{
		cli.Uint64Flag{
			Name:  "ticks",
			Usage: "Number of ticks to sample",
			Value: 1000,
		},
		cli.StringFlag{
			Name:  "plot",
			Usage: "Write a histogram to this file (.png, .svg, .pdf)",
		},
		cli.IntFlag{
			Name:  "bins",
			Usage: "Histogram bins",
			Value: 50,
		},
	}, clockFlags...),
	Action: runJitter,
}

func runJitter(c *cli.Context) error {
	global, err := loadGlobalConfig(c)
	if err != nil {
		return err
	}
	global.setupLogging()
	met, err := global.setupMetrics()
	if err != nil {
		return err
	}

	cfg, err := loadClockConfig(c)
	if err != nil {
		return err
	}
	if cfg.Ticks == 0 {
		return errors.New("jitter requires --ticks option with a positive value")
	}
	clk, err := cfg.newClock()
	if err != nil {
		return err
	}

	rec := sampleJitter(clk, cfg.Ticks, met)

	stats, err := rec.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, stats)

	if path := c.String("plot"); path != "" {
		title := fmt.Sprintf("Tick lateness, %v period", clk.TickLength())
		if err := rec.SavePlot(path, title, c.Int("bins")); err != nil {
			return fmt.Errorf("failed to save plot: %w", err)
		}
		slog.Info("Saved jitter plot", "path", path)
	}
	return nil
}

// sampleJitter records how late each of the next n ticks of clk is
// observed, reading time from the clock's own source.
func sampleJitter(clk *clock.Clock, n uint64, met *metrics.Metrics) *jitter.Recorder {
	rec := jitter.NewRecorder(int(min(n, 1<<20)))
	src := clk.Source()
	for _, at := range clk.Ticks() {
		met.ObserveTick(rec.Record(at, src.Now()))
		if uint64(rec.Len()) >= n {
			break
		}
	}
	return rec
}

var monitorCommand = cli.Command{
	Name:  "monitor",
	Usage: "Show a live terminal dashboard of a running clock",
	Flags: append([]cli.Flag{
		cli.Uint64Flag{
			Name:  "ticks",
			Usage: "Stop after this many ticks (0 = until q is pressed)",
		},
		cli.DurationFlag{
			Name:  "heartbeat",
			Usage: "Interval of the heartbeat log line",
			Value: time.Second,
		},
	}, clockFlags...),
	Action: runMonitor,
}

func runMonitor(c *cli.Context) error {
	global, err := loadGlobalConfig(c)
	if err != nil {
		return err
	}
	met, err := global.setupMetrics()
	if err != nil {
		return err
	}

	cfg, err := loadClockConfig(c)
	if err != nil {
		return err
	}
	clk, err := cfg.newClock()
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	mon, err := monitor.New(screen, monitor.Config{
		Clock:     clk,
		MaxTicks:  cfg.Ticks,
		Heartbeat: c.Duration("heartbeat"),
		Metrics:   met,
	})
	if err != nil {
		return err
	}
	if err := mon.Init(); err != nil {
		return err
	}
	defer mon.Cleanup()

	return mon.Run()
}
