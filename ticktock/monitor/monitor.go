// Package monitor is a terminal dashboard that runs a frame loop on a
// clock.Clock and shows how well the loop keeps time.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-ticktock/ticktock/clock"
	"github.com/valerio/go-ticktock/ticktock/jitter"
	"github.com/valerio/go-ticktock/ticktock/metrics"
	"github.com/valerio/go-ticktock/ticktock/timer"
	"github.com/valerio/go-ticktock/ticktock/timeutil"
	"github.com/valerio/go-ticktock/ticktock/timing"
)

const (
	statsRefresh = 250 * time.Millisecond
	logCapacity  = 100
	headerHeight = 9
)

// Config holds configuration for the monitor.
type Config struct {
	Clock     *clock.Clock
	MaxTicks  uint64        // stop after this many ticks, 0 runs until quit
	Heartbeat time.Duration // interval of the heartbeat log line
	Metrics   *metrics.Metrics
	Recorder  *jitter.Recorder
}

// Monitor renders tick statistics with tcell.
type Monitor struct {
	screen tcell.Screen
	config Config
	source timeutil.Source

	logs     *LogBuffer
	level    *slog.LevelVar
	previous *slog.Logger

	fps       *timing.FrameCounter
	heartbeat *timer.Applied[int, int]
	stats     *timer.Timer

	running  bool
	frames   uint64
	tick     uint64
	at       time.Time
	dropped  uint64
	lateness time.Duration
	fpsText  string
}

func New(screen tcell.Screen, config Config) (*Monitor, error) {
	if config.Clock == nil {
		return nil, errors.New("monitor: no clock configured")
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = time.Second
	}

	src := config.Clock.Source()
	start := config.Clock.Start()

	heartbeat, err := timer.Apply(func(_ time.Duration, n *int) int {
		*n++
		return *n
	}, 0).Every(config.Heartbeat).Start(start)
	if err != nil {
		return nil, fmt.Errorf("monitor: heartbeat timer: %w", err)
	}
	stats, err := timer.New(statsRefresh, start)
	if err != nil {
		return nil, fmt.Errorf("monitor: stats timer: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	return &Monitor{
		screen:    screen,
		config:    config,
		source:    src,
		logs:      NewLogBuffer(logCapacity),
		level:     level,
		fps:       timing.NewFrameCounter(src),
		heartbeat: heartbeat,
		stats:     stats,
		fpsText:   "-",
	}, nil
}

// Init prepares the screen and routes the default logger into the
// on-screen log panel until Cleanup.
func (m *Monitor) Init() error {
	if err := m.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	m.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	m.screen.Clear()

	m.previous = slog.Default()
	slog.SetDefault(slog.New(NewBufferHandler(m.logs, m.level)))
	slog.Info("Monitor started", "tick", m.config.Clock.TickLength())

	m.running = true
	return nil
}

// Run drives the frame loop until the user quits or MaxTicks is reached.
func (m *Monitor) Run() error {
	if !m.running {
		return errors.New("monitor: Run called before Init")
	}
	for tick, at := range m.config.Clock.Ticks() {
		m.Update(tick, at)
		if !m.running {
			break
		}
		if m.config.MaxTicks > 0 && m.frames >= m.config.MaxTicks {
			slog.Info("Tick limit reached", "ticks", m.frames)
			break
		}
	}
	return nil
}

// Update processes one frame: input, timers, statistics and drawing.
func (m *Monitor) Update(tick uint64, at time.Time) {
	for m.screen.HasPendingEvent() {
		switch ev := m.screen.PollEvent().(type) {
		case *tcell.EventKey:
			m.processKeyEvent(ev)
		case *tcell.EventResize:
			m.screen.Sync()
		}
	}

	if tick > m.tick+1 {
		missed := tick - m.tick - 1
		m.dropped += missed
		if m.config.Metrics != nil {
			m.config.Metrics.ObserveDropped(missed)
		}
	}
	m.frames++
	m.tick, m.at = tick, at

	now := m.source.Now()
	m.lateness = timeutil.Sub(now, at)
	if m.config.Recorder != nil {
		m.config.Recorder.Record(at, now)
	}
	if m.config.Metrics != nil {
		m.config.Metrics.ObserveTick(m.lateness)
	}

	m.fps.NextFrame()
	if m.stats.Handle(at) {
		m.fpsText = m.fps.String()
	}
	if n, ok := m.heartbeat.Update(at); ok {
		slog.Info("Heartbeat", "count", n, "tick", tick, "fps", m.fpsText)
		if m.config.Metrics != nil {
			m.config.Metrics.ObserveTimerFire("heartbeat")
		}
	}

	m.render()
	m.screen.Show()
}

// Cleanup restores the terminal and the previous default logger.
func (m *Monitor) Cleanup() error {
	if m.previous != nil {
		slog.SetDefault(m.previous)
		m.previous = nil
	}
	m.screen.Fini()
	return nil
}

func (m *Monitor) Dropped() uint64 {
	return m.dropped
}

func (m *Monitor) Frames() uint64 {
	return m.frames
}

func (m *Monitor) Logs() *LogBuffer {
	return m.logs
}

func (m *Monitor) processKeyEvent(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		m.running = false
		return
	case tcell.KeyRune:
	default:
		return
	}

	switch ev.Rune() {
	case 'q':
		m.running = false
	case '+':
		m.changeLogLevel(-4)
	case '-':
		m.changeLogLevel(4)
	}
}

// changeLogLevel moves the log level by delta, clamped to debug..error.
func (m *Monitor) changeLogLevel(delta int) {
	next := m.level.Level() + slog.Level(delta)
	if next < slog.LevelDebug || next > slog.LevelError {
		return
	}
	m.level.Set(next)
	slog.Warn("Log level changed", "level", next)
}

func (m *Monitor) render() {
	m.screen.Clear()
	width, height := m.screen.Size()

	title := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	body := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	logStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)

	lines := []string{
		fmt.Sprintf("tick:      %d", m.tick),
		fmt.Sprintf("elapsed:   %v", m.at.Sub(m.config.Clock.Start()).Truncate(time.Millisecond)),
		fmt.Sprintf("period:    %v", m.config.Clock.TickLength()),
		fmt.Sprintf("fps:       %s", m.fpsText),
		fmt.Sprintf("dropped:   %d", m.dropped),
		fmt.Sprintf("lateness:  %v", m.lateness),
		fmt.Sprintf("heartbeat: %d", m.heartbeat.Value()),
	}

	m.drawText(0, 0, width, title, "ticktock monitor (q quit, +/- log level)")
	for i, line := range lines {
		m.drawText(1, i+1, width, body, line)
	}

	logsY := headerHeight
	if logsY >= height {
		return
	}
	for i, entry := range m.logs.Recent(height - logsY) {
		m.drawText(1, logsY+i, width, logStyle, FormatLogEntry(entry))
	}
}

func (m *Monitor) drawText(x, y, width int, style tcell.Style, text string) {
	for _, ch := range text {
		if x >= width {
			return
		}
		m.screen.SetContent(x, y, ch, nil, style)
		x++
	}
}
