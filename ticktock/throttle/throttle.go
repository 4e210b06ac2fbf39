// Package throttle simulates limited bandwidth by stretching reads and writes
// so that, on average, no more than a fixed number of bytes per second pass
// through.
//
// The delay is applied after a transfer completes, not before. A single large
// call can therefore transfer instantly; the next call pays for it. Reads and
// writes are counted separately against the same rate and start instant.
package throttle

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"math/bits"
	"time"

	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

var (
	ErrZeroRate  = errors.New("throttle: rate must be positive")
	ErrNotReader = errors.New("throttle: wrapped value is not an io.Reader")
	ErrNotWriter = errors.New("throttle: wrapped value is not an io.Writer")
)

// Direction tells Observers which counter a transfer was charged to.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Observer is notified after every successful transfer with the number of
// bytes moved and the delay that followed.
type Observer interface {
	ObserveTransfer(dir Direction, n int, delay time.Duration)
}

// longDelay is the delay above which a throttle stall is logged.
const longDelay = time.Second

// IO wraps a reader, writer or both and throttles it to a fixed byte rate.
// It is not safe for concurrent use.
type IO[T any] struct {
	inner        T
	rate         uint64
	start        time.Time
	totalRead    uint64
	totalWritten uint64

	source   timeutil.Source
	logger   *slog.Logger
	observer Observer
}

type Option func(*options)

type options struct {
	start    time.Time
	source   timeutil.Source
	logger   *slog.Logger
	observer Observer
}

// WithStart sets the instant the byte budget is measured from. A start in
// the future makes every transfer until then wait for the full budget.
func WithStart(start time.Time) Option {
	return func(o *options) { o.start = start }
}

// WithSource replaces the monotonic time source used for reading and sleeping.
func WithSource(src timeutil.Source) Option {
	return func(o *options) { o.source = src }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New wraps inner, limiting it to bytesPerSecond in each direction.
func New[T any](inner T, bytesPerSecond uint64, opts ...Option) (*IO[T], error) {
	if bytesPerSecond == 0 {
		return nil, ErrZeroRate
	}
	o := options{source: timeutil.System(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.start.IsZero() {
		o.start = o.source.Now()
	}
	return &IO[T]{
		inner:    inner,
		rate:     bytesPerSecond,
		start:    o.start,
		source:   o.source,
		logger:   o.logger,
		observer: o.observer,
	}, nil
}

// NewReader throttles reads from r.
func NewReader(r io.Reader, bytesPerSecond uint64, opts ...Option) (*IO[io.Reader], error) {
	return New(r, bytesPerSecond, opts...)
}

// NewWriter throttles writes to w.
func NewWriter(w io.Writer, bytesPerSecond uint64, opts ...Option) (*IO[io.Writer], error) {
	return New(w, bytesPerSecond, opts...)
}

// Inner returns the wrapped value. Once the caller goes back to using it
// directly, the throttling state is meaningless.
func (t *IO[T]) Inner() T {
	return t.inner
}

// Rate is the limit in bytes per second.
func (t *IO[T]) Rate() uint64 {
	return t.rate
}

// TotalRead is the number of bytes read since creation.
func (t *IO[T]) TotalRead() uint64 {
	return t.totalRead
}

// TotalWritten is the number of bytes written since creation.
func (t *IO[T]) TotalWritten() uint64 {
	return t.totalWritten
}

// Read reads from the wrapped reader and then sleeps for as long as needed
// to bring the average read rate back down to the limit. Errors from the
// inner reader are returned as is and never delayed; bytes read alongside an
// error still count against the budget.
func (t *IO[T]) Read(p []byte) (int, error) {
	r, ok := any(t.inner).(io.Reader)
	if !ok {
		return 0, ErrNotReader
	}
	n, err := r.Read(p)
	t.totalRead += uint64(n)
	if err != nil {
		return n, err
	}
	t.throttle(Read, n, t.totalRead)
	return n, nil
}

// Write is the write side counterpart of Read.
func (t *IO[T]) Write(p []byte) (int, error) {
	w, ok := any(t.inner).(io.Writer)
	if !ok {
		return 0, ErrNotWriter
	}
	n, err := w.Write(p)
	t.totalWritten += uint64(n)
	if err != nil {
		return n, err
	}
	t.throttle(Write, n, t.totalWritten)
	return n, nil
}

// Flush flushes the wrapped value if it supports flushing. It is never
// throttled.
func (t *IO[T]) Flush() error {
	if f, ok := any(t.inner).(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close closes the wrapped value if it is an io.Closer.
func (t *IO[T]) Close() error {
	if c, ok := any(t.inner).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *IO[T]) throttle(dir Direction, n int, total uint64) {
	elapsed := timeutil.Sub(t.source.Now(), t.start)
	delay := Delay(elapsed, t.rate, total)
	if delay > 0 {
		if delay >= longDelay {
			t.logger.Debug("Long throttle delay", "direction", dir, "delay", delay, "total", total, "rate", t.rate)
		}
		t.source.Sleep(delay)
	}
	if t.observer != nil {
		t.observer.ObserveTransfer(dir, n, delay)
	}
}

// Delay returns how long a stream limited to rate bytes per second that has
// moved total bytes after elapsed must still wait. The arithmetic is done in
// 128 bits so neither long runs nor large rates overflow.
func Delay(elapsed time.Duration, rate, total uint64) time.Duration {
	if rate == 0 {
		panic(ErrZeroRate)
	}
	hi, lo := bits.Mul64(timeutil.MustNanos(elapsed), rate)
	if hi >= timeutil.NanosPerSecond {
		// the budget exceeds any uint64 byte count
		return 0
	}
	allowed, _ := bits.Div64(hi, lo, timeutil.NanosPerSecond)
	if allowed >= total {
		return 0
	}

	hi, lo = bits.Mul64(total-allowed, timeutil.NanosPerSecond)
	if hi >= rate {
		return time.Duration(math.MaxInt64)
	}
	wait, _ := bits.Div64(hi, lo, rate)
	return timeutil.SaturatingFromNanos(wait)
}
