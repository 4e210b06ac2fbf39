// Package metrics exports prometheus collectors for frame loops, timers and
// throttled streams.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valerio/go-ticktock/ticktock/throttle"
)

const namespace = "ticktock"

// Metrics holds every collector. It implements throttle.Observer so it can be
// passed straight to throttle.WithObserver.
type Metrics struct {
	ticks       prometheus.Counter
	dropped     prometheus.Counter
	lateness    prometheus.Histogram
	timerFires  *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	transfers   *prometheus.CounterVec
	throttleLag *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Clock ticks processed by the frame loop.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_dropped_total",
			Help:      "Tick boundaries skipped because a frame ran long.",
		}),
		lateness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_lateness_seconds",
			Help:      "How long after its boundary each tick was observed.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		timerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_fires_total",
			Help:      "Interval timer firings.",
		}, []string{"timer"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_bytes_total",
			Help:      "Bytes moved through throttled streams.",
		}, []string{"direction"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_transfers_total",
			Help:      "Read or write calls on throttled streams.",
		}, []string{"direction"}),
		throttleLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_delay_seconds",
			Help:      "Delay inserted after each throttled transfer.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{
		m.ticks, m.dropped, m.lateness, m.timerFires, m.bytes, m.transfers, m.throttleLag,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTick records one processed tick and how late it was picked up.
func (m *Metrics) ObserveTick(lateness time.Duration) {
	m.ticks.Inc()
	m.lateness.Observe(lateness.Seconds())
}

func (m *Metrics) ObserveDropped(n uint64) {
	m.dropped.Add(float64(n))
}

func (m *Metrics) ObserveTimerFire(name string) {
	m.timerFires.WithLabelValues(name).Inc()
}

func (m *Metrics) ObserveTransfer(dir throttle.Direction, n int, delay time.Duration) {
	label := dir.String()
	m.bytes.WithLabelValues(label).Add(float64(n))
	m.transfers.WithLabelValues(label).Inc()
	m.throttleLag.WithLabelValues(label).Observe(delay.Seconds())
}

var _ throttle.Observer = (*Metrics)(nil)
