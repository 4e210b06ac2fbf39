// Package jitter records how late a frame loop observes its tick boundaries
// and plots the distribution.
package jitter

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/valerio/go-ticktock/ticktock/timeutil"
)

var ErrNoSamples = errors.New("jitter: no samples recorded")

// Recorder collects lateness samples. Not safe for concurrent use.
type Recorder struct {
	samples []time.Duration
}

func NewRecorder(capacity int) *Recorder {
	return &Recorder{samples: make([]time.Duration, 0, capacity)}
}

// Record stores how long after due the tick was observed at. Observations
// before the boundary count as zero lateness.
func (r *Recorder) Record(due, observed time.Time) time.Duration {
	late := timeutil.Sub(observed, due)
	r.samples = append(r.samples, late)
	return late
}

func (r *Recorder) Len() int {
	return len(r.samples)
}

type Stats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("n=%d min=%v mean=%v p50=%v p99=%v max=%v", s.Count, s.Min, s.Mean, s.P50, s.P99, s.Max)
}

// Stats summarises the recorded samples.
func (r *Recorder) Stats() (Stats, error) {
	if len(r.samples) == 0 {
		return Stats{}, ErrNoSamples
	}
	sorted := slices.Clone(r.samples)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Stats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   percentile(sorted, 50),
		P99:   percentile(sorted, 99),
	}, nil
}

// percentile uses the nearest-rank method on an already sorted slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Plot builds a histogram of lateness in microseconds.
func (r *Recorder) Plot(title string, bins int) (*plot.Plot, error) {
	if len(r.samples) == 0 {
		return nil, ErrNoSamples
	}
	values := make(plotter.Values, len(r.samples))
	for i, d := range r.samples {
		values[i] = float64(d) / float64(time.Microsecond)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "lateness (µs)"
	p.Y.Label.Text = "ticks"

	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return nil, fmt.Errorf("jitter: building histogram: %w", err)
	}
	p.Add(hist)
	return p, nil
}

// SavePlot writes the histogram to path; the format follows the extension
// (.png, .svg, .pdf, ...).
func (r *Recorder) SavePlot(path, title string, bins int) error {
	p, err := r.Plot(title, bins)
	if err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
