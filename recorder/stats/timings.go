// Package stats keeps wall-clock timing statistics for recorded samples.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Timings is a thread-safe histogram of per-sample recording times in
// milliseconds.
type Timings struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// Summary is a snapshot of Timings.
type Summary struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  int64   `json:"p50_ms"`
	P90Ms  int64   `json:"p90_ms"`
	P99Ms  int64   `json:"p99_ms"`
	MaxMs  int64   `json:"max_ms"`
}

// NewTimings returns an empty histogram covering 1 ms to 1 hour with three
// significant figures.
func NewTimings() *Timings {
	return &Timings{hist: hdrhistogram.New(1, int64(time.Hour/time.Millisecond), 3)}
}

// Record adds one sample time. Values below 1 ms are clamped to 1 ms and
// values above the range to the range maximum.
func (t *Timings) Record(millis int64) {
	if millis < 1 {
		millis = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if max := t.hist.HighestTrackableValue(); millis > max {
		millis = max
	}
	_ = t.hist.RecordValue(millis)
}

// Reset empties the histogram.
func (t *Timings) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hist.Reset()
}

// Summary returns count, mean and percentiles.
func (t *Timings) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hist.TotalCount() == 0 {
		return Summary{}
	}
	return Summary{
		Count:  t.hist.TotalCount(),
		MeanMs: t.hist.Mean(),
		P50Ms:  t.hist.ValueAtQuantile(50),
		P90Ms:  t.hist.ValueAtQuantile(90),
		P99Ms:  t.hist.ValueAtQuantile(99),
		MaxMs:  t.hist.Max(),
	}
}
