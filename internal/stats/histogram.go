package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minTrackable = 1
	maxTrackable = int64(10 * time.Minute / time.Microsecond)
	sigFigs      = 3
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram, recording microseconds.
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 10min, 3 significant figures
	return &SafeHistogram{hist: hdrhistogram.New(minTrackable, maxTrackable, sigFigs)}
}

// Record adds a latency, clamping it to the trackable range.
func (h *SafeHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hist.RecordValue(clampMicros(d))
}

// Summary reports the current quantiles.
func (h *SafeHistogram) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return summarize(h.hist)
}

// Summary is a compact description of a latency distribution in milliseconds.
type Summary struct {
	Count  int64
	MeanMs float64
	P50Ms  float64
	P90Ms  float64
	P99Ms  float64
	MaxMs  float64
}

// Summarize builds a Summary from a latency list.
func Summarize(latencies []time.Duration) Summary {
	h := hdrhistogram.New(minTrackable, maxTrackable, sigFigs)
	for _, d := range latencies {
		h.RecordValue(clampMicros(d))
	}
	return summarize(h)
}

func summarize(h *hdrhistogram.Histogram) Summary {
	if h.TotalCount() == 0 {
		return Summary{}
	}
	return Summary{
		Count:  h.TotalCount(),
		MeanMs: h.Mean() / 1000.0,
		P50Ms:  float64(h.ValueAtQuantile(50)) / 1000.0,
		P90Ms:  float64(h.ValueAtQuantile(90)) / 1000.0,
		P99Ms:  float64(h.ValueAtQuantile(99)) / 1000.0,
		MaxMs:  float64(h.Max()) / 1000.0,
	}
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minTrackable {
		return minTrackable
	}
	if us > maxTrackable {
		return maxTrackable
	}
	return us
}

// Observe records the latency of r. It lets a histogram follow a run live.
func (h *SafeHistogram) Observe(_ int, r Result) {
	h.Record(r.Elapsed)
}
