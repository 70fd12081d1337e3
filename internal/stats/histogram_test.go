package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	var latencies []time.Duration
	for i := 1; i <= 100; i++ {
		latencies = append(latencies, time.Duration(i)*time.Millisecond)
	}

	s := Summarize(latencies)

	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, 50.5, s.MeanMs, 0.1)
	assert.InDelta(t, 50, s.P50Ms, 0.1)
	assert.InDelta(t, 90, s.P90Ms, 0.1)
	assert.InDelta(t, 99, s.P99Ms, 0.1)
	assert.InDelta(t, 100, s.MaxMs, 0.1)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSafeHistogramConcurrent(t *testing.T) {
	h := NewSafeHistogram()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Record(5 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	s := h.Summary()
	assert.Equal(t, int64(800), s.Count)
	assert.InDelta(t, 5, s.P99Ms, 0.01)
}
