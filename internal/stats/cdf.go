package stats

import (
	"math"
	"slices"
	"time"
)

// Point is one sample of a latency CDF.
type Point struct {
	Percentile float64
	Latency    time.Duration
}

const percentileScale = 1_000_000_000

// CDF builds a tail-focused latency curve. Starting from the tail value start,
// each step multiplies the tail by 10^(-1/resolution), so steps decades are
// covered with resolution points each, plus the first point. Percentiles are
// rounded to the nearest billionth before indexing into the sorted latencies.
// Points whose index falls outside the data are omitted.
func CDF(start float64, resolution, steps uint64, latencies []time.Duration) []Point {
	if resolution == 0 {
		return nil
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	ratio := math.Exp(-math.Ln10 / float64(resolution))
	n := steps * resolution
	length := uint64(len(sorted))

	points := make([]Point, 0, n+1)
	r := start
	for i := uint64(0); i <= n; i++ {
		p := 1 - r
		scaled := math.Min(math.Max(math.Round(p*percentileScale), 0), percentileScale)
		idx := length * uint64(scaled) / percentileScale
		if idx < length {
			points = append(points, Point{Percentile: p, Latency: sorted[idx]})
		}
		r *= ratio
	}
	return points
}
