package stats

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCDFFixture(t *testing.T) {
	got := CDF(1.0, 2, 2, []time.Duration{20, 10})

	want := []Point{
		{0.0, 10},
		{0.683772233983162, 20},
		{0.9, 20},
		{0.9683772233983162, 20},
		{0.99, 20},
	}

	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Percentile, got[i].Percentile, 1e-12, "point %d", i)
		assert.Equal(t, want[i].Latency, got[i].Latency, "point %d", i)
	}
}

func TestCDFThreeValues(t *testing.T) {
	got := CDF(1.0, 2, 2, []time.Duration{300, 100, 200})

	require.NotEmpty(t, got)
	assert.Equal(t, time.Duration(100), got[0].Latency)
	for _, p := range got[1:] {
		assert.Equal(t, time.Duration(300), p.Latency)
	}
}

func TestCDFEmpty(t *testing.T) {
	assert.Empty(t, CDF(1.0, 16, 4, nil))
	assert.Empty(t, CDF(1.0, 16, 4, []time.Duration{}))
}

func TestCDFSingleValue(t *testing.T) {
	got := CDF(1.0, 16, 4, []time.Duration{42 * time.Millisecond})

	require.Len(t, got, 65)
	for _, p := range got {
		assert.Equal(t, 42*time.Millisecond, p.Latency)
	}
}

func TestCDFDoesNotReorderInput(t *testing.T) {
	in := []time.Duration{3, 1, 2}
	CDF(1.0, 2, 2, in)
	assert.Equal(t, []time.Duration{3, 1, 2}, in)
}

func TestCDFMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{0, 1, 2, 10, 99, 1000, 12345} {
		latencies := make([]time.Duration, n)
		for i := range latencies {
			latencies[i] = time.Duration(rng.Int63n(int64(time.Second)))
		}

		points := CDF(1.0, 16, 4, latencies)
		for i := 1; i < len(points); i++ {
			assert.GreaterOrEqual(t, points[i].Percentile, points[i-1].Percentile, "n=%d i=%d", n, i)
			assert.GreaterOrEqual(t, points[i].Latency, points[i-1].Latency, "n=%d i=%d", n, i)
		}
		for _, p := range points {
			assert.GreaterOrEqual(t, p.Percentile, 0.0)
			assert.LessOrEqual(t, p.Percentile, 1.0)
		}
	}
}

func TestCDFTailCoverage(t *testing.T) {
	points := CDF(1.0, 16, 4, make([]time.Duration, 100_000))

	require.Len(t, points, 65)
	assert.InDelta(t, 0.9999, points[len(points)-1].Percentile, 1e-9)
}
