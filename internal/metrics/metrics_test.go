package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadtest/internal/stats"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollectorObserve(t *testing.T) {
	c := NewCollector()
	c.Observe(0, stats.Result{Outcome: stats.Success, Elapsed: 10 * time.Millisecond})
	c.Observe(0, stats.Result{Outcome: stats.Success, Elapsed: 20 * time.Millisecond})
	c.Observe(1, stats.Result{Outcome: stats.Timeout, Elapsed: time.Second})

	body := scrape(t, c)
	assert.Contains(t, body, `loadtest_responses_total{outcome="success",worker="0"} 2`)
	assert.Contains(t, body, `loadtest_responses_total{outcome="timeout",worker="1"} 1`)
	assert.Contains(t, body, `loadtest_request_duration_seconds_count{outcome="success"} 2`)
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.Observe(0, stats.Result{Outcome: stats.ServerError})

	assert.NotContains(t, scrape(t, b), "loadtest_responses_total{")
}
