// Package metrics exposes the progress of a run to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"loadtest/internal/stats"
)

// Collector counts completed requests per outcome and worker and records
// their latencies. It implements runner.Observer.
type Collector struct {
	registry  *prometheus.Registry
	responses *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		responses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_responses_total",
				Help: "Completed requests by outcome and worker",
			},
			[]string{"outcome", "worker"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadtest_request_duration_seconds",
				Help:    "Request latency by outcome",
				Buckets: prometheus.ExponentialBuckets(0.0005, 1.7, 20),
			},
			[]string{"outcome"},
		),
	}
}

func (c *Collector) Observe(worker int, r stats.Result) {
	outcome := r.Outcome.String()
	c.responses.WithLabelValues(outcome, strconv.Itoa(worker)).Inc()
	c.latency.WithLabelValues(outcome).Observe(r.Elapsed.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
