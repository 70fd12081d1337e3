package runner

import (
	"context"
	"time"

	"loadtest/internal/stats"
)

// Executor performs one request. A non-nil error is a transport failure
// that must abort the run; timeouts are reported as stats.Timeout results.
type Executor interface {
	Execute(ctx context.Context) (stats.Result, error)
}

// Observer is told about every result a worker folds into its statistics.
// It is called concurrently from all workers.
type Observer interface {
	Observe(worker int, r stats.Result)
}

// StatsUpdateChan carries worker snapshots to a live consumer.
type StatsUpdateChan chan stats.WorkerStats

// RunResult is the merged outcome of every worker. Counters and
// RequestsSent include requests that completed while draining, which the
// last snapshot of a worker does not.
type RunResult struct {
	Timestamp           time.Time
	WorkerStats         []stats.WorkerStats
	SuccessLatencies    []time.Duration
	NonSuccessLatencies []time.Duration
	Counters            stats.Counters
	RequestsSent        uint64
}

// AllLatencies returns the success latencies followed by the non-success ones.
func (r *RunResult) AllLatencies() []time.Duration {
	all := make([]time.Duration, 0, len(r.SuccessLatencies)+len(r.NonSuccessLatencies))
	all = append(all, r.SuccessLatencies...)
	return append(all, r.NonSuccessLatencies...)
}

// Observers fans a result out to several observers in order.
type Observers []Observer

func (obs Observers) Observe(worker int, r stats.Result) {
	for _, o := range obs {
		o.Observe(worker, r)
	}
}
