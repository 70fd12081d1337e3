// Package runner drives a load test: it splits the requested rate across a
// fixed number of workers, starts them together and merges what they measured.
package runner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"loadtest/internal/config"
	"loadtest/internal/stats"
)

var (
	ErrNonPositiveRate = errors.New("requests per second must be greater than 0")
	ErrRateOutOfRange  = errors.New("requests per second out of range")
	ErrNoWorkers       = errors.New("worker count must be at least 1")
)

// Cap on the latency slice preallocated per worker.
const maxPrealloc = 1 << 20

// Plan is how a run's requests are divided between workers.
type Plan struct {
	Workers    int
	Period     time.Duration
	Iterations uint64
	PerWorker  uint64
}

// NewPlan derives the global request period from rate (truncated to whole
// nanoseconds), the total number of requests that fit in duration and the
// share of each worker. Requests left over by the integer division are not
// issued.
func NewPlan(rate *big.Rat, duration time.Duration, workers int) (Plan, error) {
	if workers < 1 {
		return Plan{}, ErrNoWorkers
	}
	if rate == nil || rate.Sign() <= 0 {
		return Plan{}, ErrNonPositiveRate
	}

	ns := new(big.Int).Mul(big.NewInt(int64(time.Second)), rate.Denom())
	ns.Quo(ns, rate.Num())
	if ns.Sign() == 0 || !ns.IsInt64() || ns.Int64() > math.MaxInt64/int64(workers) {
		return Plan{}, fmt.Errorf("%w: %s", ErrRateOutOfRange, rate.FloatString(9))
	}

	period := time.Duration(ns.Int64())
	iterations := uint64(duration / period)

	return Plan{
		Workers:    workers,
		Period:     period,
		Iterations: iterations,
		PerWorker:  iterations / uint64(workers),
	}, nil
}

// LocalPeriod is the tick period of a single worker.
func (p Plan) LocalPeriod() time.Duration {
	return p.Period * time.Duration(p.Workers)
}

// FirstTick is when worker id first ticks, given worker 0 ticks at start.
func (p Plan) FirstTick(start time.Time, id int) time.Time {
	return start.Add(time.Duration(id) * p.Period)
}

// Runner is the scheduler of a run.
type Runner struct {
	cfg     *config.Config
	workers int

	updates     StatsUpdateChan
	observer    Observer
	log         zerolog.Logger
	newExecutor func(*config.Config) (Executor, error)
}

// Option customises a Runner.
type Option func(*Runner)

// WithUpdates offers every snapshot to ch without blocking.
func WithUpdates(ch StatsUpdateChan) Option {
	return func(r *Runner) { r.updates = ch }
}

// WithObserver reports every completed request to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithExecutorFactory replaces the HTTP executor each worker is built with.
func WithExecutorFactory(f func(*config.Config) (Executor, error)) Option {
	return func(r *Runner) { r.newExecutor = f }
}

func NewRunner(cfg *config.Config, workers int, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		workers: workers,
		log:     log.Logger,
		newExecutor: func(c *config.Config) (Executor, error) {
			return NewHTTPExecutor(c)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "runner").Logger()
	return r
}

// Plan returns how the configured run would be divided.
func (r *Runner) Plan() (Plan, error) {
	return NewPlan(r.cfg.RequestsPerSecond.Rat(), r.cfg.Duration, r.workers)
}

// Run executes the load test. The first worker failure aborts the run and
// is returned without partial results. Cancelling ctx before the workers
// are released makes them return without issuing anything; once running,
// workers are not interrupted by ctx.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	timestamp := time.Now()

	plan, err := r.Plan()
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int("workers", plan.Workers).
		Dur("period", plan.Period).
		Uint64("iterations", plan.Iterations).
		Uint64("per_worker", plan.PerWorker).
		Msg("starting run")

	start := newBarrier(plan.Workers + 1)
	now := time.Now()

	workers := make([]*worker, plan.Workers)
	for id := range workers {
		exec, err := r.newExecutor(r.cfg)
		if err != nil {
			for _, w := range workers[:id] {
				w.ticks.stop()
			}
			return nil, err
		}
		workers[id] = &worker{
			id:       id,
			budget:   plan.PerWorker,
			duration: r.cfg.Duration,
			ticks:    newInterval(plan.FirstTick(now, id), plan.LocalPeriod()),
			exec:     exec,
			acc:      stats.NewAccumulator(int(min(plan.PerWorker, maxPrealloc))),
			updates:  r.updates,
			observer: r.observer,
			log:      r.log.With().Int("worker", id).Logger(),
		}
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	results := make([]*workerResult, plan.Workers)
	for i, w := range workers {
		g.Go(func() error {
			res, err := w.run(gctx, start, ctx.Done())
			results[i] = res
			return err
		})
	}

	start.wait()

	if err := g.Wait(); err != nil {
		r.log.Error().Err(err).Msg("run aborted")
		return nil, err
	}

	return merge(timestamp, results), nil
}

func merge(timestamp time.Time, results []*workerResult) *RunResult {
	merged := stats.NewAccumulator(0)
	out := &RunResult{Timestamp: timestamp}

	for _, res := range results {
		if res == nil {
			continue
		}
		out.WorkerStats = append(out.WorkerStats, res.snapshots...)
		out.RequestsSent += res.issued
		merged.Merge(res.acc)
	}

	slices.SortStableFunc(out.WorkerStats, func(a, b stats.WorkerStats) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out.Counters = merged.Counters
	out.SuccessLatencies = merged.SuccessLatencies
	out.NonSuccessLatencies = merged.NonSuccessLatencies
	return out
}
