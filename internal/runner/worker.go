package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"loadtest/internal/stats"
)

const diagnosticsInterval = 250 * time.Millisecond

type completion struct {
	result stats.Result
	err    error
}

type workerResult struct {
	snapshots []stats.WorkerStats
	acc       *stats.Accumulator
	issued    uint64
}

// worker issues its share of the run's requests on its own phase-offset
// clock. All of its state is owned by the goroutine running it.
type worker struct {
	id       int
	budget   uint64
	duration time.Duration
	ticks    *interval
	exec     Executor
	acc      *stats.Accumulator

	updates  StatsUpdateChan
	observer Observer
	log      zerolog.Logger

	issued    uint64
	completed uint64
	snapshots []stats.WorkerStats
}

func (w *worker) inFlight() uint64 {
	return w.issued - w.completed
}

// run waits at the start barrier, then issues requests until the budget is
// spent or the duration has elapsed, and finally waits for every request
// still in flight. A closed cancelled channel at release time means the
// worker does nothing and returns a nil result. ctx is cancelled when
// another worker has failed.
func (w *worker) run(ctx context.Context, start *barrier, cancelled <-chan struct{}) (*workerResult, error) {
	defer w.ticks.stop()

	start.wait()
	t0 := time.Now()

	select {
	case <-cancelled:
		w.log.Debug().Msg("cancelled before start")
		return nil, nil
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.log.Debug().Uint64("budget", w.budget).Dur("period", w.ticks.period).Msg("worker running")

	diagnostics := time.NewTicker(diagnosticsInterval)
	defer diagnostics.Stop()

	results := make(chan completion)

	for w.issued < w.budget && time.Since(t0) < w.duration {
		var done <-chan completion
		if w.inFlight() > 0 {
			done = results
		}

		select {
		case now := <-w.ticks.C():
			if tick := w.ticks.fired(now); tick.Before(t0) {
				continue
			}
			expected := uint64(time.Since(t0) / w.ticks.period)
			for w.issued < expected && w.issued < w.budget {
				w.launch(ctx, results)
			}

		case <-diagnostics.C:
			w.capture(t0)

		case c := <-done:
			if err := w.complete(c); err != nil {
				return nil, err
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.capture(t0)

	for w.inFlight() > 0 {
		select {
		case c := <-results:
			if err := w.complete(c); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.log.Debug().Uint64("issued", w.issued).Msg("worker done")

	return &workerResult{snapshots: w.snapshots, acc: w.acc, issued: w.issued}, nil
}

func (w *worker) launch(ctx context.Context, results chan<- completion) {
	w.issued++
	go func() {
		res, err := w.exec.Execute(ctx)
		select {
		case results <- completion{result: res, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (w *worker) complete(c completion) error {
	w.completed++
	if c.err != nil {
		w.log.Error().Err(c.err).Msg("request failed")
		return fmt.Errorf("worker %d: %w", w.id, c.err)
	}

	w.acc.Add(c.result)
	if w.observer != nil {
		w.observer.Observe(w.id, c.result)
	}
	return nil
}

func (w *worker) capture(t0 time.Time) {
	s := w.acc.Snapshot(w.id, time.Since(t0), w.issued, w.inFlight())
	w.snapshots = append(w.snapshots, s)

	if w.updates == nil {
		return
	}
	// Non-blocking send, a slow consumer only misses snapshots
	select {
	case w.updates <- s:
	default:
	}
}
