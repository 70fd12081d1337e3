// Package cli runs a load test from the command line and reports on it.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"loadtest/internal/config"
	"loadtest/internal/metrics"
	"loadtest/internal/report"
	"loadtest/internal/runner"
	"loadtest/internal/stats"
	"loadtest/internal/storage"
	"loadtest/internal/tui"
	"loadtest/internal/tui/styles"
)

// Options are the parts of a run that do not affect the requests sent.
type Options struct {
	Workers     int
	TUI         bool
	CSVPath     string
	MetricsAddr string
	History     bool
	HistoryPath string

	// Out receives the human-facing output. Defaults to os.Stdout.
	Out io.Writer
}

// newObservers returns the per-request observers a run needs. The latency
// histogram only exists for the live view and the collector only when a
// metrics address is set, so a headless run without metrics has none.
func newObservers(opts Options) (runner.Observers, *stats.SafeHistogram, *metrics.Collector) {
	var (
		observers runner.Observers
		latency   *stats.SafeHistogram
		collector *metrics.Collector
	)
	if opts.TUI {
		latency = stats.NewSafeHistogram()
		observers = append(observers, latency)
	}
	if opts.MetricsAddr != "" {
		collector = metrics.NewCollector()
		observers = append(observers, collector)
	}
	return observers, latency, collector
}

// Start prints the arguments, runs the load test, then prints the summary
// and CDFs and writes the report. Writing CSV or history is best effort
// once the report is on disk.
func Start(ctx context.Context, cfg *config.Config, opts Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprint(out, config.RenderArgs(cfg))
	fmt.Fprintln(out)

	updates := make(runner.StatsUpdateChan, 100)
	observers, latency, collector := newObservers(opts)

	if collector != nil {
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer stopMetrics()
		go func() {
			if err := collector.Serve(metricsCtx, opts.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", opts.MetricsAddr).Msg("metrics server failed")
			}
		}()
	}

	runnerOpts := []runner.Option{runner.WithUpdates(updates)}
	if len(observers) > 0 {
		runnerOpts = append(runnerOpts, runner.WithObserver(observers))
	}
	r := runner.NewRunner(cfg, opts.Workers, runnerOpts...)

	var (
		res *runner.RunResult
		err error
	)
	if opts.TUI {
		res, err = tui.Run(ctx, cfg, r, updates, latency)
	} else {
		res, err = runWithProgress(ctx, out, r, updates)
	}
	if err != nil {
		return err
	}

	printSummary(out, cfg, res)

	rep := report.Build(cfg, res)
	report.PrintCDFs(out, rep)
	if err := report.WriteFile(cfg.Output, rep); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote run report to %s\n", cfg.Output)

	if opts.CSVPath != "" {
		if err := report.ExportCSV(rep, opts.CSVPath); err != nil {
			log.Warn().Err(err).Str("path", opts.CSVPath).Msg("failed to export snapshots")
		} else {
			fmt.Fprintf(out, "Wrote worker snapshots to %s\n", opts.CSVPath)
		}
	}

	if opts.History {
		saveHistory(opts.HistoryPath, storage.NewHistoryItem(cfg, opts.Workers, res, cfg.Output))
	}
	return nil
}

// runWithProgress runs r while a bar follows the requests issued so far,
// summed over the latest snapshot of every worker.
func runWithProgress(ctx context.Context, out io.Writer, r *runner.Runner, updates runner.StatsUpdateChan) (*runner.RunResult, error) {
	plan, err := r.Plan()
	if err != nil {
		return nil, err
	}
	planned := int64(plan.PerWorker) * int64(plan.Workers)

	type outcome struct {
		res *runner.RunResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Run(ctx)
		done <- outcome{res, err}
	}()

	if planned == 0 {
		o := <-done
		return o.res, o.err
	}

	p := mpb.New(mpb.WithOutput(out), mpb.WithWidth(60))
	bar := p.AddBar(planned,
		mpb.PrependDecorators(
			decor.Name("requests "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Name(" "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)

	sent := make(map[int]uint64)
	for {
		select {
		case s := <-updates:
			sent[s.ID] = s.RequestsSent
			var total uint64
			for _, n := range sent {
				total += n
			}
			bar.SetCurrent(int64(total))

		case o := <-done:
			if o.err != nil {
				bar.Abort(false)
			} else {
				bar.SetTotal(int64(o.res.RequestsSent), true)
			}
			p.Wait()
			return o.res, o.err
		}
	}
}

func printSummary(out io.Writer, cfg *config.Config, res *runner.RunResult) {
	c := res.Counters
	done := c.Total()
	var elapsed time.Duration
	for _, s := range res.WorkerStats {
		elapsed = max(elapsed, s.Elapsed)
	}

	row := func(label, value string) {
		fmt.Fprintf(out, "  %s %s\n", styles.Label.Render(fmt.Sprintf("%-16s", label+":")), value)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Title.Render("Results"))
	row("Requests sent", humanize.Comma(int64(res.RequestsSent)))
	row("Completed", humanize.Comma(int64(done)))
	if done > 0 {
		pct := float64(c.NonSuccess()) / float64(done) * 100
		row("Non-success", styles.ErrorRate(pct).Render(fmt.Sprintf("%s (%.2f%%)", humanize.Comma(int64(c.NonSuccess())), pct)))
	}
	if elapsed > 0 {
		row("Throughput", fmt.Sprintf("%.2f requests/second (target %s)", float64(done)/elapsed.Seconds(), cfg.RequestsPerSecond))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Title.Render("Outcomes"))
	for _, o := range stats.Outcomes {
		if n := c.Get(o); n > 0 {
			row(o.String(), humanize.Comma(int64(n)))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Title.Render("Latency (ms)"))
	for _, l := range []struct {
		name      string
		latencies []time.Duration
	}{
		{"all", res.AllLatencies()},
		{"success", res.SuccessLatencies},
		{"non-success", res.NonSuccessLatencies},
	} {
		if len(l.latencies) == 0 {
			continue
		}
		s := stats.Summarize(l.latencies)
		row(l.name, fmt.Sprintf("mean %.2f  p50 %.2f  p90 %.2f  p99 %.2f  max %.2f",
			s.MeanMs, s.P50Ms, s.P90Ms, s.P99Ms, s.MaxMs))
	}
	fmt.Fprintln(out)
}

func saveHistory(path string, item storage.HistoryItem) {
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			log.Warn().Err(err).Msg("no history path")
			return
		}
	}

	store, err := storage.Open(path)
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable")
		return
	}
	defer store.Close()

	if err := store.Save(item); err != nil {
		log.Warn().Err(err).Msg("failed to record run")
		return
	}
	log.Debug().Str("id", item.ID).Str("path", path).Msg("recorded run")
}
