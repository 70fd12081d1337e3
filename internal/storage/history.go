package storage

import (
	"time"

	"github.com/google/uuid"

	"loadtest/internal/config"
	"loadtest/internal/runner"
	"loadtest/internal/stats"
)

type HistoryItem struct {
	ID                string     `json:"id"`
	Timestamp         time.Time  `json:"timestamp"`
	URL               string     `json:"url"`
	Method            string     `json:"method"`
	RequestsPerSecond string     `json:"requests_per_second"`
	DurationSecs      int64      `json:"duration_secs"`
	Workers           int        `json:"workers"`
	ReportPath        string     `json:"report_path"`
	Summary           RunSummary `json:"summary"`
}

type RunSummary struct {
	Requests   uint64  `json:"requests"`
	Success    uint64  `json:"success"`
	NonSuccess uint64  `json:"non_success"`
	Timeouts   uint64  `json:"timeouts"`
	MeanMs     float64 `json:"mean_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P90Ms      float64 `json:"p90_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MaxMs      float64 `json:"max_ms"`
}

// NewHistoryItem summarises a finished run for the history store.
func NewHistoryItem(cfg *config.Config, workers int, res *runner.RunResult, reportPath string) HistoryItem {
	lat := stats.Summarize(res.AllLatencies())
	return HistoryItem{
		ID:                uuid.NewString(),
		Timestamp:         res.Timestamp,
		URL:               cfg.URL.String(),
		Method:            cfg.Method,
		RequestsPerSecond: cfg.RequestsPerSecond.String(),
		DurationSecs:      int64(cfg.Duration / time.Second),
		Workers:           workers,
		ReportPath:        reportPath,
		Summary: RunSummary{
			Requests:   res.Counters.Total(),
			Success:    res.Counters.Successful,
			NonSuccess: res.Counters.NonSuccess(),
			Timeouts:   res.Counters.Timeouts,
			MeanMs:     lat.MeanMs,
			P50Ms:      lat.P50Ms,
			P90Ms:      lat.P90Ms,
			P99Ms:      lat.P99Ms,
			MaxMs:      lat.MaxMs,
		},
	}
}
