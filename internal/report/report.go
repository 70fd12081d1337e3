// Package report turns a finished run into the LoadTestRunReport message:
// the run configuration, every worker snapshot and three latency CDFs.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"loadtest/internal/config"
	"loadtest/internal/runner"
	"loadtest/internal/stats"
)

const (
	StartPercentile = 1.0
	Resolution      = 16
	Steps           = 4
)

type Header struct {
	Name  string
	Value string
}

type LoadTestConfig struct {
	URL               string
	Method            string
	RequestsPerSecond uint32
	DurationSecs      int64
	Headers           []Header
}

type WorkerStats struct {
	TimestampUnixNanos    int64
	WorkerID              uint32
	ElapsedNanos          uint64
	RequestSent           uint64
	InFlight              uint64
	InformationalResponse uint64
	SuccessfulResponse    uint64
	RedirectionMessage    uint64
	ClientErrorResponse   uint64
	ServerErrorResponse   uint64
	OtherErrorResponse    uint64
	Timeouts              uint64
}

type CDFPoint struct {
	Percentile   float64
	LatencyNanos int64
}

// Report mirrors the LoadTestRunReport protobuf message.
type Report struct {
	RunTimestampUnixNanos int64
	Config                *LoadTestConfig
	WorkerStats           []WorkerStats
	CDF                   []CDFPoint
	CDFSuccess            []CDFPoint
	CDFNonSuccess         []CDFPoint
}

// Build computes the CDFs of all, successful and non-successful latencies
// and collects everything else the report carries.
func Build(cfg *config.Config, res *runner.RunResult) *Report {
	r := &Report{
		RunTimestampUnixNanos: res.Timestamp.UnixNano(),
		Config:                buildConfig(cfg),
		CDF:                   cdf(res.AllLatencies()),
		CDFSuccess:            cdf(res.SuccessLatencies),
		CDFNonSuccess:         cdf(res.NonSuccessLatencies),
	}

	r.WorkerStats = make([]WorkerStats, 0, len(res.WorkerStats))
	for _, s := range res.WorkerStats {
		r.WorkerStats = append(r.WorkerStats, WorkerStats{
			TimestampUnixNanos:    s.Timestamp.UnixNano(),
			WorkerID:              uint32(s.ID),
			ElapsedNanos:          uint64(max(s.Elapsed, 0)),
			RequestSent:           s.RequestsSent,
			InFlight:              s.InFlight,
			InformationalResponse: s.Informational,
			SuccessfulResponse:    s.Successful,
			RedirectionMessage:    s.Redirection,
			ClientErrorResponse:   s.ClientError,
			ServerErrorResponse:   s.ServerError,
			OtherErrorResponse:    s.OtherError,
			Timeouts:              s.Timeouts,
		})
	}
	return r
}

func buildConfig(cfg *config.Config) *LoadTestConfig {
	c := &LoadTestConfig{
		URL:               cfg.URL.String(),
		Method:            cfg.Method,
		RequestsPerSecond: cfg.RequestsPerSecond.Uint32(),
		DurationSecs:      int64(cfg.Duration / time.Second),
	}
	for _, h := range cfg.Headers {
		c.Headers = append(c.Headers, Header{Name: h.Name, Value: h.Value})
	}
	return c
}

func cdf(latencies []time.Duration) []CDFPoint {
	points := stats.CDF(StartPercentile, Resolution, Steps, latencies)
	out := make([]CDFPoint, 0, len(points))
	for _, p := range points {
		out = append(out, CDFPoint{Percentile: p.Percentile, LatencyNanos: saturatingNanos(p.Latency)})
	}
	return out
}

func saturatingNanos(d time.Duration) int64 {
	return int64(max(d, 0))
}

// WriteFile encodes r and writes it to path.
func WriteFile(path string, r *Report) error {
	if err := os.WriteFile(path, Marshal(r), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes a report written by WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	return Unmarshal(data)
}

// PrintCDFs writes the three curves as [percentile, nanoseconds] pairs.
func PrintCDFs(w io.Writer, r *Report) {
	fmt.Fprintf(w, "cdf (all): [%s]\n", formatCDF(r.CDF))
	fmt.Fprintf(w, "cdf (success): [%s]\n", formatCDF(r.CDFSuccess))
	fmt.Fprintf(w, "cdf (non-success): [%s]\n", formatCDF(r.CDFNonSuccess))
}

func formatCDF(points []CDFPoint) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = "[" + strconv.FormatFloat(p.Percentile, 'f', -1, 64) + ", " + strconv.FormatInt(p.LatencyNanos, 10) + "]"
	}
	return strings.Join(parts, ", ")
}
