package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadtest/internal/config"
	"loadtest/internal/report"
	"loadtest/internal/storage"
)

// execute runs the root command with every flag back at its default.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfgFile = ""

	for _, fs := range []*pflag.FlagSet{rootCmd.PersistentFlags(), rootCmd.Flags(), historyCmd.Flags(), dummyCmd.Flags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				require.NoError(t, sv.Replace(nil))
			} else {
				require.NoError(t, f.Value.Set(f.DefValue))
			}
			f.Changed = false
		})
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDryRun(t *testing.T) {
	out, err := execute(t, "--dry-run", "--http1.1", "-H", "X-Trace: a,b", "-o", "out.pb", "https://example.com")
	require.NoError(t, err)

	want := "Arguments\n" +
		"  URL: https://example.com/\n" +
		"  Headers:\n" +
		"    x-trace: a,b\n" +
		"  Insecure: false\n" +
		"  Method: GET\n" +
		"  Follow redirects: false\n" +
		"  Throughput: 1 requests/second\n" +
		"  Load test duration: 10 seconds\n" +
		"  Output file: out.pb\n" +
		"  Protocol: HTTP/1.1\n" +
		"  Request body size: 0 bytes\n"
	assert.Equal(t, want, out)
}

func TestDryRunOptionalFlags(t *testing.T) {
	out, err := execute(t, "--dry-run", "--http2-prior-knowledge", "-d", "hello", "-m", "3",
		"--connect-timeout", "1.5", "--requests-per-second", "2.5", "-o", "out.pb", "http://localhost:8080/x")
	require.NoError(t, err)

	assert.Contains(t, out, "  Method: POST\n")
	assert.Contains(t, out, "  Throughput: 2.5 requests/second\n")
	assert.Contains(t, out, "  Request timeout: 3 seconds\n")
	assert.Contains(t, out, "  Connection timeout: 1 seconds\n")
	assert.Contains(t, out, "  Protocol: HTTP/2\n")
	assert.Contains(t, out, "  Request body size: 5 bytes\n")
}

func TestRateFromEnvironment(t *testing.T) {
	t.Setenv("LOADTEST_REQUESTS_PER_SECOND", "7")

	out, err := execute(t, "--dry-run", "--http1.1", "-o", "out.pb", "http://localhost/")
	require.NoError(t, err)
	assert.Contains(t, out, "  Throughput: 7 requests/second\n")
}

func TestConfigurationErrors(t *testing.T) {
	_, err := execute(t, "--dry-run", "http://localhost/")
	assert.ErrorIs(t, err, config.ErrSpecifyProtocol)

	_, err = execute(t, "--dry-run", "--http1.1", "--http2-prior-knowledge", "http://localhost/")
	assert.ErrorIs(t, err, config.ErrMutuallyExclusiveProtocol)

	_, err = execute(t, "--http1.1", "--workers", "0", "http://localhost/")
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = execute(t, "--http1.1")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "history", "--history-path", path)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)

	store, err := storage.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(storage.HistoryItem{
		ID:                "0123456789abcdef",
		Timestamp:         time.Now().Add(-time.Hour),
		URL:               "http://localhost/",
		Method:            "GET",
		RequestsPerSecond: "5",
		DurationSecs:      10,
		ReportPath:        "r.pb",
		Summary:           storage.RunSummary{Requests: 1234, Success: 1200, NonSuccess: 34, P99Ms: 12.5},
	}))
	require.NoError(t, store.Close())

	out, err = execute(t, "history", "--history-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "1,234")
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.pb")
	require.NoError(t, report.WriteFile(path, &report.Report{
		RunTimestampUnixNanos: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano(),
		Config:                &report.LoadTestConfig{URL: "http://localhost/", Method: "GET", RequestsPerSecond: 5, DurationSecs: 10},
		WorkerStats:           []report.WorkerStats{{WorkerID: 0}, {WorkerID: 1}},
		CDF:                   []report.CDFPoint{{Percentile: 0, LatencyNanos: 10}},
	}))

	out, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run at: 2026-01-02T03:04:05Z\n")
	assert.Contains(t, out, "Throughput: 5 requests/second\n")
	assert.Contains(t, out, "Worker snapshots: 2\n")
	assert.Contains(t, out, "cdf (all): [[0, 10]]\n")

	_, err = execute(t, "inspect", filepath.Join(t.TempDir(), "missing.pb"))
	assert.Error(t, err)
}
