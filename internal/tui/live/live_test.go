package live

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"loadtest/internal/stats"
)

func TestUpdateKeepsLatestSnapshotPerWorker(t *testing.T) {
	hist := stats.NewSafeHistogram()
	hist.Record(20 * time.Millisecond)
	m := NewModel(10*time.Second, hist)

	m, _ = m.Update(stats.WorkerStats{ID: 0, RequestsSent: 2, Counters: stats.Counters{Successful: 2}})
	m, _ = m.Update(stats.WorkerStats{ID: 1, RequestsSent: 3, InFlight: 1, Counters: stats.Counters{Successful: 1, ServerError: 1}})
	m, _ = m.Update(stats.WorkerStats{ID: 0, RequestsSent: 4, Counters: stats.Counters{Successful: 3, Timeouts: 1}})

	assert.Len(t, m.Workers, 2)
	assert.Equal(t, uint64(7), m.Totals.RequestsSent)
	assert.Equal(t, uint64(1), m.Totals.InFlight)
	assert.Equal(t, uint64(4), m.Totals.Successful)
	assert.Equal(t, uint64(2), m.Totals.NonSuccess())
	assert.Equal(t, uint64(6), m.LastDone)
	assert.Len(t, m.LatencyLine.Data, 3)
}

func TestViewRendersTotals(t *testing.T) {
	m := NewModel(time.Second, nil)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = m.Update(stats.WorkerStats{ID: 0, RequestsSent: 1200, Counters: stats.Counters{Successful: 1000, ClientError: 200}})

	view := m.View()
	assert.Contains(t, view, "1,200")
	assert.Contains(t, view, "16.67%")
	assert.NotContains(t, view, "P50")
}
