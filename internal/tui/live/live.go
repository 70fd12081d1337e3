package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"loadtest/internal/stats"
	"loadtest/internal/tui/components"
	"loadtest/internal/tui/styles"
)

// Model shows the latest snapshot of every worker, summed.
type Model struct {
	Workers  map[int]stats.WorkerStats
	Totals   stats.WorkerStats
	Latency  *stats.SafeHistogram
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime  time.Time
	Duration   time.Duration
	LastUpdate time.Time
	LastDone   uint64

	Width  int
	Height int
}

// NewModel tracks a run of totalDur. latency may be nil, in which case the
// latency line and quantiles stay empty.
func NewModel(totalDur time.Duration, latency *stats.SafeHistogram) Model {
	now := time.Now()
	return Model{
		Workers:     make(map[int]stats.WorkerStats),
		Latency:     latency,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "Completed/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
		StartTime:   now,
		Duration:    totalDur,
		LastUpdate:  now,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stats.WorkerStats:
		m.Workers[msg.ID] = msg
		m.Totals = sum(m.Workers)

		now := time.Now()
		dt := max(now.Sub(m.LastUpdate).Seconds(), 0.01)
		done := m.Totals.Total()
		if done >= m.LastDone {
			m.RpsLine.Add(uint64(float64(done-m.LastDone) / dt))
		}
		if m.Latency != nil {
			m.LatencyLine.Add(uint64(m.Latency.Summary().P90Ms))
		}
		m.LastDone = done
		m.LastUpdate = now

		pct := min(float64(time.Since(m.StartTime))/float64(m.Duration), 1.0)
		return m, m.Progress.SetPercent(pct)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := max(msg.Width/2-4, 10)
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func sum(workers map[int]stats.WorkerStats) stats.WorkerStats {
	var total stats.WorkerStats
	for _, w := range workers {
		total.RequestsSent += w.RequestsSent
		total.InFlight += w.InFlight
		total.Counters.Merge(w.Counters)
		total.Elapsed = max(total.Elapsed, w.Elapsed)
	}
	return total
}

func (m Model) View() string {
	s := strings.Builder{}

	t := m.Totals
	done := t.Total()
	errRate := 0.0
	if done > 0 {
		errRate = float64(t.NonSuccess()) / float64(done) * 100
	}

	col1 := fmt.Sprintf("SENT: %s\nINF:  %s", humanize.Comma(int64(t.RequestsSent)), humanize.Comma(int64(t.InFlight)))
	col2 := fmt.Sprintf("ERR:  %.2f%%\nFAIL: %s", errRate, humanize.Comma(int64(t.NonSuccess())))
	col3 := fmt.Sprintf("2xx: %d  3xx: %d\n4xx: %d  5xx: %d\nTIMEOUT: %d  OTHER: %d",
		t.Successful, t.Redirection, t.ClientError, t.ServerError, t.Timeouts, t.OtherError)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRate(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	if m.Latency != nil {
		lat := m.Latency.Summary()
		latencies := fmt.Sprintf(
			"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
			lat.P50Ms, lat.P90Ms, lat.P99Ms, lat.MaxMs,
		)
		s.WriteString(styles.Box.Width(max(m.Width-4, 0)).Render(latencies))
		s.WriteString("\n\n")
	}

	s.WriteString(m.Progress.View())

	return s.String()
}
