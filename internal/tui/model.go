// Package tui follows a running load test in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"loadtest/internal/banner"
	"loadtest/internal/config"
	"loadtest/internal/runner"
	"loadtest/internal/stats"
	"loadtest/internal/tui/live"
	"loadtest/internal/tui/styles"
)

type doneMsg struct{}

type Model struct {
	cfg     *config.Config
	plan    runner.Plan
	live    live.Model
	updates runner.StatsUpdateChan
	stop    <-chan struct{}
	cancel  context.CancelFunc

	Finished bool
	Quitting bool
}

func NewModel(cfg *config.Config, plan runner.Plan, updates runner.StatsUpdateChan, latency *stats.SafeHistogram, stop <-chan struct{}, cancel context.CancelFunc) Model {
	return Model{
		cfg:     cfg,
		plan:    plan,
		live:    live.NewModel(cfg.Duration, latency),
		updates: updates,
		stop:    stop,
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.updates:
			return s
		case <-m.stop:
			return doneMsg{}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
			m.Quitting = true
			return m, tea.Quit
		}
		return m, nil

	case doneMsg:
		m.Finished = true
		return m, tea.Quit

	case stats.WorkerStats:
		var cmd tea.Cmd
		m.live, cmd = m.live.Update(msg)
		return m, tea.Batch(cmd, m.waitForUpdate())
	}

	var cmd tea.Cmd
	m.live, cmd = m.live.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Quitting {
		return "Waiting for in-flight requests to finish...\n"
	}

	s := strings.Builder{}
	s.WriteString(banner.GetString())
	s.WriteString("\n")
	s.WriteString(styles.Title.Render(fmt.Sprintf("%s %s", m.cfg.Method, m.cfg.URL)))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"%s req/s for %s | %d workers | %d requests planned | %s",
		m.cfg.RequestsPerSecond, m.cfg.Duration, m.plan.Workers,
		m.plan.PerWorker*uint64(m.plan.Workers), m.cfg.Protocol,
	)))
	s.WriteString("\n\n")
	s.WriteString(m.live.View())
	s.WriteString("\n\n")
	if m.Finished {
		s.WriteString(styles.Success.Render("Done."))
	} else {
		s.WriteString(styles.RenderKey("q", "stop watching"))
	}
	s.WriteString("\n")

	return s.String()
}

// Run executes r while rendering its snapshots. Quitting the UI does not
// interrupt workers that are already running; Run still waits for them.
func Run(ctx context.Context, cfg *config.Config, r *runner.Runner, updates runner.StatsUpdateChan, latency *stats.SafeHistogram) (*runner.RunResult, error) {
	plan, err := r.Plan()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		res    *runner.RunResult
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res, runErr = r.Run(ctx)
	}()

	p := tea.NewProgram(NewModel(cfg, plan, updates, latency, finished, cancel))
	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("terminal UI failed: %w", err)
	}

	<-finished
	return res, runErr
}
