package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loadtest/internal/storage"
	"loadtest/internal/tui/styles"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("history-path")
		if path == "" {
			var err error
			if path, err = storage.DefaultPath(); err != nil {
				return err
			}
		}

		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		items, err := store.List(limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		fmt.Fprintln(out, historyTable(items))
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show, 0 for all")
}

func historyTable(items []storage.HistoryItem) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers("ID", "WHEN", "TARGET", "RATE", "REQUESTS", "NON-SUCCESS", "P99 MS", "REPORT")

	for _, it := range items {
		t.Row(
			it.ID[:min(len(it.ID), 8)],
			humanize.Time(it.Timestamp),
			it.Method+" "+it.URL,
			fmt.Sprintf("%s/s x %ds", it.RequestsPerSecond, it.DurationSecs),
			humanize.Comma(int64(it.Summary.Requests)),
			humanize.Comma(int64(it.Summary.NonSuccess)),
			fmt.Sprintf("%.2f", it.Summary.P99Ms),
			it.ReportPath,
		)
	}
	return t.String()
}
