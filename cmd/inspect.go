package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"loadtest/internal/report"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect REPORT",
	Short: "Decode a run report and print its configuration and CDFs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run at: %s\n", time.Unix(0, r.RunTimestampUnixNanos).UTC().Format(time.RFC3339Nano))
		if c := r.Config; c != nil {
			fmt.Fprintf(out, "URL: %s\n", c.URL)
			fmt.Fprintf(out, "Method: %s\n", c.Method)
			fmt.Fprintf(out, "Throughput: %d requests/second\n", c.RequestsPerSecond)
			fmt.Fprintf(out, "Duration: %d seconds\n", c.DurationSecs)
			for _, h := range c.Headers {
				fmt.Fprintf(out, "Header: %s: %s\n", h.Name, h.Value)
			}
		}
		fmt.Fprintf(out, "Worker snapshots: %d\n", len(r.WorkerStats))
		report.PrintCDFs(out, r)
		return nil
	},
}
