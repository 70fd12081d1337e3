package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"loadtest/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the local dummy target server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Dummy server running on http://localhost:%d\n", port)
		fmt.Fprintln(cmd.OutOrStdout(), "   Endpoints: /, /fast, /medium, /slow, /spike, /error, /status/{code}, /sleep/{duration}")
		return dummy.Serve(ctx, dummy.ServerConfig{Port: port})
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
}
