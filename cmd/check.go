package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect, bind and report connection pool statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = e.close(cmd) }()

		if err := e.client.Ping(e.ctx); err != nil {
			return explain(fmt.Errorf("directory is not reachable: %w", err))
		}

		stats := e.client.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "OK")
		fmt.Fprintf(out, "  Pooled:      %t\n", e.cfg.Pool.Enabled)
		fmt.Fprintf(out, "  Idle:        %d\n", stats.Idle)
		fmt.Fprintf(out, "  Active:      %d\n", stats.Active)
		fmt.Fprintf(out, "  Created:     %d\n", stats.Created)
		fmt.Fprintf(out, "  Errors:      %d\n", stats.Errors)
		return nil
	},
}
