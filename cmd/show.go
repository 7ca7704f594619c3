package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show KIND DN",
	Short: "Print a user, group or organizational unit as JSON",
	Args:  dnArgs(2, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = e.close(cmd) }()

		k, err := lookupKind(args[0], e.cfg.BaseDN)
		if err != nil {
			return err
		}

		obj, err := k.load(e.ctx, e.session, args[1])
		if err != nil {
			return explain(err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(obj)
	},
}
