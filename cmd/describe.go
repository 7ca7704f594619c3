package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isometry/entrysync/internal/entry"
)

func init() {
	describeCmd.Flags().Bool("dry-run", false, "Print the modifications without applying them")
	rootCmd.AddCommand(describeCmd)
}

var describeCmd = &cobra.Command{
	Use:   "describe KIND DN DESCRIPTION",
	Short: "Set the description of an entry, sending only what changed",
	Long: `Loads the entry as a typed object, sets its description and reconciles the
object back onto the entry. Nothing is sent when the description already
matches. An empty DESCRIPTION removes the attribute.`,
	Args: dnArgs(3, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = e.close(cmd) }()

		k, err := lookupKind(args[0], e.cfg.BaseDN)
		if err != nil {
			return err
		}

		req, err := k.describe(e.ctx, e.session, args[1], args[2], dryRun)
		if err != nil {
			return explain(err)
		}

		printModifyRequest(cmd.OutOrStdout(), req, dryRun)
		return nil
	},
}

func printModifyRequest(w io.Writer, req *entry.ModifyRequest, dryRun bool) {
	if req.IsEmpty() {
		fmt.Fprintf(w, "%s: up to date\n", req.DN)
		return
	}

	verb := "applied"
	if dryRun {
		verb = "pending"
	}
	fmt.Fprintf(w, "%s: %d modification(s) %s\n", req.DN, len(req.Modifications), verb)
	for _, mod := range req.Modifications {
		fmt.Fprintf(w, "  %-7s %s %q\n", mod.Kind, mod.Attribute.Name, mod.Attribute.StringValues())
	}
}
