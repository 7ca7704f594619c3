package cmd

import (
	"fmt"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/spf13/cobra"
)

// dnArgs checks the argument count and that the argument at pos is a
// distinguished name, so malformed input fails before any connection is made.
func dnArgs(n, pos int) cobra.PositionalArgs {
	return cobra.MatchAll(cobra.ExactArgs(n), func(cmd *cobra.Command, args []string) error {
		return validateDN(args[pos])
	})
}

func validateDN(dn string) error {
	if dn == "" {
		return fmt.Errorf("invalid distinguished name %q: DN cannot be empty", dn)
	}
	if _, err := goldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid distinguished name %q: %w", dn, err)
	}
	return nil
}
