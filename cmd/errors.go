package cmd

import (
	"fmt"

	"github.com/isometry/entrysync/internal/ldap"
)

// explain annotates directory errors that operators can usually fix
// themselves.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case ldap.IsAuthenticationError(err):
		return fmt.Errorf("%w (check username, password or Kerberos settings)", err)
	case ldap.IsPermissionError(err):
		return fmt.Errorf("%w (the bind account lacks rights on this entry)", err)
	case ldap.IsNotFoundError(err):
		return fmt.Errorf("%w (check the DN and base_dn)", err)
	}
	return err
}
