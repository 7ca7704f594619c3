package ldap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// bind authenticates conn with the method selected by cfg.
func bind(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, server *ServerInfo) error {
	method := cfg.GetAuthMethod()
	start := time.Now()

	tflog.SubsystemDebug(ctx, "ldap", "Performing authentication", map[string]any{
		"auth_method": method.String(),
		"username":    cfg.Username,
	})

	var err error
	switch method {
	case AuthMethodNone:
		return nil
	case AuthMethodSimpleBind:
		err = conn.Bind(cfg.Username, cfg.Password)
	case AuthMethodKerberos:
		err = performKerberosAuth(ctx, conn, cfg, server)
	case AuthMethodExternal:
		err = conn.ExternalBind()
	default:
		err = fmt.Errorf("unsupported authentication method: %s", method)
	}

	if err != nil {
		LogLDAPError(ctx, "ldap", method.String()+"_bind", err, map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return err
	}

	tflog.SubsystemDebug(ctx, "ldap", "Authentication successful", map[string]any{
		"auth_method": method.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// pingConn reads the root DSE.
func pingConn(conn *ldap.Conn) error {
	req := ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext"},
		nil,
	)
	_, err := conn.Search(req)
	return err
}
