package ldap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// generateRuntimeKrb5Conf renders a krb5.conf that locates KDCs through DNS
// SRV records. The domain_realm mapping uses cfg.Domain when set.
func generateRuntimeKrb5Conf(ctx context.Context, cfg *ConnectionConfig) (string, error) {
	if cfg.KerberosRealm == "" {
		return "", errors.New("kerberos realm is required for DNS discovery")
	}

	realm := strings.ToUpper(cfg.KerberosRealm)
	domain := strings.ToLower(cfg.KerberosRealm)
	if cfg.Domain != "" {
		domain = strings.ToLower(cfg.Domain)
	}

	tflog.SubsystemDebug(ctx, "ldap", "Generating runtime krb5.conf", map[string]any{
		"realm":  realm,
		"domain": domain,
	})

	return fmt.Sprintf(`[libdefaults]
    default_realm = %[1]s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false
    forwardable = true

[realms]
    %[1]s = {
    }

[domain_realm]
    .%[2]s = %[1]s
    %[2]s = %[1]s
`, realm, domain), nil
}

// exampleKrb5Conf is shown in errors about a missing krb5.conf.
func exampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "EXAMPLE.COM"
	}
	realm = strings.ToUpper(realm)
	domain := strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %[1]s

[realms]
    %[1]s = {
        kdc = dc.%[2]s:88
    }

[domain_realm]
    .%[2]s = %[1]s`, realm, domain)
}
