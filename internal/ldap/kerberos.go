package ldap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// performKerberosAuth performs a GSSAPI bind on conn. cfg is not modified.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, server *ServerInfo) error {
	kcfg := *cfg
	if err := prepareKerberosConfig(&kcfg); err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	krb5conf, cleanup, err := resolveKrb5Conf(ctx, &kcfg)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := createGSSAPIClient(ctx, &kcfg, krb5conf)
	if err != nil {
		LogKerberosEvent(ctx, "authentication_failed", map[string]any{
			"realm": kcfg.KerberosRealm,
			"error": err.Error(),
		})
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(&kcfg, server)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}
	LogKerberosEvent(ctx, "principal_resolved", map[string]any{
		"spn":   spn,
		"realm": kcfg.KerberosRealm,
	})

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	LogKerberosEvent(ctx, "ticket_acquired", map[string]any{
		"spn": spn,
	})
	return nil
}

// resolveKrb5Conf returns the krb5.conf path to use. An explicit path must
// exist. Without one, /etc/krb5.conf is used when present and otherwise a
// DNS-discovery configuration is written to a temporary file that cleanup
// removes.
func resolveKrb5Conf(ctx context.Context, cfg *ConnectionConfig) (string, func(), error) {
	noop := func() {}

	if cfg.KerberosConfig != "" {
		if !fileExists(cfg.KerberosConfig) {
			return "", noop, fmt.Errorf("kerberos configuration file not found at %s; "+
				"create it or leave the path empty to use DNS discovery. Example:\n%s",
				cfg.KerberosConfig, exampleKrb5Conf(cfg.KerberosRealm))
		}
		return cfg.KerberosConfig, noop, nil
	}

	if fileExists(defaultKrb5Conf) {
		return defaultKrb5Conf, noop, nil
	}

	content, err := generateRuntimeKrb5Conf(ctx, cfg)
	if err != nil {
		return "", noop, err
	}

	f, err := os.CreateTemp("", "entrysync-krb5-*.conf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}

	return f.Name(), cleanup, nil
}

// createGSSAPIClient picks credentials in order: explicit ccache, default
// ccache, explicit keytab, default keytab, password.
func createGSSAPIClient(ctx context.Context, cfg *ConnectionConfig, krb5conf string) (ldap.GSSAPIClient, error) {
	disableFAST := krb5client.DisablePAFXFAST(true)

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		LogKerberosEvent(ctx, "credentials_cached", map[string]any{"ccache": cfg.KerberosCCache})
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, disableFAST)
	}

	if ccache := getDefaultCCachePath(); fileExists(ccache) {
		LogKerberosEvent(ctx, "credentials_cached", map[string]any{"ccache": ccache})
		return gssapi.NewClientFromCCache(ccache, krb5conf, disableFAST)
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		LogKerberosEvent(ctx, "keytab_loaded", map[string]any{"keytab": cfg.KerberosKeytab})
		return gssapi.NewClientWithKeytab(cfg.Username, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, disableFAST)
	}

	if cfg.Username != "" {
		if keytab := getDefaultKeytabPath(); fileExists(keytab) {
			LogKerberosEvent(ctx, "keytab_loaded", map[string]any{"keytab": keytab})
			return gssapi.NewClientWithKeytab(cfg.Username, cfg.KerberosRealm, keytab, krb5conf, disableFAST)
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		return gssapi.NewClientWithPassword(cfg.Username, cfg.KerberosRealm, cfg.Password, krb5conf, disableFAST)
	}

	return nil, errors.New("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns cfg.KerberosSPN or ldap/<host>.
func buildServicePrincipal(cfg *ConnectionConfig, server *ServerInfo) (string, error) {
	if cfg == nil {
		return "", errors.New("configuration is required for service principal")
	}
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}
	if server == nil || server.Host == "" {
		return "", errors.New("hostname is required for service principal")
	}

	host, _, _ := strings.Cut(server.Host, ":")
	return "ldap/" + host, nil
}

// prepareKerberosConfig splits user@REALM principals and checks that some
// credential source is available.
func prepareKerberosConfig(cfg *ConnectionConfig) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}

	if user, realm, ok := strings.Cut(cfg.Username, "@"); ok && !strings.Contains(realm, "@") {
		cfg.Username = user
		if cfg.KerberosRealm == "" {
			cfg.KerberosRealm = realm
		}
	}

	if cfg.KerberosRealm == "" && cfg.Domain != "" {
		cfg.KerberosRealm = strings.ToUpper(cfg.Domain)
	}

	if cfg.KerberosRealm == "" {
		return errors.New("kerberos realm is required (set the realm, include it in the username, or configure a domain)")
	}
	if cfg.Username == "" && cfg.KerberosCCache == "" {
		return errors.New("username (principal) is required for Kerberos authentication")
	}

	hasCCache := (cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache)) || fileExists(getDefaultCCachePath())
	hasKeytab := (cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab)) || fileExists(getDefaultKeytabPath())
	if !hasCCache && !hasKeytab && cfg.Password == "" {
		return errors.New("no suitable Kerberos credentials found: provide a credential cache, keytab or password")
	}

	return nil
}

// getDefaultCCachePath honours KRB5CCNAME, else /tmp/krb5cc_<uid>.
func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// getDefaultKeytabPath honours KRB5_KTNAME, else /etc/krb5.keytab.
func getDefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
