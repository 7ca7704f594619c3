package config

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/entrysync/internal/ldap"
)

// ConnectionConfigFactory turns a Config into the connection settings used
// by the ldap package. Callers replace it to add settings Config does not
// carry, such as a custom *tls.Config.
type ConnectionConfigFactory func(*Config) (*ldap.ConnectionConfig, error)

// DefaultConnectionConfigFactory starts from ldap.DefaultConfig and copies
// every Config setting across.
func DefaultConnectionConfigFactory(cfg *Config) (*ldap.ConnectionConfig, error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}

	config := ldap.DefaultConfig()

	// Endpoints
	config.Domain = cfg.Domain
	if len(cfg.LDAPURLs) > 0 {
		config.LDAPURLs = append([]string(nil), cfg.LDAPURLs...)
	}
	config.BaseDN = cfg.BaseDN
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}

	// Authentication
	config.Username = cfg.Username
	config.Password = cfg.Password
	config.KerberosRealm = cfg.Kerberos.Realm
	config.KerberosKeytab = cfg.Kerberos.Keytab
	config.KerberosConfig = cfg.Kerberos.Config
	config.KerberosCCache = cfg.Kerberos.CCache
	config.KerberosSPN = cfg.Kerberos.SPN

	// TLS
	config.UseTLS = cfg.TLS.Enabled
	config.SkipTLS = cfg.TLS.Skip
	if cfg.TLS.InsecureSkipVerify {
		if config.TLSConfig == nil {
			config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		config.TLSConfig.InsecureSkipVerify = true
	}
	config.TLSCACertFile = cfg.TLS.CACertFile
	config.TLSCACert = cfg.TLS.CACert
	config.TLSClientCertFile = cfg.TLS.ClientCertFile
	config.TLSClientKeyFile = cfg.TLS.ClientKeyFile

	// Pooling
	config.Pooled = cfg.Pool.Enabled
	if cfg.Pool.MaxConnections > 0 {
		config.MaxConnections = cfg.Pool.MaxConnections
	}
	if cfg.Pool.MaxIdleTime > 0 {
		config.MaxIdleTime = cfg.Pool.MaxIdleTime
	}
	config.HealthCheck = cfg.Pool.HealthCheck

	// Retries
	if cfg.Retry.MaxRetries >= 0 {
		config.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.InitialBackoff > 0 {
		config.InitialBackoff = cfg.Retry.InitialBackoff
	}
	if cfg.Retry.MaxBackoff > 0 {
		config.MaxBackoff = cfg.Retry.MaxBackoff
	}
	if cfg.Retry.BackoffFactor >= 1 {
		config.BackoffFactor = cfg.Retry.BackoffFactor
	}

	return config, nil
}

// LoggingContext installs the root logger and the ldap subsystems at the
// configured level.
func (c *Config) LoggingContext(ctx context.Context) context.Context {
	ctx = ldap.NewRootLogger(ctx, c.LogLevel)
	ctx = ldap.NewLoggingContext(ctx, c.LogLevel)
	return tflog.SetField(ctx, "component", "entrysync")
}

// NewClient builds connection settings with factory, or the default factory
// when nil, and opens a client on them.
func NewClient(ctx context.Context, cfg *Config, factory ConnectionConfigFactory) (ldap.Client, error) {
	if factory == nil {
		factory = DefaultConnectionConfigFactory
	}

	connConfig, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection configuration: %w", err)
	}

	start := time.Now()
	client, err := ldap.NewClient(ctx, connConfig)
	if err != nil {
		tflog.Error(ctx, "Failed to create LDAP client", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, err
	}

	tflog.Debug(ctx, "LDAP client created", map[string]any{
		"pooled":      connConfig.Pooled,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return client, nil
}
