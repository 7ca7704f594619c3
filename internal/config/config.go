// Package config loads connection settings for the directory client from an
// optional configuration file and ENTRYSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable. Nested keys join with an
// underscore: pool.max_connections is ENTRYSYNC_POOL_MAX_CONNECTIONS.
const EnvPrefix = "ENTRYSYNC"

// Config is the bootstrap configuration for a directory connection.
type Config struct {
	Domain   string        `mapstructure:"domain"`
	LDAPURLs []string      `mapstructure:"ldap_urls"`
	BaseDN   string        `mapstructure:"base_dn"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout" default:"30s"`
	LogLevel string        `mapstructure:"log_level" default:"info"`

	TLS      TLSConfig      `mapstructure:"tls"`
	Kerberos KerberosConfig `mapstructure:"kerberos"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Retry    RetryConfig    `mapstructure:"retry"`
}

type TLSConfig struct {
	// Enabled upgrades ldap:// endpoints with StartTLS.
	Enabled            bool   `mapstructure:"enabled" default:"true"`
	Skip               bool   `mapstructure:"skip"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	CACertFile         string `mapstructure:"ca_cert_file"`
	CACert             string `mapstructure:"ca_cert"`
	ClientCertFile     string `mapstructure:"client_cert_file"`
	ClientKeyFile      string `mapstructure:"client_key_file"`
}

type KerberosConfig struct {
	Realm  string `mapstructure:"realm"`
	Keytab string `mapstructure:"keytab"`
	Config string `mapstructure:"config"`
	CCache string `mapstructure:"ccache"`
	SPN    string `mapstructure:"spn"`
}

// PoolConfig toggles connection pooling. A disabled pool closes every
// connection once the operation that used it completes.
type PoolConfig struct {
	Enabled        bool          `mapstructure:"enabled" default:"true"`
	MaxConnections int           `mapstructure:"max_connections" default:"10"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time" default:"5m"`
	HealthCheck    time.Duration `mapstructure:"health_check" default:"30s"`
}

type RetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" default:"3"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"500ms"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" default:"30s"`
	BackoffFactor  float64       `mapstructure:"backoff_factor" default:"2.0"`
}

// Default returns a Config holding only default values.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// Load reads path, when not empty, and then the environment. Environment
// values take precedence over the file, and both over the defaults. The file
// format follows its extension (yaml, json, toml).
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only answers for keys viper already knows, so every key
	// is bound up front for Unmarshal to see it.
	for _, key := range Keys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		trimSpaceHookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// trimSpaceHookFunc trims list items split from comma separated env values.
func trimSpaceHookFunc() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Slice || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
			return data, nil
		}
		items, ok := data.([]string)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}
}

// Keys lists every configuration key in dotted form, e.g. "tls.ca_cert".
func Keys() []string {
	return collectKeys(reflect.TypeOf(Config{}), "")
}

func collectKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			keys = append(keys, collectKeys(field.Type, name)...)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

// Validate reports configuration that cannot produce a working connection.
func (c *Config) Validate() error {
	var errs []error

	if c.Domain == "" && len(c.LDAPURLs) == 0 {
		errs = append(errs, errors.New("either domain or ldap_urls must be set"))
	}
	if c.TLS.CACertFile != "" && c.TLS.CACert != "" {
		errs = append(errs, errors.New("tls.ca_cert_file and tls.ca_cert are mutually exclusive"))
	}
	if (c.TLS.ClientCertFile == "") != (c.TLS.ClientKeyFile == "") {
		errs = append(errs, errors.New("tls.client_cert_file and tls.client_key_file must be set together"))
	}
	if c.LogLevel != "" && hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	if c.Pool.MaxConnections <= 0 {
		errs = append(errs, errors.New("pool.max_connections must be positive"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries cannot be negative"))
	}
	if c.Retry.BackoffFactor < 1 {
		errs = append(errs, errors.New("retry.backoff_factor must be at least 1"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
