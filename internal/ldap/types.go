package ldap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/entrysync/internal/entry"
)

// ConnectionConfig holds configuration for directory connections.
type ConnectionConfig struct {
	// Endpoints
	Domain   string        // Domain for SRV discovery
	LDAPURLs []string      // Direct LDAP URLs (overrides domain)
	BaseDN   string        // Base DN for searches
	Timeout  time.Duration // Dial and operation timeout

	// Authentication
	Username       string // Bind DN, UPN or Kerberos principal
	Password       string
	KerberosRealm  string
	KerberosKeytab string // Path to keytab
	KerberosConfig string // Path to krb5.conf; generated at runtime when empty and /etc/krb5.conf is missing
	KerberosCCache string // Path to credential cache
	KerberosSPN    string // Overrides the ldap/<host> service principal

	// TLS
	TLSConfig         *tls.Config
	UseTLS            bool // StartTLS on ldap:// endpoints
	SkipTLS           bool
	TLSCACertFile     string
	TLSCACert         string // PEM content
	TLSClientCertFile string
	TLSClientKeyFile  string

	// Pooling. When Pooled is false every released connection is closed.
	Pooled         bool
	MaxConnections int
	MaxIdleTime    time.Duration
	HealthCheck    time.Duration

	// Retries
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Timeout:        30 * time.Second,
		UseTLS:         true,
		Pooled:         true,
		MaxConnections: 10,
		MaxIdleTime:    5 * time.Minute,
		HealthCheck:    30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// PooledConnection is a connection checked out of a ConnectionPool.
// Release hands it back.
type PooledConnection struct {
	conn          *ldap.Conn
	serverInfo    *ServerInfo
	lastUsed      time.Time
	healthy       bool
	authenticated bool
	authTime      time.Time
	release       func(*PooledConnection)
}

// ServerInfo describes one directory server endpoint.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// ConnectionPool hands out authenticated connections.
type ConnectionPool interface {
	Get(ctx context.Context) (*PooledConnection, error)
	Close() error
	Stats() PoolStats
	HealthCheck(ctx context.Context) error
}

// PoolStats provides statistics about the connection pool.
type PoolStats struct {
	Idle    int
	Active  int64
	Created int64
	Errors  int64
	Uptime  time.Duration
}

// Client is the directory transport consumed by Session.
type Client interface {
	Connect(ctx context.Context) error
	Close() error

	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	Add(ctx context.Context, e *entry.Entry) error
	Modify(ctx context.Context, req *entry.ModifyRequest) error
	Delete(ctx context.Context, dn string) error

	Ping(ctx context.Context) error
	Stats() PoolStats
}

// SearchRequest encapsulates search parameters.
type SearchRequest struct {
	BaseDN       string
	Scope        SearchScope
	Filter       string
	Attributes   []string
	SizeLimit    int
	TimeLimit    time.Duration
	DerefAliases DerefAliases
}

// SearchResult contains search results.
type SearchResult struct {
	Entries []*ldap.Entry
	HasMore bool
}

// SearchScope defines the search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// DerefAliases defines alias dereferencing behavior.
type DerefAliases int

const (
	NeverDerefAliases DerefAliases = iota
	DerefInSearching
	DerefFindingBaseObj
	DerefAlways
)

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodNone       AuthMethod = iota // Anonymous
	AuthMethodSimpleBind                   // Username/password
	AuthMethodKerberos                     // GSSAPI
	AuthMethodExternal                     // TLS client certificate
)

func (a AuthMethod) String() string {
	switch a {
	case AuthMethodNone:
		return "none"
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	case AuthMethodExternal:
		return "external"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the authentication method from the configuration.
// Kerberos takes precedence over simple bind, which takes precedence over
// client certificates.
func (c *ConnectionConfig) GetAuthMethod() AuthMethod {
	switch {
	case c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.Username != ""):
		return AuthMethodKerberos
	case c.Username != "" && c.Password != "":
		return AuthMethodSimpleBind
	case c.TLSClientCertFile != "" && c.TLSClientKeyFile != "":
		return AuthMethodExternal
	default:
		return AuthMethodNone
	}
}

// HasAuthentication reports whether any authentication method is configured.
func (c *ConnectionConfig) HasAuthentication() bool {
	return c.GetAuthMethod() != AuthMethodNone
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}
