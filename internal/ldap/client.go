package ldap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/entrysync/internal/entry"
)

type client struct {
	pool   ConnectionPool
	config *ConnectionConfig
}

// NewClient creates a Client backed by a ConnectionPool. ctx is used for
// logging by the pool's background work and should carry the subsystems
// from NewLoggingContext.
func NewClient(ctx context.Context, config *ConnectionConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Creating LDAP client", map[string]any{
		"domain":          config.Domain,
		"ldap_urls_count": len(config.LDAPURLs),
		"auth_method":     config.GetAuthMethod().String(),
		"use_tls":         config.UseTLS,
		"pooled":          config.Pooled,
	})

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		tflog.SubsystemError(ctx, SubsystemLDAP, "Failed to create connection pool", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &client{pool: pool, config: config}, nil
}

// Connect checks out a connection and reads the root DSE.
func (c *client) Connect(ctx context.Context) error {
	return LogOperation(ctx, SubsystemLDAP, "connection_test", map[string]any{
		"domain": c.config.Domain,
	}, func() error {
		pc, err := c.pool.Get(ctx)
		if err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		defer pc.Release()

		if err := pingConn(pc.Conn()); err != nil {
			return WrapError("ping", err)
		}
		return nil
	})
}

func (c *client) Close() error {
	return c.pool.Close()
}

// Search runs a single, unpaged search.
func (c *client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		return nil, errors.New("search request cannot be nil")
	}

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
		"size_limit": req.SizeLimit,
	}

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		int(req.DerefAliases),
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		nil,
	)

	var result *ldap.SearchResult
	err := c.withConn(ctx, "search", func(conn *ldap.Conn) error {
		var err error
		result, err = conn.Search(ldapReq)
		return err
	})
	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "search", err, fields)
		return nil, wrapWithDN("search", req.BaseDN, err)
	}

	fields["entries_found"] = len(result.Entries)
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Search completed", fields)

	return &SearchResult{
		Entries: result.Entries,
		HasMore: req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit,
	}, nil
}

// Add creates e with all of its non-empty attributes.
func (c *client) Add(ctx context.Context, e *entry.Entry) error {
	if e == nil || e.DN == "" {
		return errors.New("entry with a DN is required")
	}

	ldapReq := toLDAPAddRequest(e)
	err := c.withWrite(ctx, "add", func(conn *ldap.Conn) error {
		return conn.Add(ldapReq)
	})
	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "add", err, map[string]any{"dn": e.DN})
		return wrapWithDN("add", e.DN, err)
	}
	return nil
}

// Modify sends req's modifications, in order, as one modify operation.
// An empty request is not sent.
func (c *client) Modify(ctx context.Context, req *entry.ModifyRequest) error {
	if req == nil {
		return errors.New("modify request cannot be nil")
	}
	if req.IsEmpty() {
		return nil
	}
	if req.DN == "" {
		return errors.New("DN cannot be empty")
	}

	ldapReq := toLDAPModifyRequest(req)
	err := c.withWrite(ctx, "modify", func(conn *ldap.Conn) error {
		return conn.Modify(ldapReq)
	})
	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "modify", err, map[string]any{
			"dn":            req.DN,
			"modifications": len(req.Modifications),
		})
		return wrapWithDN("modify", req.DN, err)
	}
	return nil
}

func (c *client) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return errors.New("DN cannot be empty")
	}

	ldapReq := ldap.NewDelRequest(dn, nil)
	err := c.withWrite(ctx, "delete", func(conn *ldap.Conn) error {
		return conn.Del(ldapReq)
	})
	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "delete", err, map[string]any{"dn": dn})
		return wrapWithDN("delete", dn, err)
	}
	return nil
}

func (c *client) Ping(ctx context.Context) error {
	return c.withConn(ctx, "ping", pingConn)
}

func (c *client) Stats() PoolStats {
	return c.pool.Stats()
}

// withConn runs op on a pooled connection, retrying retryable failures on a
// fresh connection with exponential backoff. Connections that failed
// retryably are not returned to the pool.
func (c *client) withConn(ctx context.Context, operation string, op func(*ldap.Conn) error) error {
	return c.withRetry(ctx, operation, func() error {
		pc, err := c.pool.Get(ctx)
		if err != nil {
			// the pool has already retried across all servers
			return NewConnectionError("failed to get connection", false, err)
		}
		defer pc.Release()

		err = op(pc.Conn())
		if err != nil && IsRetryableError(err) {
			pc.healthy = false
		}
		return err
	})
}

// withWrite is withConn for writes that must not be sent twice. A busy or
// unavailable answer is sent before anything is applied and is retried. Any
// other retryable failure may have followed a write that reached the server,
// so it is returned without retrying.
func (c *client) withWrite(ctx context.Context, operation string, op func(*ldap.Conn) error) error {
	return c.withConn(ctx, operation, func(conn *ldap.Conn) error {
		return writeOutcome(operation, op(conn))
	})
}

func writeOutcome(operation string, err error) error {
	if err == nil || !IsRetryableError(err) {
		return err
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		switch resultErr.ResultCode {
		case ldap.LDAPResultBusy, ldap.LDAPResultUnavailable:
			return err
		}
	}
	return NewConnectionError(operation+" outcome unknown", false, err)
}

func (c *client) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tflog.SubsystemDebug(ctx, SubsystemLDAP, "Retrying operation", map[string]any{
				"operation":  operation,
				"attempt":    attempt,
				"max_retry":  c.config.MaxRetries,
				"last_error": lastErr.Error(),
			})
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				tflog.SubsystemInfo(ctx, SubsystemLDAP, "Operation succeeded after retries", map[string]any{
					"operation":      operation,
					"total_attempts": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return err
		}
		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	tflog.SubsystemError(ctx, SubsystemLDAP, "Operation failed after all retries", map[string]any{
		"operation":      operation,
		"total_attempts": c.config.MaxRetries + 1,
		"final_error":    lastErr.Error(),
	})
	return NewConnectionError(operation+" failed after retries", false, lastErr)
}

func wrapWithDN(operation, dn string, err error) error {
	var le *LDAPError
	if errors.As(err, &le) {
		return err
	}
	return NewLDAPError(operation, err).WithDN(dn)
}
