package ldap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/entrysync/internal/entry"
)

// unreachablePool fails every Get.
type unreachablePool struct {
	err    error
	gets   int
	closed bool
}

func (p *unreachablePool) Get(context.Context) (*PooledConnection, error) {
	p.gets++
	return nil, p.err
}

func (p *unreachablePool) Close() error {
	p.closed = true
	return nil
}

func (p *unreachablePool) Stats() PoolStats {
	return PoolStats{Errors: int64(p.gets)}
}

func (p *unreachablePool) HealthCheck(context.Context) error {
	return nil
}

func newUnreachableClient() (*client, *unreachablePool) {
	pool := &unreachablePool{err: NewConnectionError("failed to create connection after retries", true, errors.New("connection refused"))}
	config := DefaultConfig()
	config.InitialBackoff = time.Millisecond
	return &client{pool: pool, config: config}, pool
}

func TestNewClient(t *testing.T) {
	t.Run("configured URLs", func(t *testing.T) {
		config := DefaultConfig()
		config.LDAPURLs = []string{"ldaps://dc1.example.com:636"}

		c, err := NewClient(context.Background(), config)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		assert.Equal(t, int64(0), c.Stats().Active)
	})

	t.Run("no servers", func(t *testing.T) {
		_, err := NewClient(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create connection pool")
	})
}

func TestClient_Validation(t *testing.T) {
	c, pool := newUnreachableClient()
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		wantErr string
	}{
		{"nil search", func() error { _, err := c.Search(ctx, nil); return err }, "search request cannot be nil"},
		{"nil entry", func() error { return c.Add(ctx, nil) }, "entry with a DN is required"},
		{"entry without DN", func() error { return c.Add(ctx, entry.NewEntry("")) }, "entry with a DN is required"},
		{"nil modify", func() error { return c.Modify(ctx, nil) }, "modify request cannot be nil"},
		{
			name: "modify without DN",
			call: func() error {
				return c.Modify(ctx, &entry.ModifyRequest{Modifications: []entry.Modification{
					{Kind: entry.Replace, Attribute: entry.NewTextAttribute("description", "x")},
				}})
			},
			wantErr: "DN cannot be empty",
		},
		{"delete without DN", func() error { return c.Delete(ctx, "") }, "DN cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Zero(t, pool.gets, "invalid requests never reach the pool")
}

func TestClient_ModifyEmptyRequest(t *testing.T) {
	c, pool := newUnreachableClient()

	require.NoError(t, c.Modify(context.Background(), &entry.ModifyRequest{DN: "CN=Alice,DC=example,DC=com"}))
	assert.Zero(t, pool.gets)
}

func TestClient_PoolFailure(t *testing.T) {
	c, pool := newUnreachableClient()
	dn := "CN=Alice,DC=example,DC=com"

	err := c.Delete(context.Background(), dn)
	require.Error(t, err)

	var le *LDAPError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "delete", le.Operation)
	assert.Equal(t, dn, le.DN)
	assert.Equal(t, ErrorCategoryConnection, le.Category)
	assert.Equal(t, 1, pool.gets, "pool failures are not retried again by the client")
}

func TestClient_CloseAndStats(t *testing.T) {
	c, pool := newUnreachableClient()
	_ = c.Ping(context.Background())

	assert.Equal(t, int64(1), c.Stats().Errors)
	require.NoError(t, c.Close())
	assert.True(t, pool.closed)
}

func TestClient_WithRetry(t *testing.T) {
	retryable := ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))
	permanent := ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing"))

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{name: "success", errs: []error{nil}, wantCalls: 1},
		{name: "permanent failure", errs: []error{permanent}, wantCalls: 1, wantErr: permanent},
		{name: "recovers", errs: []error{retryable, retryable, nil}, wantCalls: 3},
		{name: "exhausted", errs: []error{retryable, retryable, retryable}, wantCalls: 3, wantErr: retryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &client{config: &ConnectionConfig{
				MaxRetries:     2,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     2 * time.Millisecond,
				BackoffFactor:  2.0,
			}}

			calls := 0
			err := c.withRetry(context.Background(), "modify", func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("exhausted retries are not retried again", func(t *testing.T) {
		c := &client{config: &ConnectionConfig{MaxRetries: 0}}
		err := c.withRetry(context.Background(), "search", func() error { return retryable })

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed after retries")
		assert.False(t, IsRetryableError(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		c := &client{config: &ConnectionConfig{MaxRetries: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffFactor: 2}}
		ctx, cancel := context.WithCancel(context.Background())

		err := c.withRetry(ctx, "search", func() error {
			cancel()
			return retryable
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWriteOutcome(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantUnknown   bool
	}{
		{name: "success"},
		{name: "busy is retried", err: ldap.NewError(ldap.LDAPResultBusy, errors.New("busy")), wantRetryable: true},
		{name: "unavailable is retried", err: ldap.NewError(ldap.LDAPResultUnavailable, errors.New("unavailable")), wantRetryable: true},
		{name: "lost connection", err: ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset")), wantUnknown: true},
		{name: "server down", err: ldap.NewError(ldap.LDAPResultServerDown, errors.New("down")), wantUnknown: true},
		{name: "permanent failure", err: ldap.NewError(ldap.LDAPResultAttributeOrValueExists, errors.New("exists"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeOutcome("modify", tt.err)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantRetryable, IsRetryableError(err))
			if tt.wantUnknown {
				assert.Contains(t, err.Error(), "modify outcome unknown")
			} else {
				assert.Same(t, tt.err, err)
			}
		})
	}

	t.Run("lost connection stops the retry loop", func(t *testing.T) {
		c := &client{config: &ConnectionConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2}}
		lost := ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset"))

		calls := 0
		err := c.withRetry(context.Background(), "add", func() error {
			calls++
			return writeOutcome("add", lost)
		})
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, lost)
	})
}

func TestSearchScope_String(t *testing.T) {
	assert.Equal(t, "base", ScopeBaseObject.String())
	assert.Equal(t, "one", ScopeSingleLevel.String())
	assert.Equal(t, "sub", ScopeWholeSubtree.String())
	assert.Equal(t, "unknown", SearchScope(42).String())

	assert.Equal(t, ldap.ScopeBaseObject, int(ScopeBaseObject))
	assert.Equal(t, ldap.ScopeWholeSubtree, int(ScopeWholeSubtree))
}
