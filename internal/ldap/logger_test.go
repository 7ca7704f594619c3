package ldap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tflogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level string) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	ctx := tflogtest.RootLogger(context.Background(), &buf)
	return NewLoggingContext(ctx, level), &buf
}

func decodeLogs(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	entries, err := tflogtest.MultilineJSONDecode(buf)
	require.NoError(t, err)
	return entries
}

func TestNewLoggingContext_Level(t *testing.T) {
	ctx, buf := captureLogs(t, "warn")

	tflog.SubsystemInfo(ctx, SubsystemLDAP, "hidden")
	tflog.SubsystemDebug(ctx, SubsystemPool, "hidden")
	tflog.SubsystemWarn(ctx, SubsystemKerberos, "shown")

	entries := decodeLogs(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["@message"])
	assert.Equal(t, "provider.kerberos", entries[0]["@module"])
}

func TestNewLoggingContext_LevelFromEnv(t *testing.T) {
	t.Setenv("ENTRYSYNC_LOG_POOL", "ERROR")
	ctx, buf := captureLogs(t, "")

	tflog.SubsystemWarn(ctx, SubsystemPool, "hidden")
	tflog.SubsystemTrace(ctx, SubsystemLDAP, "shown")

	entries := decodeLogs(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "provider.ldap", entries[0]["@module"])
}

func TestNewLoggingContext_MasksPassword(t *testing.T) {
	ctx, buf := captureLogs(t, "trace")

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "binding", map[string]any{
		"username": "svc-entrysync",
		"password": "hunter2",
	})

	entries := decodeLogs(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "svc-entrysync", entries[0]["username"])
	assert.Equal(t, "***", entries[0]["password"])
}

func TestLogOperation(t *testing.T) {
	ctx, buf := captureLogs(t, "debug")
	cause := errors.New("boom")

	err := LogOperation(ctx, SubsystemLDAP, "connection_test", nil, func() error { return cause })
	assert.ErrorIs(t, err, cause)

	entries := decodeLogs(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Starting operation", entries[0]["@message"])
	assert.Equal(t, "Operation failed", entries[1]["@message"])
	assert.Equal(t, "error", entries[1]["@level"])
	assert.Equal(t, "boom", entries[1]["error"])
	assert.Equal(t, "connection_test", entries[1]["operation"])
}

func TestLogPerformance(t *testing.T) {
	tests := []struct {
		duration time.Duration
		level    string
	}{
		{10 * time.Millisecond, "debug"},
		{2 * time.Second, "info"},
		{6 * time.Second, "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.duration.String(), func(t *testing.T) {
			ctx, buf := captureLogs(t, "trace")
			LogPerformance(ctx, SubsystemLDAP, "apply", tt.duration, nil)

			entries := decodeLogs(t, buf)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0]["@level"])
			assert.InDelta(t, float64(tt.duration.Milliseconds()), entries[0]["duration_ms"], 0)
		})
	}
}

func TestLogLDAPError(t *testing.T) {
	ctx, buf := captureLogs(t, "trace")

	err := &ldap.Error{
		ResultCode: ldap.LDAPResultNoSuchObject,
		MatchedDN:  "OU=Users,DC=example,DC=com",
		Err:        errors.New("0000208D: NameErr: DSID-03100288"),
	}
	LogLDAPError(ctx, SubsystemLDAP, "modify", err, map[string]any{
		"dn":     "CN=Alice,OU=Users,DC=example,DC=com",
		"secret": "s3cr3t",
	})

	entries := decodeLogs(t, buf)
	require.Len(t, entries, 1)
	assert.InDelta(t, float64(ldap.LDAPResultNoSuchObject), entries[0]["ldap_result_code"], 0)
	assert.Equal(t, "OU=Users,DC=example,DC=com", entries[0]["ldap_matched_dn"])
	assert.Equal(t, "0000208D: NameErr: DSID-03100288", entries[0]["ldap_diagnostic_message"])
	assert.Equal(t, "[REDACTED]", entries[0]["secret"])
}

func TestEventLevels(t *testing.T) {
	tests := []struct {
		name   string
		log    func(context.Context)
		module string
		level  string
	}{
		{"connection established", func(ctx context.Context) { LogConnectionEvent(ctx, "connection_established", nil) }, "provider.ldap", "info"},
		{"connection failed", func(ctx context.Context) { LogConnectionEvent(ctx, "connection_failed", nil) }, "provider.ldap", "error"},
		{"ticket acquired", func(ctx context.Context) { LogKerberosEvent(ctx, "ticket_acquired", nil) }, "provider.kerberos", "info"},
		{"principal resolved", func(ctx context.Context) { LogKerberosEvent(ctx, "principal_resolved", nil) }, "provider.kerberos", "debug"},
		{"health check failed", func(ctx context.Context) { LogPoolEvent(ctx, "health_check_failed", nil) }, "provider.pool", "warn"},
		{"connection released", func(ctx context.Context) { LogPoolEvent(ctx, "connection_released", nil) }, "provider.pool", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, buf := captureLogs(t, "trace")
			tt.log(ctx)

			entries := decodeLogs(t, buf)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.module, entries[0]["@module"])
			assert.Equal(t, tt.level, entries[0]["@level"])
		})
	}
}

func TestSanitizeFields(t *testing.T) {
	in := map[string]any{
		"Password":   "hunter2",
		"token":      "abc",
		"filter":     "(uid=alice)",
		"bind_dn":    "CN=svc,DC=example,DC=com",
		"connection": "ldap://dc1?password=hunter2",
		"count":      3,
	}

	got := SanitizeFields(in)

	assert.Equal(t, map[string]any{
		"Password":   "[REDACTED]",
		"token":      "[REDACTED]",
		"filter":     "(uid=alice)",
		"bind_dn":    "CN=svc,DC=example,DC=com",
		"connection": "[REDACTED]",
		"count":      3,
	}, got)
	assert.Equal(t, "hunter2", in["Password"], "input is not modified")
	assert.Empty(t, SanitizeFields(nil))
}
