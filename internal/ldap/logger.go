package ldap

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
)

// Log subsystems and the environment variables that set their levels.
const (
	SubsystemLDAP     = "ldap"
	SubsystemPool     = "pool"
	SubsystemKerberos = "kerberos"

	logLevelEnvPrefix = "ENTRYSYNC_LOG_"

	rootLoggerName  = "entrysync"
	rootLogLevelEnv = "ENTRYSYNC_LOG"
)

// NewRootLogger installs the JSON root logger that subsystems hang off.
// Without one, every subsystem call is a no-op. ENTRYSYNC_LOG overrides
// level; with neither set the root logs at trace and subsystems filter
// independently.
func NewRootLogger(ctx context.Context, level string) context.Context {
	if lvl := hclog.LevelFromString(level); lvl != hclog.NoLevel && os.Getenv(rootLogLevelEnv) == "" {
		return tfsdklog.NewRootProviderLogger(ctx,
			tfsdklog.WithLogName(rootLoggerName),
			tfsdklog.WithLevel(lvl),
			tfsdklog.WithoutLocation(),
		)
	}
	return tfsdklog.NewRootProviderLogger(ctx,
		tfsdklog.WithLogName(rootLoggerName),
		tfsdklog.WithLevelFromEnv(rootLogLevelEnv),
		tfsdklog.WithoutLocation(),
	)
}

// NewLoggingContext registers the ldap, pool and kerberos subsystems on
// ctx. A recognised level ("trace" through "error") applies to all three;
// otherwise each reads ENTRYSYNC_LOG_LDAP, ENTRYSYNC_LOG_POOL or
// ENTRYSYNC_LOG_KERBEROS.
func NewLoggingContext(ctx context.Context, level string) context.Context {
	lvl := hclog.LevelFromString(level)

	for _, subsystem := range []string{SubsystemLDAP, SubsystemPool, SubsystemKerberos} {
		opt := tflog.WithLevelFromEnv(logLevelEnvPrefix + strings.ToUpper(subsystem))
		if lvl != hclog.NoLevel {
			opt = tflog.WithLevel(lvl)
		}
		ctx = tflog.NewSubsystem(ctx, subsystem, opt, tflog.WithRootFields())
	}
	return tflog.SubsystemMaskFieldValuesWithFieldKeys(ctx, SubsystemLDAP, "password")
}

// LogOperation runs fn and logs its start, duration and outcome.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, subsystem, "Operation failed", fields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed", fields)
	}

	return err
}

// LogPerformance logs duration at a level that rises with it.
func LogPerformance(ctx context.Context, subsystem, operation string, duration time.Duration, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()

	switch {
	case duration > 5*time.Second:
		tflog.SubsystemWarn(ctx, subsystem, "Slow operation detected", fields)
	case duration > time.Second:
		tflog.SubsystemInfo(ctx, subsystem, "Operation performance", fields)
	default:
		tflog.SubsystemDebug(ctx, subsystem, "Operation performance", fields)
	}
}

// LogLDAPError logs err with the result code, matched DN and diagnostic
// message when err carries an LDAP result.
func LogLDAPError(ctx context.Context, subsystem, operation string, err error, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation
	fields["error"] = err.Error()

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		fields["ldap_result_code"] = resultErr.ResultCode
		if resultErr.MatchedDN != "" {
			fields["ldap_matched_dn"] = resultErr.MatchedDN
		}
		if resultErr.Err != nil {
			fields["ldap_diagnostic_message"] = resultErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, subsystem, "LDAP operation failed", SanitizeFields(fields))
}

// LogConnectionEvent logs a connection lifecycle event.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	fields = withEvent(fields, event)

	switch event {
	case "connection_established", "authentication_success":
		tflog.SubsystemInfo(ctx, SubsystemLDAP, "Connection event", fields)
	case "connection_failed", "authentication_failed", "connection_lost":
		tflog.SubsystemError(ctx, SubsystemLDAP, "Connection event", fields)
	default:
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Connection event", fields)
	}
}

// LogKerberosEvent logs a Kerberos event.
func LogKerberosEvent(ctx context.Context, event string, fields map[string]any) {
	fields = withEvent(fields, event)

	switch event {
	case "ticket_acquired", "keytab_loaded", "credentials_cached":
		tflog.SubsystemInfo(ctx, SubsystemKerberos, "Kerberos event", fields)
	case "authentication_failed":
		tflog.SubsystemError(ctx, SubsystemKerberos, "Kerberos event", fields)
	default:
		tflog.SubsystemDebug(ctx, SubsystemKerberos, "Kerberos event", fields)
	}
}

// LogPoolEvent logs a connection pool event.
func LogPoolEvent(ctx context.Context, event string, fields map[string]any) {
	fields = withEvent(fields, event)

	switch event {
	case "connection_failed", "health_check_failed":
		tflog.SubsystemWarn(ctx, SubsystemPool, "Pool event", fields)
	case "pool_initialized", "pool_closed":
		tflog.SubsystemDebug(ctx, SubsystemPool, "Pool event", fields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemPool, "Pool event", fields)
	}
}

func withEvent(fields map[string]any, event string) map[string]any {
	fields = SanitizeFields(fields)
	fields["event"] = event
	return fields
}

var sensitiveKeys = map[string]bool{
	"password":    true,
	"passwd":      true,
	"secret":      true,
	"token":       true,
	"key":         true,
	"private_key": true,
	"credential":  true,
	"credentials": true,
}

var sensitivePatterns = []string{"password=", "passwd=", "secret=", "token=", "key="}

// SanitizeFields returns a copy of fields with secrets redacted.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields)+1)

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok && containsSensitivePattern(s) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func containsSensitivePattern(s string) bool {
	return containsAny(strings.ToLower(s), sensitivePatterns...)
}
