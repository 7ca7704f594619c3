/*
Package ldap is the directory transport for entrysync.

It turns the entry package's in-memory modify requests into LDAP operations
against Active Directory or any LDAPv3 server.

# Connections

NewClient builds a Client on a ConnectionPool:

  - servers come from LDAPURLs or, failing that, DNS SRV discovery on Domain
    (_ldaps._tcp, then _ldap._tcp, then _gc._tcp)
  - connections bind with a simple bind, GSSAPI (Kerberos) or a TLS client
    certificate, chosen by ConnectionConfig.GetAuthMethod
  - with Pooled unset every connection is closed on release
  - retryable failures are retried on a fresh connection with exponential
    backoff; writes are only retried when the server refused them as busy
    or unavailable

# Sessions

A Session carries the synchronization control flow:

	s := ldap.NewSession(client, ldap.WithMetrics(metrics))
	req, err := ldap.Sync(ctx, s, groups, group)

Sync fetches the entry with a base-object search, reconciles it through an
EntryMapper and applies the resulting request. Requests with no
modifications never reach the server.

# Errors

Transport failures are returned as *LDAPError with an ErrorCategory; use
IsNotFoundError, IsConflictError and friends to branch on them.

# Logging

Logging goes through tflog subsystems ("ldap", "pool", "kerberos") that
NewLoggingContext registers on a context. They hang off the JSON root
logger installed by NewRootLogger.
*/
package ldap
