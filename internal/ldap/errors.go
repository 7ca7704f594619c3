package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory groups LDAP failures by how a caller should react.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// LDAPError decorates a transport failure with its operation, category and
// the DN involved.
type LDAPError struct {
	Operation string
	Category  ErrorCategory
	LDAPCode  uint16
	Message   string
	ServerMsg string
	DN        string
	Retryable bool
	Cause     error
}

func (e *LDAPError) Error() string {
	var b strings.Builder

	b.WriteString("LDAP " + e.Operation + " failed")
	if e.LDAPCode > 0 {
		fmt.Fprintf(&b, " (code %d)", e.LDAPCode)
	}
	if e.Message != "" {
		b.WriteString(" - " + e.Message)
	}
	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		b.WriteString(" - server: " + e.ServerMsg)
	}
	if e.DN != "" {
		b.WriteString(" - DN: " + e.DN)
	}
	return b.String()
}

func (e *LDAPError) IsRetryable() bool {
	return e.Retryable
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// NewLDAPError classifies err. It returns nil for a nil err.
func NewLDAPError(operation string, err error) *LDAPError {
	if err == nil {
		return nil
	}

	le := &LDAPError{
		Operation: operation,
		Cause:     err,
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		class := resultCodes[resultErr.ResultCode]
		le.LDAPCode = resultErr.ResultCode
		if resultErr.Err != nil {
			le.ServerMsg = resultErr.Err.Error()
		}
		le.Category = class.category()
		le.Retryable = class.retryable
		le.Message = ldapCodeMessage(resultErr.ResultCode)
		return le
	}

	le.Category = categorizeGenericError(err)
	le.Retryable = isGenericErrorRetryable(err)
	le.Message = err.Error()
	return le
}

// WithDN records the DN the operation targeted.
func (e *LDAPError) WithDN(dn string) *LDAPError {
	e.DN = dn
	return e
}

// codeClass is how a result code is reported and whether it is retried.
type codeClass struct {
	cat       ErrorCategory
	retryable bool
}

func (c codeClass) category() ErrorCategory {
	if c.cat == "" {
		return ErrorCategoryUnknown
	}
	return c.cat
}

var resultCodes = map[uint16]codeClass{
	ldap.LDAPResultInvalidCredentials:          {cat: ErrorCategoryAuthentication},
	ldap.LDAPResultInappropriateAuthentication: {cat: ErrorCategoryAuthentication},
	ldap.LDAPResultStrongAuthRequired:          {cat: ErrorCategoryAuthentication},

	ldap.LDAPResultInsufficientAccessRights: {cat: ErrorCategoryPermission},
	ldap.LDAPResultUnwillingToPerform:       {cat: ErrorCategoryPermission},

	ldap.LDAPResultNoSuchObject:           {cat: ErrorCategoryNotFound},
	ldap.LDAPResultNoSuchAttribute:        {cat: ErrorCategoryNotFound},
	ldap.LDAPResultUndefinedAttributeType: {cat: ErrorCategoryNotFound},

	ldap.LDAPResultEntryAlreadyExists:     {cat: ErrorCategoryConflict},
	ldap.LDAPResultAttributeOrValueExists: {cat: ErrorCategoryConflict},
	ldap.LDAPResultObjectClassViolation:   {cat: ErrorCategoryConflict},
	ldap.LDAPResultNotAllowedOnNonLeaf:    {cat: ErrorCategoryConflict},

	ldap.LDAPResultInvalidAttributeSyntax: {cat: ErrorCategoryValidation},
	ldap.LDAPResultConstraintViolation:    {cat: ErrorCategoryValidation},
	ldap.LDAPResultInvalidDNSyntax:        {cat: ErrorCategoryValidation},
	ldap.LDAPResultNamingViolation:        {cat: ErrorCategoryValidation},

	ldap.LDAPResultAdminLimitExceeded: {cat: ErrorCategoryServer},
	ldap.LDAPResultServerDown:         {cat: ErrorCategoryServer, retryable: true},
	ldap.LDAPResultUnavailable:        {cat: ErrorCategoryServer, retryable: true},
	ldap.LDAPResultBusy:               {cat: ErrorCategoryServer, retryable: true},
	ldap.LDAPResultTimeLimitExceeded:  {cat: ErrorCategoryServer, retryable: true},

	ldap.LDAPResultProtocolError: {cat: ErrorCategoryConnection},
	ldap.ErrorNetwork:            {cat: ErrorCategoryConnection, retryable: true},
}

func categorizeError(code uint16) ErrorCategory {
	return resultCodes[code].category()
}

// Keyword rules for errors that carry no result code, checked in order.
var genericCategories = []struct {
	category ErrorCategory
	keywords []string
}{
	{ErrorCategoryConnection, []string{"connection", "network", "timeout", "broken pipe"}},
	{ErrorCategoryAuthentication, []string{"authentication", "credentials", "password"}},
	{ErrorCategoryPermission, []string{"permission", "access", "denied"}},
}

var retryableKeywords = []string{"connection", "timeout", "network", "broken pipe", "temporary"}

func categorizeGenericError(err error) ErrorCategory {
	msg := strings.ToLower(err.Error())
	for _, rule := range genericCategories {
		if containsAny(msg, rule.keywords...) {
			return rule.category
		}
	}
	return ErrorCategoryUnknown
}

func isGenericErrorRetryable(err error) bool {
	return containsAny(strings.ToLower(err.Error()), retryableKeywords...)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ldapCodeMessage returns go-ldap's text for code.
func ldapCodeMessage(code uint16) string {
	if msg, ok := ldap.LDAPResultCodeMap[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown LDAP error (code %d)", code)
}

// WrapError classifies err under operation unless it already is an
// *LDAPError.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var le *LDAPError
	if errors.As(err, &le) {
		if le.Operation == "" {
			le.Operation = operation
		}
		return err
	}

	return NewLDAPError(operation, err)
}

// IsRetryableError reports whether err is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return resultCodes[resultErr.ResultCode].retryable
	}

	return isGenericErrorRetryable(err)
}

// GetErrorCategory returns the category of err.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var le *LDAPError
	if errors.As(err, &le) {
		return le.Category
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return categorizeError(resultErr.ResultCode)
	}

	return categorizeGenericError(err)
}

func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

func IsConflictError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConflict
}

func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

func IsPermissionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryPermission
}
