// Package directory provides entry mappers for Active Directory users,
// groups and organizational units.
//
// The mappers only describe attributes; fetching entries and sending the
// resulting modify requests is left to the ldap package.
package directory

import (
	"regexp"

	"github.com/isometry/entrysync/internal/entry"
)

// sAMAccountName length limits.
const (
	userSAMAccountNameLimit  = 20
	groupSAMAccountNameLimit = 64
)

var samAccountNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// childDN names an object below container, or below baseDN when container
// is empty. The RDN value is escaped.
func childDN(rdn, name, container, baseDN string) string {
	if container == "" {
		container = baseDN
	}
	return entry.CreateDN(rdn, entry.EscapeDNValue(name), container)
}

// parentOf returns the normalized parent of dn, or "" when dn has none.
func parentOf(dn string) string {
	parent, err := entry.ParentDN(dn)
	if err != nil {
		return ""
	}
	return parent
}

// samAccountName returns sam, or name when sam is empty and name is usable
// as a SAM account name within limit characters.
func samAccountName(sam, name string, limit int) string {
	if sam != "" {
		return sam
	}
	if len(name) > limit || !samAccountNameRegex.MatchString(name) {
		return ""
	}
	return name
}
