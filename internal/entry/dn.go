package entry

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// CreateDN joins rdn=value with baseDN. The value is used verbatim; callers
// escape reserved characters with EscapeDNValue first.
func CreateDN(rdn, value, baseDN string) string {
	return rdn + "=" + value + "," + baseDN
}

// RDNValue returns the value of the leading naming component of dn, trimmed
// of surrounding whitespace. A dn without '=' is returned unchanged.
func RDNValue(dn string) string {
	eq := strings.IndexByte(dn, '=')
	if eq < 0 {
		return dn
	}
	rest := dn[eq+1:]
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		rest = rest[:comma]
	}
	return strings.TrimSpace(rest)
}

// EscapeDNValue escapes a DN attribute value according to RFC 4514:
// , + " \ < > ; anywhere, # at the start, spaces at either end and NUL.
func EscapeDNValue(value string) string {
	if !NeedsDNEscaping(value) {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	last := len(value) - 1
	for i, r := range value {
		switch {
		case strings.ContainsRune(`,+"\<>;`, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '#' && i == 0, r == ' ' && (i == 0 || i == last):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == 0:
			b.WriteString(`\00`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NeedsDNEscaping reports whether EscapeDNValue would change value.
func NeedsDNEscaping(value string) bool {
	if value == "" {
		return false
	}
	if value[0] == ' ' || value[0] == '#' || value[len(value)-1] == ' ' {
		return true
	}
	return strings.ContainsAny(value, ",+\"\\<>;\x00")
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

// UnescapeDNValue reverses EscapeDNValue, including \XX hex pairs. A trailing
// lone backslash is kept.
func UnescapeDNValue(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}

	out := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i == len(value)-1 {
			out = append(out, c)
			continue
		}
		if i+2 < len(value) && isHex(value[i+1]) && isHex(value[i+2]) {
			out = append(out, unhex(value[i+1])<<4|unhex(value[i+2]))
			i += 2
			continue
		}
		out = append(out, value[i+1])
		i++
	}
	return string(out)
}

// NormalizeDNCase parses dn and rebuilds it with upper-case attribute types,
// matching Active Directory's canonical form. Values keep their case.
func NormalizeDNCase(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", nil
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}

	return formatRDNs(parsed.RDNs), nil
}

func formatRDNs(rdns []*ldap.RelativeDN) string {
	out := make([]string, 0, len(rdns))
	for _, rdn := range rdns {
		parts := make([]string, 0, len(rdn.Attributes))
		for _, attr := range rdn.Attributes {
			parts = append(parts, strings.ToUpper(attr.Type)+"="+EscapeDNValue(attr.Value))
		}
		out = append(out, strings.Join(parts, "+"))
	}
	return strings.Join(out, ",")
}

// ParentDN returns dn without its leading naming component.
func ParentDN(dn string) (string, error) {
	parsed, err := ldap.ParseDN(strings.TrimSpace(dn))
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}
	if len(parsed.RDNs) < 2 {
		return "", fmt.Errorf("DN %q has no parent: %w", dn, ErrInvalidArgument)
	}

	return formatRDNs(parsed.RDNs[1:]), nil
}
