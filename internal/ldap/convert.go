package ldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/entrysync/internal/entry"
)

// EntryFromLDAP converts a search result entry. Attributes named in binary
// (case-insensitively) are flagged as binary.
func EntryFromLDAP(src *ldap.Entry, binary ...string) *entry.Entry {
	if src == nil {
		return nil
	}

	isBinary := make(map[string]bool, len(binary))
	for _, name := range binary {
		isBinary[strings.ToLower(name)] = true
	}

	e := entry.NewEntry(src.DN)
	for _, attr := range src.Attributes {
		if attr == nil {
			continue
		}
		values := attr.ByteValues
		if len(values) == 0 && len(attr.Values) > 0 {
			values = make([][]byte, len(attr.Values))
			for i, v := range attr.Values {
				values[i] = []byte(v)
			}
		}
		e.Put(entry.NewAttribute(attr.Name, isBinary[strings.ToLower(attr.Name)], values...))
	}
	return e
}

// toLDAPModifyRequest keeps modification order. Deletes carry no values so
// the whole attribute is removed.
func toLDAPModifyRequest(req *entry.ModifyRequest) *ldap.ModifyRequest {
	out := ldap.NewModifyRequest(req.DN, nil)
	for _, mod := range req.Modifications {
		name := mod.Attribute.Name
		switch mod.Kind {
		case entry.Add:
			out.Add(name, mod.Attribute.StringValues())
		case entry.Replace:
			out.Replace(name, mod.Attribute.StringValues())
		case entry.Delete:
			out.Delete(name, []string{})
		}
	}
	return out
}

func toLDAPAddRequest(e *entry.Entry) *ldap.AddRequest {
	out := ldap.NewAddRequest(e.DN, nil)
	for _, attr := range e.Attributes() {
		if attr.Len() == 0 {
			continue
		}
		out.Attribute(attr.Name, attr.StringValues())
	}
	return out
}
