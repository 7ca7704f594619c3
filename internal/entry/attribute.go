package entry

import (
	"bytes"
	"strings"
)

// Attribute is a named, multi-valued attribute of a directory entry.
// Values are kept in insertion order; duplicates are collapsed on write.
type Attribute struct {
	Name   string
	Binary bool
	values [][]byte
}

// NewAttribute creates an attribute holding copies of the given wire values.
func NewAttribute(name string, binary bool, values ...[]byte) *Attribute {
	attr := &Attribute{Name: name, Binary: binary}
	attr.AddValues(values...)
	return attr
}

// NewTextAttribute creates a text attribute from string values.
func NewTextAttribute(name string, values ...string) *Attribute {
	attr := &Attribute{Name: name}
	for _, v := range values {
		attr.AddValues([]byte(v))
	}
	return attr
}

// AddValues appends values that are not already present.
func (a *Attribute) AddValues(values ...[]byte) {
	for _, v := range values {
		if a.contains(v) {
			continue
		}
		a.values = append(a.values, bytes.Clone(v))
	}
}

func (a *Attribute) contains(value []byte) bool {
	for _, existing := range a.values {
		if bytes.Equal(existing, value) {
			return true
		}
	}
	return false
}

// Values returns copies of the wire values.
func (a *Attribute) Values() [][]byte {
	out := make([][]byte, len(a.values))
	for i, v := range a.values {
		out[i] = bytes.Clone(v)
	}
	return out
}

// StringValues returns the wire values as strings.
func (a *Attribute) StringValues() []string {
	out := make([]string, len(a.values))
	for i, v := range a.values {
		out[i] = string(v)
	}
	return out
}

// Len returns the number of values.
func (a *Attribute) Len() int {
	return len(a.values)
}

// Clone returns a deep copy of the attribute.
func (a *Attribute) Clone() *Attribute {
	if a == nil {
		return nil
	}
	return &Attribute{Name: a.Name, Binary: a.Binary, values: a.Values()}
}

// Entry is the in-memory representation of one directory entry.
type Entry struct {
	DN    string
	attrs map[string]*Attribute
	order []string
}

// NewEntry creates an entry with the given DN and attributes. A later
// attribute replaces an earlier one with the same name.
func NewEntry(dn string, attrs ...*Attribute) *Entry {
	e := &Entry{DN: dn, attrs: make(map[string]*Attribute)}
	for _, attr := range attrs {
		e.Put(attr)
	}
	return e
}

func attributeKey(name string) string {
	return strings.ToLower(name)
}

// Attribute returns the attribute with the given name, or nil.
func (e *Entry) Attribute(name string) *Attribute {
	if e == nil || e.attrs == nil {
		return nil
	}
	return e.attrs[attributeKey(name)]
}

// HasAttribute reports whether the entry holds the named attribute.
func (e *Entry) HasAttribute(name string) bool {
	return e.Attribute(name) != nil
}

// Put stores attr, replacing any attribute with the same name. The position of
// a replaced attribute is kept.
func (e *Entry) Put(attr *Attribute) {
	if attr == nil {
		return
	}
	if e.attrs == nil {
		e.attrs = make(map[string]*Attribute)
	}
	key := attributeKey(attr.Name)
	if _, exists := e.attrs[key]; !exists {
		e.order = append(e.order, key)
	}
	e.attrs[key] = attr
}

// Remove deletes the named attribute and returns it, or nil if absent.
func (e *Entry) Remove(name string) *Attribute {
	key := attributeKey(name)
	attr, ok := e.attrs[key]
	if !ok {
		return nil
	}
	delete(e.attrs, key)
	for i, k := range e.order {
		if k == key {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return attr
}

// Attributes returns the attributes in insertion order.
func (e *Entry) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(e.order))
	for _, key := range e.order {
		out = append(out, e.attrs[key])
	}
	return out
}

// Names returns the attribute names in insertion order.
func (e *Entry) Names() []string {
	out := make([]string, 0, len(e.order))
	for _, key := range e.order {
		out = append(out, e.attrs[key].Name)
	}
	return out
}

// Len returns the number of attributes.
func (e *Entry) Len() int {
	return len(e.order)
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	clone := NewEntry(e.DN)
	for _, attr := range e.Attributes() {
		clone.Put(attr.Clone())
	}
	return clone
}
