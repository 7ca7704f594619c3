package entry

import (
	"fmt"
)

// ModificationKind identifies the LDAP modify operation for one attribute.
type ModificationKind int

const (
	Add ModificationKind = iota
	Replace
	Delete
)

// String returns the lower-case operation name.
func (k ModificationKind) String() string {
	switch k {
	case Add:
		return "add"
	case Replace:
		return "replace"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Modification is a single attribute change. Attribute is a snapshot of the
// attribute at the time the change was computed; for Delete it holds the
// removed values.
type Modification struct {
	Kind      ModificationKind
	Attribute *Attribute
}

// String returns a short human-readable description.
func (m Modification) String() string {
	if m.Attribute == nil {
		return m.Kind.String()
	}
	return fmt.Sprintf("%s %s (%d values)", m.Kind, m.Attribute.Name, m.Attribute.Len())
}

// ModifyRequest pairs the modifications of one entry with its DN.
type ModifyRequest struct {
	DN            string
	Modifications []Modification
}

// IsEmpty reports whether the request carries no modifications.
func (r *ModifyRequest) IsEmpty() bool {
	return r == nil || len(r.Modifications) == 0
}

// Count returns the number of modifications of the given kind.
func (r *ModifyRequest) Count(kind ModificationKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, m := range r.Modifications {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// ApplyModifications replays mods onto e the way a directory server would.
func ApplyModifications(e *Entry, mods []Modification) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil: %w", ErrInvalidArgument)
	}

	for i, m := range mods {
		if m.Attribute == nil || m.Attribute.Name == "" {
			return fmt.Errorf("modification %d has no attribute: %w", i, ErrInvalidArgument)
		}

		switch m.Kind {
		case Add:
			if existing := e.Attribute(m.Attribute.Name); existing != nil {
				existing.AddValues(m.Attribute.values...)
			} else {
				e.Put(m.Attribute.Clone())
			}
		case Replace:
			if m.Attribute.Len() == 0 {
				e.Remove(m.Attribute.Name)
			} else {
				e.Put(m.Attribute.Clone())
			}
		case Delete:
			e.Remove(m.Attribute.Name)
		default:
			return fmt.Errorf("modification %d has unknown kind %d: %w", i, m.Kind, ErrInvalidArgument)
		}
	}

	return nil
}
