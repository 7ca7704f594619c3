// Package mapper projects domain objects onto directory entries.
//
// An EntryMapper knows the DN, object classes and managed attributes of one
// domain type. Reconcile drives the entry package synchronizer over every
// managed attribute and returns the resulting modifications in a fixed order.
package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/isometry/entrysync/internal/entry"
)

// ObjectClassAttribute is the attribute holding an entry's object classes.
const ObjectClassAttribute = "objectClass"

// EntryMapper maps a domain type T to and from directory entries.
type EntryMapper[T any] interface {
	// ObjectClasses lists the object classes of a newly created entry.
	ObjectClasses() []string

	// DN derives the entry DN from obj.
	DN(obj T) string

	// ToObject decodes e into a new domain object.
	ToObject(e *entry.Entry) (T, error)

	// MergeInto decodes e onto an existing domain object.
	MergeInto(e *entry.Entry, obj T) error

	// Reconcile updates e to match obj and returns the modifications applied.
	Reconcile(obj T, e *entry.Entry) ([]entry.Modification, error)
}

// AttributeLister is implemented by mappers that can name the attributes they
// read. Callers use it to limit searches and to flag binary attributes.
type AttributeLister interface {
	Attributes() []string
	BinaryAttributes() []string
}

// FieldError reports a failure to map one attribute.
type FieldError struct {
	Attribute string
	DN        string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("attribute %s of %q: %v", e.Attribute, e.DN, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ModifyRequest reconciles e with obj and wraps the result with the DN of e.
func ModifyRequest[T any](m EntryMapper[T], obj T, e *entry.Entry) (*entry.ModifyRequest, error) {
	if e == nil {
		return nil, fmt.Errorf("entry cannot be nil: %w", entry.ErrInvalidArgument)
	}

	mods, err := m.Reconcile(obj, e)
	if err != nil {
		return nil, err
	}
	return &entry.ModifyRequest{DN: e.DN, Modifications: mods}, nil
}

// Map reconciles e with obj, discarding the modification list.
func Map[T any](m EntryMapper[T], obj T, e *entry.Entry) error {
	_, err := m.Reconcile(obj, e)
	return err
}

// NewEntry builds the entry to add for obj: its DN, object classes and every
// managed attribute.
func NewEntry[T any](m EntryMapper[T], obj T) (*entry.Entry, error) {
	dn := m.DN(obj)
	if strings.TrimSpace(dn) == "" {
		return nil, fmt.Errorf("mapped DN is empty: %w", entry.ErrInvalidArgument)
	}

	e := entry.NewEntry(dn)
	if _, err := entry.SetValues(e, ObjectClassAttribute, m.ObjectClasses(), false, entry.String); err != nil {
		return nil, &FieldError{Attribute: ObjectClassAttribute, DN: dn, Err: err}
	}

	if _, err := m.Reconcile(obj, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Spec describes a descriptor-driven mapper. T is normally a pointer type so
// that MergeInto can update objects in place.
type Spec[T any] struct {
	ObjectClasses []string

	// New returns an empty domain object.
	New func() T

	// DN derives the entry DN from an object.
	DN func(T) string

	// SetDN stores the entry DN on an object when decoding. Optional.
	SetDN func(T, string)

	// Fields are reconciled in order.
	Fields []Field[T]
}

// Mapper is the EntryMapper built from a Spec.
type Mapper[T any] struct {
	spec Spec[T]
}

var _ EntryMapper[*struct{}] = (*Mapper[*struct{}])(nil)

// New validates spec and returns its Mapper.
func New[T any](spec Spec[T]) (*Mapper[T], error) {
	var errs []error
	if spec.New == nil {
		errs = append(errs, errors.New("constructor is required"))
	}
	if spec.DN == nil {
		errs = append(errs, errors.New("DN projection is required"))
	}

	seen := make(map[string]bool, len(spec.Fields))
	for i, f := range spec.Fields {
		key := strings.ToLower(f.Name)
		switch {
		case f.Name == "":
			errs = append(errs, fmt.Errorf("field %d has no attribute name", i))
		case seen[key]:
			errs = append(errs, fmt.Errorf("attribute %s is mapped twice", f.Name))
		}
		seen[key] = true
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid mapper spec: %w", errors.Join(entry.ErrInvalidArgument, err))
	}
	return &Mapper[T]{spec: spec}, nil
}

// MustNew is New for statically defined specs. It panics on an invalid spec.
func MustNew[T any](spec Spec[T]) *Mapper[T] {
	m, err := New(spec)
	if err != nil {
		panic(err)
	}
	return m
}

// ObjectClasses returns a copy of the configured object classes.
func (m *Mapper[T]) ObjectClasses() []string {
	return append([]string(nil), m.spec.ObjectClasses...)
}

// DN projects obj onto its distinguished name.
func (m *Mapper[T]) DN(obj T) string {
	return m.spec.DN(obj)
}

// ToObject decodes e into a new object.
func (m *Mapper[T]) ToObject(e *entry.Entry) (T, error) {
	obj := m.spec.New()
	if err := m.MergeInto(e, obj); err != nil {
		var zero T
		return zero, err
	}
	return obj, nil
}

// MergeInto decodes every mapped attribute of e into obj. Attributes missing
// from e reset the matching field.
func (m *Mapper[T]) MergeInto(e *entry.Entry, obj T) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil: %w", entry.ErrInvalidArgument)
	}

	if m.spec.SetDN != nil {
		m.spec.SetDN(obj, e.DN)
	}
	for _, f := range m.spec.Fields {
		if f.load == nil {
			continue
		}
		if err := f.load(e, obj); err != nil {
			return &FieldError{Attribute: f.Name, DN: e.DN, Err: err}
		}
	}
	return nil
}

// Reconcile synchronizes each writable field in order and returns the
// modifications made to e. e is left untouched when any field fails.
func (m *Mapper[T]) Reconcile(obj T, e *entry.Entry) ([]entry.Modification, error) {
	if e == nil {
		return nil, fmt.Errorf("entry cannot be nil: %w", entry.ErrInvalidArgument)
	}

	work := e.Clone()
	var mods []entry.Modification
	for _, f := range m.spec.Fields {
		if f.reconcile == nil {
			continue
		}
		mod, err := f.reconcile(obj, work)
		if err != nil {
			return nil, &FieldError{Attribute: f.Name, DN: e.DN, Err: err}
		}
		if mod != nil {
			mods = append(mods, *mod)
		}
	}
	*e = *work
	return mods, nil
}

// Attributes returns the names of all mapped attributes.
func (m *Mapper[T]) Attributes() []string {
	names := make([]string, 0, len(m.spec.Fields))
	for _, f := range m.spec.Fields {
		names = append(names, f.Name)
	}
	return names
}

// BinaryAttributes returns the names of mapped attributes holding binary
// values.
func (m *Mapper[T]) BinaryAttributes() []string {
	var names []string
	for _, f := range m.spec.Fields {
		if f.Binary {
			names = append(names, f.Name)
		}
	}
	return names
}
