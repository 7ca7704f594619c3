package mapper

import (
	"github.com/isometry/entrysync/internal/entry"
)

// Field maps one attribute. Build fields with Text, Value, Values, Optional,
// IfSet, ReadOnly and ReadOnlyValues.
type Field[T any] struct {
	Name   string
	Binary bool

	reconcile func(obj T, e *entry.Entry) (*entry.Modification, error)
	load      func(e *entry.Entry, obj T) error
}

// Text maps a single-valued string attribute. An empty string removes the
// attribute.
func Text[T any](name string, get func(T) string, set func(T, string)) Field[T] {
	return Value(name, false, entry.String, get, set)
}

// Value maps a single-valued attribute. Values that encode to nothing remove
// the attribute. set may be nil for write-only attributes.
func Value[T, V any](name string, binary bool, tc entry.Transcoder[V], get func(T) V, set func(T, V)) Field[T] {
	f := Field[T]{
		Name:   name,
		Binary: binary,
		reconcile: func(obj T, e *entry.Entry) (*entry.Modification, error) {
			return entry.SetValue(e, name, get(obj), binary, tc)
		},
	}
	if set != nil {
		f.load = func(e *entry.Entry, obj T) error {
			var zero V
			v, err := entry.ValueOr(e, name, tc, zero)
			if err != nil {
				return err
			}
			set(obj, v)
			return nil
		}
	}
	return f
}

// Values maps a multi-valued attribute. Value order is significant.
func Values[T, V any](name string, binary bool, tc entry.Transcoder[V], get func(T) []V, set func(T, []V)) Field[T] {
	f := Field[T]{
		Name:   name,
		Binary: binary,
		reconcile: func(obj T, e *entry.Entry) (*entry.Modification, error) {
			return entry.SetValues(e, name, get(obj), binary, tc)
		},
	}
	if set != nil {
		f.load = func(e *entry.Entry, obj T) error {
			v, err := entry.Values(e, name, tc)
			if err != nil {
				return err
			}
			set(obj, v)
			return nil
		}
	}
	return f
}

// Optional maps a single-valued attribute held by pointer. nil removes the
// attribute; a missing attribute decodes to nil.
func Optional[T, V any](name string, binary bool, tc entry.Transcoder[V], get func(T) *V, set func(T, *V)) Field[T] {
	f := Field[T]{
		Name:   name,
		Binary: binary,
		reconcile: func(obj T, e *entry.Entry) (*entry.Modification, error) {
			var values []V
			if v := get(obj); v != nil {
				values = []V{*v}
			}
			return entry.SetValues(e, name, values, binary, tc)
		},
	}
	if set != nil {
		f.load = func(e *entry.Entry, obj T) error {
			v, ok, err := entry.Value(e, name, tc)
			if err != nil {
				return err
			}
			if !ok {
				set(obj, nil)
				return nil
			}
			set(obj, &v)
			return nil
		}
	}
	return f
}

// IfSet is Optional except that a nil value leaves the attribute as it is.
func IfSet[T, V any](name string, binary bool, tc entry.Transcoder[V], get func(T) *V, set func(T, *V)) Field[T] {
	f := Optional(name, binary, tc, get, set)
	f.reconcile = func(obj T, e *entry.Entry) (*entry.Modification, error) {
		v := get(obj)
		if v == nil {
			return nil, nil
		}
		return entry.SetValue(e, name, *v, binary, tc)
	}
	return f
}

// ReadOnly maps a server-managed attribute that is decoded but never written.
func ReadOnly[T, V any](name string, binary bool, tc entry.Transcoder[V], set func(T, V)) Field[T] {
	return Field[T]{
		Name:   name,
		Binary: binary,
		load: func(e *entry.Entry, obj T) error {
			var zero V
			v, err := entry.ValueOr(e, name, tc, zero)
			if err != nil {
				return err
			}
			set(obj, v)
			return nil
		},
	}
}

// ReadOnlyValues is ReadOnly for multi-valued attributes.
func ReadOnlyValues[T, V any](name string, binary bool, tc entry.Transcoder[V], set func(T, []V)) Field[T] {
	return Field[T]{
		Name:   name,
		Binary: binary,
		load: func(e *entry.Entry, obj T) error {
			v, err := entry.Values(e, name, tc)
			if err != nil {
				return err
			}
			set(obj, v)
			return nil
		},
	}
}
