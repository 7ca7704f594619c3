package entry

import (
	"bytes"
	"fmt"
)

func validate(e *Entry, name string) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil: %w", ErrInvalidArgument)
	}
	if name == "" {
		return fmt.Errorf("attribute name cannot be empty: %w", ErrInvalidArgument)
	}
	return nil
}

// normalize drops empty values and collapses duplicates onto their first
// occurrence.
func normalize(values [][]byte) [][]byte {
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		if len(v) == 0 {
			continue
		}
		duplicate := false
		for _, seen := range out {
			if bytes.Equal(seen, v) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, v)
		}
	}
	return out
}

// blank reports whether v is an empty string or byte slice, which is dropped
// whatever the transcoder.
func blank[V any](v V) bool {
	switch x := any(v).(type) {
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	}
	return false
}

func encodeAll[V any](name string, values []V, tc Transcoder[V]) ([][]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if tc == nil {
		for _, v := range values {
			if !blank(v) {
				return nil, fmt.Errorf("transcoder required for attribute %s: %w", name, ErrInvalidArgument)
			}
		}
		return nil, nil
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		raw, err := tc.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out = append(out, raw)
	}
	return normalize(out), nil
}

// canonical decodes the stored values of attr and encodes them again so that
// they compare against freshly encoded desired values.
func canonical[V any](attr *Attribute, tc Transcoder[V]) ([][]byte, error) {
	if tc == nil {
		return nil, fmt.Errorf("transcoder required for attribute %s: %w", attr.Name, ErrInvalidArgument)
	}
	out := make([][]byte, 0, len(attr.values))
	for _, raw := range attr.values {
		v, err := tc.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", attr.Name, err)
		}
		encoded, err := tc.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", attr.Name, err)
		}
		out = append(out, encoded)
	}
	return normalize(out), nil
}

func equalSequence(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// apply runs the decision table on already normalized wire values.
func apply(e *Entry, name string, desired, current [][]byte, binary bool) *Modification {
	existing := e.Attribute(name)

	switch {
	case existing == nil && len(desired) == 0:
		return nil

	case existing == nil:
		attr := NewAttribute(name, binary, desired...)
		e.Put(attr)
		return &Modification{Kind: Add, Attribute: attr.Clone()}

	case len(desired) == 0:
		removed := e.Remove(name)
		return &Modification{Kind: Delete, Attribute: removed.Clone()}

	case equalSequence(desired, current):
		return nil

	default:
		attr := NewAttribute(existing.Name, existing.Binary, desired...)
		e.Put(attr)
		return &Modification{Kind: Replace, Attribute: attr.Clone()}
	}
}

// SetValues makes the named attribute of e hold exactly values and returns
// the modification that does so, or nil when the attribute already matches.
//
// binary is used only when the attribute is created; a replaced attribute
// keeps its own flag. tc may be nil only when values is empty.
func SetValues[V any](e *Entry, name string, values []V, binary bool, tc Transcoder[V]) (*Modification, error) {
	if err := validate(e, name); err != nil {
		return nil, err
	}

	desired, err := encodeAll(name, values, tc)
	if err != nil {
		return nil, err
	}

	var current [][]byte
	if existing := e.Attribute(name); existing != nil && len(desired) > 0 {
		if current, err = canonical(existing, tc); err != nil {
			return nil, err
		}
	}

	return apply(e, name, desired, current, binary), nil
}

// SetValue is SetValues for a single value.
func SetValue[V any](e *Entry, name string, value V, binary bool, tc Transcoder[V]) (*Modification, error) {
	return SetValues(e, name, []V{value}, binary, tc)
}

// AddValues merges values into the named attribute. Values already present
// produce no modification.
func AddValues[V any](e *Entry, name string, values []V, binary bool, tc Transcoder[V]) (*Modification, error) {
	if err := validate(e, name); err != nil {
		return nil, err
	}

	existing := e.Attribute(name)
	if existing == nil {
		return SetValues(e, name, values, binary, tc)
	}

	added, err := encodeAll(name, values, tc)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return nil, nil
	}

	current, err := canonical(existing, tc)
	if err != nil {
		return nil, err
	}

	merged := make([][]byte, 0, len(current)+len(added))
	merged = append(merged, current...)
	merged = append(merged, added...)

	return apply(e, name, normalize(merged), current, existing.Binary), nil
}

// AddValue is AddValues for a single value.
func AddValue[V any](e *Entry, name string, value V, binary bool, tc Transcoder[V]) (*Modification, error) {
	return AddValues(e, name, []V{value}, binary, tc)
}

// RemoveValues removes values from the named attribute. The attribute is
// deleted once its last value is removed. Missing attributes and an empty
// values list are no-ops.
func RemoveValues[V any](e *Entry, name string, values []V, tc Transcoder[V]) (*Modification, error) {
	if err := validate(e, name); err != nil {
		return nil, err
	}

	existing := e.Attribute(name)
	if existing == nil || len(values) == 0 {
		return nil, nil
	}

	removed, err := encodeAll(name, values, tc)
	if err != nil || len(removed) == 0 {
		return nil, err
	}

	current, err := canonical(existing, tc)
	if err != nil {
		return nil, err
	}

	remaining := make([][]byte, 0, len(current))
	for _, v := range current {
		drop := false
		for _, r := range removed {
			if bytes.Equal(v, r) {
				drop = true
				break
			}
		}
		if !drop {
			remaining = append(remaining, v)
		}
	}

	return apply(e, name, remaining, current, existing.Binary), nil
}

// RemoveValue removes a single value. A nil value removes the whole
// attribute.
func RemoveValue[V any](e *Entry, name string, value *V, tc Transcoder[V]) (*Modification, error) {
	if value == nil {
		return RemoveAttribute(e, name)
	}
	return RemoveValues(e, name, []V{*value}, tc)
}

// RemoveAttribute deletes the named attribute if present.
func RemoveAttribute(e *Entry, name string) (*Modification, error) {
	if err := validate(e, name); err != nil {
		return nil, err
	}

	removed := e.Remove(name)
	if removed == nil {
		return nil, nil
	}
	return &Modification{Kind: Delete, Attribute: removed.Clone()}, nil
}

// Values decodes all values of the named attribute. A missing attribute
// yields a nil slice.
func Values[V any](e *Entry, name string, tc Transcoder[V]) ([]V, error) {
	if err := validate(e, name); err != nil {
		return nil, err
	}
	if tc == nil {
		return nil, fmt.Errorf("transcoder required for attribute %s: %w", name, ErrInvalidArgument)
	}

	attr := e.Attribute(name)
	if attr == nil {
		return nil, nil
	}

	out := make([]V, 0, attr.Len())
	for _, raw := range attr.values {
		v, err := tc.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", attr.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Value decodes the first value of the named attribute. ok is false when
// the attribute is missing or empty.
func Value[V any](e *Entry, name string, tc Transcoder[V]) (value V, ok bool, err error) {
	if err := validate(e, name); err != nil {
		return value, false, err
	}
	if tc == nil {
		return value, false, fmt.Errorf("transcoder required for attribute %s: %w", name, ErrInvalidArgument)
	}

	attr := e.Attribute(name)
	if attr == nil || attr.Len() == 0 {
		return value, false, nil
	}

	value, err = tc.Decode(attr.values[0])
	if err != nil {
		return value, false, fmt.Errorf("decode %s: %w", attr.Name, err)
	}
	return value, true, nil
}

// ValueOr is Value with a fallback for missing attributes.
func ValueOr[V any](e *Entry, name string, tc Transcoder[V], fallback V) (V, error) {
	v, ok, err := Value(e, name, tc)
	if err != nil || !ok {
		return fallback, err
	}
	return v, nil
}
