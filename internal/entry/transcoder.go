package entry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

// Transcoder converts between a domain value and its directory wire
// representation.
type Transcoder[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(raw []byte) (V, error)
}

type funcTranscoder[V any] struct {
	encode func(V) ([]byte, error)
	decode func([]byte) (V, error)
}

func (t funcTranscoder[V]) Encode(value V) ([]byte, error) { return t.encode(value) }
func (t funcTranscoder[V]) Decode(raw []byte) (V, error)   { return t.decode(raw) }

// NewTranscoder builds a Transcoder from an encode/decode function pair.
func NewTranscoder[V any](encode func(V) ([]byte, error), decode func([]byte) (V, error)) Transcoder[V] {
	return funcTranscoder[V]{encode: encode, decode: decode}
}

// Built-in transcoders.
var (
	String            Transcoder[string]    = NewTranscoder(encodeString, decodeString)
	Bytes             Transcoder[[]byte]    = NewTranscoder(encodeBytes, decodeBytes)
	Int               Transcoder[int]       = NewTranscoder(encodeInt, decodeInt)
	Int32             Transcoder[int32]     = NewTranscoder(encodeInt32, decodeInt32)
	Bool              Transcoder[bool]      = NewTranscoder(encodeBool, decodeBool)
	GeneralizedTime   Transcoder[time.Time] = NewTranscoder(encodeGeneralizedTime, decodeGeneralizedTime)
	DistinguishedName Transcoder[string]    = NewTranscoder(encodeDN, decodeDN)
	ObjectGUID        Transcoder[uuid.UUID] = NewTranscoder(encodeObjectGUID, decodeObjectGUID)
	ObjectSID         Transcoder[string]    = NewTranscoder(encodeObjectSID, decodeObjectSID)
)

func transcodeError(kind string, raw []byte, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s value %q: %v", ErrTranscode, kind, truncate(raw), cause)
	}
	return fmt.Errorf("%w: %s value %q", ErrTranscode, kind, truncate(raw))
}

func truncate(raw []byte) []byte {
	if len(raw) > 32 {
		return raw[:32]
	}
	return raw
}

func encodeString(value string) ([]byte, error) {
	return []byte(value), nil
}

func decodeString(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", transcodeError("text", raw, fmt.Errorf("not valid UTF-8"))
	}
	return string(raw), nil
}

func encodeBytes(value []byte) ([]byte, error) {
	return bytes.Clone(value), nil
}

func decodeBytes(raw []byte) ([]byte, error) {
	return bytes.Clone(raw), nil
}

func encodeInt(value int) ([]byte, error) {
	return []byte(strconv.Itoa(value)), nil
}

func decodeInt(raw []byte) (int, error) {
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, transcodeError("integer", raw, err)
	}
	return v, nil
}

func encodeInt32(value int32) ([]byte, error) {
	return []byte(strconv.FormatInt(int64(value), 10)), nil
}

func decodeInt32(raw []byte) (int32, error) {
	v, err := strconv.ParseInt(string(raw), 10, 32)
	if err != nil {
		return 0, transcodeError("integer", raw, err)
	}
	return int32(v), nil
}

func encodeBool(value bool) ([]byte, error) {
	if value {
		return []byte("TRUE"), nil
	}
	return []byte("FALSE"), nil
}

func decodeBool(raw []byte) (bool, error) {
	switch s := string(raw); {
	case strings.EqualFold(s, "TRUE"):
		return true, nil
	case strings.EqualFold(s, "FALSE"):
		return false, nil
	default:
		return false, transcodeError("boolean", raw, nil)
	}
}

// Generalized time layouts, most specific first.
var generalizedTimeLayouts = []string{
	"20060102150405.0Z0700",
	"20060102150405Z0700",
	"20060102150405.000Z0700",
}

func encodeGeneralizedTime(value time.Time) ([]byte, error) {
	return []byte(value.UTC().Format("20060102150405.0Z")), nil
}

func decodeGeneralizedTime(raw []byte) (time.Time, error) {
	for _, layout := range generalizedTimeLayouts {
		if t, err := time.Parse(layout, string(raw)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, transcodeError("generalized time", raw, nil)
}

func encodeDN(value string) ([]byte, error) {
	normalized, err := NormalizeDNCase(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	return []byte(normalized), nil
}

func decodeDN(raw []byte) (string, error) {
	normalized, err := NormalizeDNCase(string(raw))
	if err != nil {
		return "", transcodeError("DN", raw, err)
	}
	return normalized, nil
}

// GUIDBytesLength is the size of a binary objectGUID.
const GUIDBytesLength = 16

// Active Directory stores GUIDs mixed-endian: the first three groups are
// little-endian, the last 8 bytes are kept in network order.
func swapGUIDEndianness(in []byte) []byte {
	out := make([]byte, GUIDBytesLength)
	out[0], out[1], out[2], out[3] = in[3], in[2], in[1], in[0]
	out[4], out[5] = in[5], in[4]
	out[6], out[7] = in[7], in[6]
	copy(out[8:], in[8:])
	return out
}

func encodeObjectGUID(value uuid.UUID) ([]byte, error) {
	return swapGUIDEndianness(value[:]), nil
}

func decodeObjectGUID(raw []byte) (uuid.UUID, error) {
	if len(raw) != GUIDBytesLength {
		return uuid.Nil, transcodeError("objectGUID", raw,
			fmt.Errorf("expected %d bytes, got %d", GUIDBytesLength, len(raw)))
	}
	return uuid.FromBytes(swapGUIDEndianness(raw))
}

// SID binary layout: revision (1), sub-authority count (1), identifier
// authority (6, big-endian), sub-authorities (4 each, little-endian).
const sidHeaderLength = 8

func encodeObjectSID(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, "-")
	if len(parts) < 3 || parts[0] != "S" {
		return nil, fmt.Errorf("%w: invalid SID format %q: must start with 'S-'", ErrTranscode, value)
	}

	revision, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid SID revision in %q: %v", ErrTranscode, value, err)
	}

	authority, err := strconv.ParseUint(parts[2], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid SID authority in %q: %v", ErrTranscode, value, err)
	}

	subAuthorities := parts[3:]
	if len(subAuthorities) > 15 {
		return nil, fmt.Errorf("%w: SID %q has too many sub-authorities", ErrTranscode, value)
	}

	out := make([]byte, sidHeaderLength+4*len(subAuthorities))
	out[0] = byte(revision)
	out[1] = byte(len(subAuthorities))
	for i := range 6 {
		out[2+i] = byte(authority >> (8 * (5 - i)))
	}

	for i, s := range subAuthorities {
		sub, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid SID sub-authority %q in %q: %v", ErrTranscode, s, value, err)
		}
		binary.LittleEndian.PutUint32(out[sidHeaderLength+4*i:], uint32(sub))
	}

	return out, nil
}

func decodeObjectSID(raw []byte) (string, error) {
	if len(raw) < sidHeaderLength {
		return "", transcodeError("objectSid", raw, fmt.Errorf("too short"))
	}
	if want := sidHeaderLength + 4*int(raw[1]); len(raw) != want {
		return "", transcodeError("objectSid", raw,
			fmt.Errorf("expected %d bytes for %d sub-authorities, got %d", want, raw[1], len(raw)))
	}
	return objectsid.Decode(raw).String(), nil
}
