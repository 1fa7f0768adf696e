// Package valuetype implements the scalar value types memscan searches
// for: their fixed byte widths, little-endian encodings, and the
// parse/format round trip used to turn user input into search bytes.
package valuetype

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Type is the tagged enum of scalar kinds a session can search for.
type Type int

const (
	Byte Type = iota
	Short
	Int
	Int64
	Float
	Double
	String
	StringUtf16
	Guess
	Unknown
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Int:
		return "int"
	case Int64:
		return "int64"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "string"
	case StringUtf16:
		return "string_utf16"
	case Guess:
		return "guess"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ParseTypeName maps a CLI/TUI-facing name to a Type.
func ParseTypeName(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "byte", "u8", "i8":
		return Byte, nil
	case "short", "i16", "u16":
		return Short, nil
	case "int", "i32", "u32":
		return Int, nil
	case "int64", "i64", "u64", "long":
		return Int64, nil
	case "float", "f32":
		return Float, nil
	case "double", "f64":
		return Double, nil
	case "string", "utf8", "str":
		return String, nil
	case "string_utf16", "utf16", "wstring":
		return StringUtf16, nil
	case "guess":
		return Guess, nil
	case "unknown":
		return Unknown, nil
	default:
		return 0, fmt.Errorf("unknown value type %q", s)
	}
}

// FixedLen returns the byte width of concrete numeric types. It panics for
// String, StringUtf16, Guess and Unknown, which have no single fixed
// width — callers must check HasFixedLen first.
func (t Type) FixedLen() int {
	switch t {
	case Byte:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Int64, Double:
		return 8
	default:
		panic(fmt.Sprintf("valuetype: %s has no fixed length", t))
	}
}

// HasFixedLen reports whether FixedLen is valid for t.
func (t Type) HasFixedLen() bool {
	switch t {
	case Byte, Short, Int, Int64, Float, Double:
		return true
	default:
		return false
	}
}

// TypedValue pairs a Type with its encoded bytes. For numeric types, len(Bytes)
// always equals Type.FixedLen(); for String/StringUtf16 it is the encoded
// text length, which may be zero.
type TypedValue struct {
	Type  Type
	Bytes []byte
}

// Encode parses the raw query text under t and returns the byte pattern to
// search for. Guess and Unknown have no single encoding and are handled by
// their callers (session.GuessCandidates, the unknown-scan snapshot path).
func Encode(t Type, text string) (TypedValue, error) {
	switch t {
	case Byte:
		v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 8)
		if err != nil {
			return TypedValue{}, fmt.Errorf("parsing byte: %w", err)
		}
		return TypedValue{Type: t, Bytes: []byte{byte(v)}}, nil
	case Short:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 16)
		if err != nil {
			return TypedValue{}, fmt.Errorf("parsing short: %w", err)
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		return TypedValue{Type: t, Bytes: b}, nil
	case Int:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return TypedValue{}, fmt.Errorf("parsing int: %w", err)
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return TypedValue{Type: t, Bytes: b}, nil
	case Int64:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return TypedValue{}, fmt.Errorf("parsing int64: %w", err)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return TypedValue{Type: t, Bytes: b}, nil
	case Float:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
		if err != nil {
			return TypedValue{}, fmt.Errorf("parsing float: %w", err)
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		return TypedValue{Type: t, Bytes: b}, nil
	case Double:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return TypedValue{}, fmt.Errorf("parsing double: %w", err)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return TypedValue{Type: t, Bytes: b}, nil
	case String:
		return TypedValue{Type: t, Bytes: []byte(text)}, nil
	case StringUtf16:
		return TypedValue{Type: t, Bytes: EncodeUTF16LE(text)}, nil
	default:
		return TypedValue{}, fmt.Errorf("type %s cannot be encoded directly", t)
	}
}

// EncodeUTF16LE encodes s as UTF-16LE bytes, matching the spec's
// StringUtf16 search encoding.
func EncodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	return b
}

// Format renders raw bytes of the given type back to display text. It is
// the inverse of Encode for numeric types, satisfying the spec's
// round-trip invariant: Encode(t, Format(t, Encode(t, v).Bytes)).Bytes ==
// Encode(t, v).Bytes.
func Format(t Type, b []byte) (string, error) {
	switch t {
	case Byte:
		if len(b) != 1 {
			return "", fmt.Errorf("byte value must be 1 byte, got %d", len(b))
		}
		return strconv.FormatUint(uint64(b[0]), 10), nil
	case Short:
		if len(b) != 2 {
			return "", fmt.Errorf("short value must be 2 bytes, got %d", len(b))
		}
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(b))), 10), nil
	case Int:
		if len(b) != 4 {
			return "", fmt.Errorf("int value must be 4 bytes, got %d", len(b))
		}
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(b))), 10), nil
	case Int64:
		if len(b) != 8 {
			return "", fmt.Errorf("int64 value must be 8 bytes, got %d", len(b))
		}
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(b)), 10), nil
	case Float:
		if len(b) != 4 {
			return "", fmt.Errorf("float value must be 4 bytes, got %d", len(b))
		}
		v := math.Float32frombits(binary.LittleEndian.Uint32(b))
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case Double:
		if len(b) != 8 {
			return "", fmt.Errorf("double value must be 8 bytes, got %d", len(b))
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(b))
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case String:
		return string(b), nil
	case StringUtf16:
		if len(b)%2 != 0 {
			return "", fmt.Errorf("utf16 value must have even byte length")
		}
		units := make([]uint16, len(b)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(b[i*2:])
		}
		return string(utf16.Decode(units)), nil
	default:
		return "", fmt.Errorf("type %s cannot be formatted", t)
	}
}

// AsFloat64 interprets b as the numeric value of t, for use by the
// unknown-comparison operators. Only valid for numeric types.
func AsFloat64(t Type, b []byte) (float64, error) {
	switch t {
	case Byte:
		if len(b) != 1 {
			return 0, fmt.Errorf("short read")
		}
		return float64(b[0]), nil
	case Short:
		if len(b) != 2 {
			return 0, fmt.Errorf("short read")
		}
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case Int:
		if len(b) != 4 {
			return 0, fmt.Errorf("short read")
		}
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case Int64:
		if len(b) != 8 {
			return 0, fmt.Errorf("short read")
		}
		return float64(int64(binary.LittleEndian.Uint64(b))), nil
	case Float:
		if len(b) != 4 {
			return 0, fmt.Errorf("short read")
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case Double:
		if len(b) != 8 {
			return 0, fmt.Errorf("short read")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("type %s is not numeric", t)
	}
}

// IsInteger reports whether t uses exact-equality comparison in unknown
// scans rather than epsilon tolerance.
func IsInteger(t Type) bool {
	switch t {
	case Byte, Short, Int, Int64:
		return true
	default:
		return false
	}
}

// Epsilon returns the tolerance band for Changed/Unchanged comparisons of
// Float and Double values, per spec: max(1e-4, 0.001*|old|) for Float and
// max(1e-6, 0.0001*|old|) for Double.
func Epsilon(t Type, old float64) float64 {
	abs := old
	if abs < 0 {
		abs = -abs
	}
	switch t {
	case Float:
		return math.Max(1e-4, 0.001*abs)
	case Double:
		return math.Max(1e-6, 0.0001*abs)
	default:
		return 0
	}
}
