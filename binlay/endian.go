package binlay

import (
	"encoding/binary"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Endian selects the byte order for multi-byte scalars. It resolves through
// the inheritance chain: an explicit literal on the field, a bound value, the
// parent's resolved order, and finally the tree default.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

// String returns the endianness name.
func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// Order returns the matching encoding/binary byte order.
func (e Endian) Order() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// EncodingUTF8 is the default text encoding for string fields. Any
// golang.org/x/text/encoding.Encoding may be bound in its place, inherited
// down the tree like endianness.
var EncodingUTF8 encoding.Encoding = unicode.UTF8

// asEndian type-checks a bound value against the endianness semantic kind.
func asEndian(v any) (Endian, error) {
	switch e := v.(type) {
	case Endian:
		return e, nil
	case binary.ByteOrder:
		if e == binary.ByteOrder(binary.BigEndian) {
			return BigEndian, nil
		}
		return LittleEndian, nil
	default:
		return 0, &UnsupportedError{Op: "endianness", Message: "bound value is not an Endian"}
	}
}

// asEncoding type-checks a bound value against the encoding semantic kind.
func asEncoding(v any) (encoding.Encoding, error) {
	if enc, ok := v.(encoding.Encoding); ok {
		return enc, nil
	}
	return nil, &UnsupportedError{Op: "encoding", Message: "bound value is not an encoding.Encoding"}
}
