package binlay

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding"
)

// primitiveVariant encodes scalar kinds: fixed-width numerics honoring the
// resolved byte order, strings through the resolved text encoding, and raw
// bytes. Strings and bytes with no length parameter consume the remainder of
// the current scope on read.
type primitiveVariant struct {
	baseVariant
}

func (v *primitiveVariant) Write(n *Node, s Stream, nf Notifier) error {
	e, err := n.resolveEndian(true)
	if err != nil {
		return err
	}
	val, err := n.BoundValue()
	if err != nil {
		return err
	}

	switch v.kind {
	case KindString:
		enc, err := n.resolveEncoding(true)
		if err != nil {
			return err
		}
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("string field holds %T", val)
		}
		raw, err := encodeText(enc, str)
		if err != nil {
			return err
		}
		if _, err := s.Write(raw); err != nil {
			return err
		}
	case KindBytes:
		raw, err := toBytes(val)
		if err != nil {
			return err
		}
		if _, err := s.Write(raw); err != nil {
			return err
		}
	default:
		if err := writeScalar(s, e.Order(), v.kind, val); err != nil {
			return err
		}
	}

	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpWrite, Offset: s.Relative()})
	return nil
}

func (v *primitiveVariant) Read(n *Node, s Stream, nf Notifier) error {
	e, err := n.resolveEndian(false)
	if err != nil {
		return err
	}

	switch v.kind {
	case KindString:
		enc, err := n.resolveEncoding(false)
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(s)
		if err != nil {
			return err
		}
		str, err := decodeText(enc, raw)
		if err != nil {
			return err
		}
		n.value = str
	case KindBytes:
		raw, err := io.ReadAll(s)
		if err != nil {
			return err
		}
		n.value = raw
	default:
		val, err := readScalar(s, e.Order(), v.kind)
		if err != nil {
			return err
		}
		n.value = val
	}

	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpRead, Offset: s.Relative()})
	return nil
}

// ============================================================
// Scalar wire helpers
// ============================================================

// writeScalar encodes one fixed-width scalar, coercing the value from any Go
// numeric type.
func writeScalar(s Stream, order binary.ByteOrder, k Kind, val any) error {
	switch k {
	case KindBool:
		b, err := toBool(val)
		if err != nil {
			return err
		}
		var x uint8
		if b {
			x = 1
		}
		return binary.Write(s, order, x)
	case KindF32:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		return binary.Write(s, order, float32(f))
	case KindF64:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		return binary.Write(s, order, f)
	}

	switch k {
	case KindU8, KindU16, KindU32, KindU64:
		u, err := unsignedValue(val)
		if err != nil {
			return err
		}
		switch k {
		case KindU8:
			return binary.Write(s, order, uint8(u))
		case KindU16:
			return binary.Write(s, order, uint16(u))
		case KindU32:
			return binary.Write(s, order, uint32(u))
		default:
			return binary.Write(s, order, u)
		}
	case KindI8, KindI16, KindI32, KindI64:
		i, err := NumericValue(val)
		if err != nil {
			return err
		}
		switch k {
		case KindI8:
			return binary.Write(s, order, int8(i))
		case KindI16:
			return binary.Write(s, order, int16(i))
		case KindI32:
			return binary.Write(s, order, int32(i))
		default:
			return binary.Write(s, order, i)
		}
	default:
		return unsupported("write", k)
	}
}

// readScalar decodes one fixed-width scalar into its natural Go type.
func readScalar(s Stream, order binary.ByteOrder, k Kind) (any, error) {
	switch k {
	case KindU8:
		var x uint8
		err := binary.Read(s, order, &x)
		return x, err
	case KindU16:
		var x uint16
		err := binary.Read(s, order, &x)
		return x, err
	case KindU32:
		var x uint32
		err := binary.Read(s, order, &x)
		return x, err
	case KindU64:
		var x uint64
		err := binary.Read(s, order, &x)
		return x, err
	case KindI8:
		var x int8
		err := binary.Read(s, order, &x)
		return x, err
	case KindI16:
		var x int16
		err := binary.Read(s, order, &x)
		return x, err
	case KindI32:
		var x int32
		err := binary.Read(s, order, &x)
		return x, err
	case KindI64:
		var x int64
		err := binary.Read(s, order, &x)
		return x, err
	case KindF32:
		var x float32
		err := binary.Read(s, order, &x)
		return x, err
	case KindF64:
		var x float64
		err := binary.Read(s, order, &x)
		return x, err
	case KindBool:
		var x uint8
		err := binary.Read(s, order, &x)
		return x != 0, err
	default:
		return nil, unsupported("read", k)
	}
}

// ============================================================
// Value coercion
// ============================================================

// unsignedValue coerces val for the unsigned kinds. uint64 passes through
// untouched so the full range survives the trip; signed inputs must be
// non-negative.
func unsignedValue(val any) (uint64, error) {
	switch x := val.(type) {
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	default:
		i, err := NumericValue(val)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned kind", i)
		}
		return uint64(i), nil
	}
}

func toBool(val any) (bool, error) {
	switch x := val.(type) {
	case bool:
		return x, nil
	default:
		i, err := NumericValue(val)
		if err != nil {
			return false, fmt.Errorf("bool field holds %T", val)
		}
		return i != 0, nil
	}
}

func toFloat(val any) (float64, error) {
	switch x := val.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		i, err := NumericValue(val)
		if err != nil {
			return math.NaN(), fmt.Errorf("float field holds %T", val)
		}
		return float64(i), nil
	}
}

func toBytes(val any) ([]byte, error) {
	switch x := val.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("bytes field holds %T", val)
	}
}

// encodeText transforms UTF-8 text to the wire encoding.
func encodeText(enc encoding.Encoding, s string) ([]byte, error) {
	if enc == EncodingUTF8 {
		return []byte(s), nil
	}
	return enc.NewEncoder().Bytes([]byte(s))
}

// decodeText transforms wire bytes back to UTF-8 text.
func decodeText(enc encoding.Encoding, raw []byte) (string, error) {
	if enc == EncodingUTF8 {
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
