package binlay

// Kind identifies the wire shape of a type definition. It selects which
// variant implementation drives a node's encoding.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Scalars
	KindU8
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindBool
	KindString
	KindBytes

	// Containers
	KindStruct
	KindList
	KindListUntil // sentinel-terminated list; reading requires a seekable stream
	KindUnion
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindStruct:
		return "struct"
	case KindList:
		return "list"
	case KindListUntil:
		return "list-until"
	case KindUnion:
		return "union"
	default:
		return "invalid"
	}
}

// scalar reports whether the kind is encoded by the primitive variant.
func (k Kind) scalar() bool {
	return k >= KindU8 && k <= KindBytes
}

// collection reports whether the kind holds repeated elements.
func (k Kind) collection() bool {
	return k == KindList || k == KindListUntil
}

// fixedSize returns the encoded byte width of a fixed-width scalar, or 0 for
// variable-width kinds (string, bytes) and containers.
func (k Kind) fixedSize() int64 {
	switch k {
	case KindU8, KindI8, KindBool:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32:
		return 4
	case KindU64, KindI64, KindF64:
		return 8
	default:
		return 0
	}
}
