package binlay

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// ============================================================
// Nested structs
// ============================================================

type header struct {
	Version uint8
	Flags   uint16
}

type packet struct {
	Head header
	Body uint32
}

func TestRoundtrip_NestedStruct(t *testing.T) {
	schema := Struct(packet{},
		Field("Head", Struct(header{},
			Field("Version", Prim(KindU8)),
			Field("Flags", Prim(KindU16)),
		)),
		Field("Body", Prim(KindU32)),
	)

	in := packet{Head: header{Version: 2, Flags: 0x0102}, Body: 0xDEADBEEF}
	data, err := Marshal(schema, in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x02, 0x01, 0xEF, 0xBE, 0xAD, 0xDE}, data)

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	assert.Equal(t, in, v.(packet))
}

// ============================================================
// Counted lists
// ============================================================

type vec struct {
	N     uint8
	Items []uint16
}

func vecSchema() *TypeDef {
	return Struct(vec{},
		Field("N", Prim(KindU8)),
		Field("Items", ListOf([]uint16{}, Elem(Prim(KindU16))),
			WithCount(TwoWay("N"))),
	)
}

func TestRoundtrip_CountedList(t *testing.T) {
	data, err := Marshal(vecSchema(), vec{Items: []uint16{0x0102, 0x0304}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x02, 0x01, 0x04, 0x03}, data)

	v, err := Unmarshal(vecSchema(), data)
	require.NoError(t, err)
	out := v.(vec)
	assert.Equal(t, uint8(2), out.N)
	assert.Equal(t, []uint16{0x0102, 0x0304}, out.Items)
}

func TestRoundtrip_CountedListEmpty(t *testing.T) {
	data, err := Marshal(vecSchema(), vec{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, data)

	v, err := Unmarshal(vecSchema(), data)
	require.NoError(t, err)
	assert.Empty(t, v.(vec).Items)
}

// ============================================================
// Greedy lists (length-scoped)
// ============================================================

type blob struct {
	Len   uint32
	Items []uint16
}

func TestRoundtrip_GreedyListWithinLengthScope(t *testing.T) {
	schema := Struct(blob{},
		Field("Len", Prim(KindU32)),
		Field("Items", ListOf([]uint16{}, Elem(Prim(KindU16))),
			WithLength(TwoWay("Len"))),
	)

	data, err := Marshal(schema, blob{Items: []uint16{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00}, data)

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	out := v.(blob)
	assert.Equal(t, uint32(6), out.Len)
	assert.Equal(t, []uint16{1, 2, 3}, out.Items)
}

func TestDeserialize_GreedyListConsumesRestOfStream(t *testing.T) {
	schema := Struct(blob{},
		Field("Len", Prim(KindU32)),
		// No length scope: the stream's own end is the boundary.
		Field("Items", ListOf([]uint16{}, Elem(Prim(KindU16)))),
	)
	v, err := Unmarshal(schema, []byte{0x06, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2}, v.(blob).Items)
}

// endlessStream reports an unknown total length.
type endlessStream struct {
	*MemoryStream
}

func (e *endlessStream) Length() int64 { return -1 }

func TestDeserialize_GreedyListNeedsBoundedScope(t *testing.T) {
	schema := Struct(blob{},
		Field("Len", Prim(KindU32)),
		Field("Items", ListOf([]uint16{}, Elem(Prim(KindU16)))),
	)
	tree := NewShell(schema)
	require.NoError(t, tree.Bind())

	err := tree.Deserialize(&endlessStream{NewMemoryStream([]byte{0x06, 0x00, 0x00, 0x00, 0x01, 0x00})}, nil)
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
}

// ============================================================
// Per-item lengths
// ============================================================

type framed struct {
	ItemLen uint8
	Items   [][]byte
}

func TestRoundtrip_ItemLengthPrefix(t *testing.T) {
	schema := Struct(framed{},
		Field("ItemLen", Prim(KindU8)),
		Field("Items", ListOf([][]byte{}, Elem(Prim(KindBytes))),
			WithItemLength(TwoWay("ItemLen")),
			WithCount(Const(2))),
	)

	in := framed{Items: [][]byte{{0x41, 0x42}, {0x43, 0x44}}}
	data, err := Marshal(schema, in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x41, 0x42, 0x43, 0x44}, data)

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	out := v.(framed)
	assert.Equal(t, uint8(2), out.ItemLen)
	assert.Equal(t, in.Items, out.Items)
}

// ============================================================
// Terminated lists
// ============================================================

type cstring struct {
	Name []byte
}

func cstringSchema() *TypeDef {
	return Struct(cstring{},
		Field("Name", ListUntil(Elem(Prim(KindU8))),
			WithUntil(Const(uint8(0)))),
	)
}

func TestRoundtrip_TerminatedList(t *testing.T) {
	data, err := Marshal(cstringSchema(), cstring{Name: []byte{0x41, 0x42}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x42, 0x00}, data)

	v, err := Unmarshal(cstringSchema(), data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x42}, v.(cstring).Name)
}

func TestDeserialize_TerminatedListToleratesMissingSentinel(t *testing.T) {
	v, err := Unmarshal(cstringSchema(), []byte{0x41, 0x42})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x42}, v.(cstring).Name)
}

// unseekableStream hides the seek capability of its backing store.
type unseekableStream struct {
	*MemoryStream
}

func (u *unseekableStream) CanSeek() bool { return false }

func TestDeserialize_TerminatedListNeedsSeekableStream(t *testing.T) {
	tree := NewShell(cstringSchema())
	require.NoError(t, tree.Bind())

	err := tree.Deserialize(&unseekableStream{NewMemoryStream([]byte{0x41, 0x00})}, nil)
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
}

// ============================================================
// Unions
// ============================================================

type ping struct {
	Seq uint8
}

type pong struct {
	Seq   uint8
	Delay uint16
}

type envelope struct {
	Tag  uint8
	Body any
}

func envelopeSchema() *TypeDef {
	table := NewSubtypeTable().
		Register(1, ping{}, Struct(ping{}, Field("Seq", Prim(KindU8)))).
		Register(2, pong{}, Struct(pong{},
			Field("Seq", Prim(KindU8)),
			Field("Delay", Prim(KindU16)),
		))
	return Struct(envelope{},
		Field("Tag", Prim(KindU8)),
		Field("Body", Union(table), WithSubtype(TwoWay("Tag"))),
	)
}

func TestRoundtrip_UnionSelectsSubtypeByTag(t *testing.T) {
	data, err := Marshal(envelopeSchema(), envelope{Body: ping{Seq: 7}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x07}, data)

	v, err := Unmarshal(envelopeSchema(), data)
	require.NoError(t, err)
	out := v.(envelope)
	assert.Equal(t, uint8(1), out.Tag)
	assert.Equal(t, ping{Seq: 7}, out.Body)
}

func TestRoundtrip_UnionSecondSubtype(t *testing.T) {
	data, err := Marshal(envelopeSchema(), envelope{Body: pong{Seq: 3, Delay: 0x0102}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03, 0x02, 0x01}, data)

	v, err := Unmarshal(envelopeSchema(), data)
	require.NoError(t, err)
	assert.Equal(t, pong{Seq: 3, Delay: 0x0102}, v.(envelope).Body)
}

func TestBind_UnionRejectsUnregisteredType(t *testing.T) {
	tree, err := NewTree(envelopeSchema(), envelope{Body: 3.14})
	require.NoError(t, err)

	err = tree.Bind()
	require.Error(t, err)
	var be *BindingError
	assert.True(t, errors.As(err, &be))
}

func TestDeserialize_UnionRejectsUnknownDiscriminator(t *testing.T) {
	_, err := Unmarshal(envelopeSchema(), []byte{0x09, 0x07})
	require.Error(t, err)
	var be *BindingError
	assert.True(t, errors.As(err, &be))
}

// ============================================================
// Strings & text encodings
// ============================================================

type labeled struct {
	Len  uint8
	Text string
}

func TestRoundtrip_StringWithLengthPrefix(t *testing.T) {
	schema := Struct(labeled{},
		Field("Len", Prim(KindU8)),
		Field("Text", Prim(KindString), WithLength(TwoWay("Len"))),
	)

	data, err := Marshal(schema, labeled{Text: "AB"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x41, 0x42}, data)

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	assert.Equal(t, "AB", v.(labeled).Text)
}

func TestRoundtrip_StringLatin1Encoding(t *testing.T) {
	schema := Struct(labeled{},
		Field("Len", Prim(KindU8)),
		Field("Text", Prim(KindString),
			WithLength(TwoWay("Len")),
			WithEncoding(Const(charmap.ISO8859_1))),
	)

	data, err := Marshal(schema, labeled{Text: "héllo"})
	require.NoError(t, err)
	// é is a single byte in Latin-1, two in UTF-8.
	assert.Equal(t, []byte{0x05, 0x68, 0xE9, 0x6C, 0x6C, 0x6F}, data)

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	out := v.(labeled)
	assert.Equal(t, uint8(5), out.Len)
	assert.Equal(t, "héllo", out.Text)
}

// ============================================================
// Scalar kinds
// ============================================================

type allScalars struct {
	U8  uint8
	I16 int16
	U64 uint64
	F32 float32
	F64 float64
	B   bool
}

func TestRoundtrip_ScalarKinds(t *testing.T) {
	schema := Struct(allScalars{},
		Field("U8", Prim(KindU8)),
		Field("I16", Prim(KindI16)),
		Field("U64", Prim(KindU64)),
		Field("F32", Prim(KindF32)),
		Field("F64", Prim(KindF64)),
		Field("B", Prim(KindBool)),
	)

	in := allScalars{U8: 200, I16: -5, U64: 1 << 40, F32: 1.5, F64: -2.25, B: true}
	data, err := Marshal(schema, in)
	require.NoError(t, err)
	assert.Len(t, data, 1+2+8+4+8+1)

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	assert.Equal(t, in, v.(allScalars))
}

type wideWord struct {
	V uint64
}

func TestRoundtrip_U64FullRange(t *testing.T) {
	schema := Struct(wideWord{}, Field("V", Prim(KindU64)))

	tests := []struct {
		name string
		v    uint64
		want []byte
	}{
		{"max", math.MaxUint64, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"high bit", 1 << 63, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(schema, wideWord{V: tt.v})
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)

			out, err := Unmarshal(schema, data)
			require.NoError(t, err)
			assert.Equal(t, wideWord{V: tt.v}, out.(wideWord))
		})
	}
}

func TestSerialize_UnsignedKindRejectsNegativeValue(t *testing.T) {
	type step struct{ D int }
	schema := Struct(step{}, Field("D", Prim(KindU16)))
	_, err := Marshal(schema, step{D: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

// ============================================================
// Conditional elements
// ============================================================

type gated struct {
	Items []uint16
	Tail  uint8
}

func TestRoundtrip_SuppressedElementsKeepZeroValues(t *testing.T) {
	never := FuncBinding(func(n *Node) (any, error) { return 0, nil })
	schema := Struct(gated{},
		Field("Items", ListOf([]uint16{}, Elem(Prim(KindU16), WhenEq(never, 1))),
			WithCount(Const(2))),
		Field("Tail", Prim(KindU8)),
	)

	data, err := Marshal(schema, gated{Items: []uint16{5, 6}, Tail: 7})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, data, "suppressed elements write nothing")

	v, err := Unmarshal(schema, data)
	require.NoError(t, err)
	out := v.(gated)
	assert.Equal(t, []uint16{0, 0}, out.Items, "absent elements hold the zero value")
	assert.Equal(t, uint8(7), out.Tail)
}
