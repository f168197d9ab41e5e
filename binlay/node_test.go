package binlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inner struct {
	Version uint8
}

type outer struct {
	Head inner
	Body uint32
}

func outerSchema() *TypeDef {
	return Struct(outer{},
		Field("Head", Struct(inner{}, Field("Version", Prim(KindU8)))),
		Field("Body", Prim(KindU32)),
	)
}

func TestGetChild_ResolvesDottedPath(t *testing.T) {
	tree, err := NewTree(outerSchema(), outer{Head: inner{Version: 3}, Body: 9})
	require.NoError(t, err)

	n, err := tree.Root().GetChild("Head.Version")
	require.NoError(t, err)
	assert.Equal(t, "Version", n.Name())
	assert.Equal(t, uint8(3), n.Value())
	assert.Equal(t, "Head", n.Parent().Name())
}

func TestGetChild_PathErrors(t *testing.T) {
	tree, err := NewTree(outerSchema(), outer{})
	require.NoError(t, err)
	root := tree.Root()

	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"empty segment", "Head."},
		{"unknown name", "Nope"},
		{"descend through scalar", "Body.X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := root.GetChild(tt.path)
			var be *BindingError
			require.ErrorAs(t, err, &be)
		})
	}
}

type twins struct {
	B uint8
}

func TestGetChild_AmbiguousNameFails(t *testing.T) {
	// Two schema fields over the same member: resolution must refuse to
	// guess.
	schema := Struct(twins{},
		Field("B", Prim(KindU8)),
		Field("B", Prim(KindU8)),
	)
	tree, err := NewTree(schema, twins{B: 1})
	require.NoError(t, err)

	_, err = tree.Root().GetChild("B")
	var be *BindingError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "2 children")
}

func TestNode_BoundValueFirstProducerWins(t *testing.T) {
	tree, err := NewTree(outerSchema(), outer{Body: 1})
	require.NoError(t, err)

	n, err := tree.Root().GetChild("Body")
	require.NoError(t, err)

	v, err := n.BoundValue()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v, "no producers: the stored value")

	n.addProducer(func() (any, error) { return uint32(42), nil })
	n.addProducer(func() (any, error) { return uint32(99), nil })
	v, err = n.BoundValue()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestNode_ContextChainsToParent(t *testing.T) {
	tree, err := NewTree(outerSchema(), outer{Head: inner{Version: 3}})
	require.NoError(t, err)

	n, err := tree.Root().GetChild("Head.Version")
	require.NoError(t, err)

	ctx := n.Context()
	assert.Equal(t, uint8(3), ctx.Value())
	assert.Equal(t, inner{Version: 3}, ctx.ParentValue())
	assert.Equal(t, KindStruct, ctx.ParentType().Kind)
	assert.NotNil(t, ctx.Parent())
	assert.Nil(t, tree.Root().Context().Parent(), "root has no parent context")
}

func TestNode_ArenaLinksParentAndChildren(t *testing.T) {
	tree, err := NewTree(outerSchema(), outer{})
	require.NoError(t, err)

	root := tree.Root()
	assert.Nil(t, root.Parent())

	kids := root.Children()
	require.Len(t, kids, 2)
	assert.Equal(t, "Head", kids[0].Name())
	assert.Equal(t, "Body", kids[1].Name())
	assert.Same(t, root, kids[0].Parent())
}

func TestNode_DumpRendersSubtree(t *testing.T) {
	tree, err := NewTree(outerSchema(), outer{Head: inner{Version: 7}})
	require.NoError(t, err)

	out := tree.Root().Dump()
	assert.Contains(t, out, "Version")
	assert.Contains(t, out, "Head")
}

func TestTree_BindIsIdempotent(t *testing.T) {
	tree, err := NewTree(lengthPrefixedSchema(), lengthPrefixed{Payload: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, tree.Bind())
	lenNode, err := tree.Root().GetChild("Length")
	require.NoError(t, err)
	before := len(lenNode.producers)

	require.NoError(t, tree.Bind())
	assert.Equal(t, before, len(lenNode.producers), "re-bind registers nothing")
}

func TestNode_MeasureLeavesNoTrace(t *testing.T) {
	tree, err := NewTree(lengthPrefixedSchema(), lengthPrefixed{Payload: []byte("abc")})
	require.NoError(t, err)
	require.NoError(t, tree.Bind())

	payload, err := tree.Root().GetChild("Payload")
	require.NoError(t, err)

	l, err := payload.measure()
	require.NoError(t, err)
	assert.Equal(t, int64(3), l)

	// Measurement is a dry run: a real serialize afterwards still produces
	// the full layout.
	s := NewMemoryStream(nil)
	require.NoError(t, tree.Serialize(s, nil))
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c'}, s.Bytes())
}
