package binlay

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/text/encoding"
)

// Tree owns every node of one runtime value, arena style: nodes live in a
// flat slice and refer to relatives by index, so parent back-references never
// own anything. A tree is built from a value (serialize direction) or as an
// empty shell (deserialize direction), bound once, then walked.
type Tree struct {
	nodes       []*Node
	defEndian   Endian
	defEncoding encoding.Encoding
	bound       bool
}

// TreeOption configures process-level defaults on a tree.
type TreeOption func(*Tree)

// WithDefaultEndian sets the byte order used when no field in the ancestry
// overrides it. The default is little-endian.
func WithDefaultEndian(e Endian) TreeOption {
	return func(t *Tree) { t.defEndian = e }
}

// WithDefaultEncoding sets the text encoding used when no field in the
// ancestry overrides it. The default is UTF-8.
func WithDefaultEncoding(enc encoding.Encoding) TreeOption {
	return func(t *Tree) { t.defEncoding = enc }
}

func newTree(opts ...TreeOption) *Tree {
	t := &Tree{defEndian: LittleEndian, defEncoding: EncodingUTF8}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTree builds a value-node tree mirroring value against the given type
// definition. Struct members are extracted by field name via reflection;
// collection elements become one child each; union values select their
// registered subtype.
func NewTree(def *TypeDef, value any, opts ...TreeOption) (*Tree, error) {
	t := newTree(opts...)
	root := t.newNode(-1, &FieldDef{Type: def})
	if err := root.populate(value); err != nil {
		return nil, fieldErr("build", root, err)
	}
	return t, nil
}

// NewShell builds an empty value-node tree for deserialization. Struct
// members get shell children up front; collection and union children are
// created while reading.
func NewShell(def *TypeDef, opts ...TreeOption) *Tree {
	t := newTree(opts...)
	root := t.newNode(-1, &FieldDef{Type: def})
	root.buildShell()
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[0] }

// Value returns the root node's current value.
func (t *Tree) Value() any { return t.nodes[0].value }

func (t *Tree) newNode(parent int, def *FieldDef) *Node {
	n := &Node{
		tree:    t,
		id:      len(t.nodes),
		parent:  parent,
		def:     def,
		variant: variantFor(def.Type.Kind),
	}
	t.nodes = append(t.nodes, n)
	if parent >= 0 {
		p := t.nodes[parent]
		p.kids = append(p.kids, n.id)
	}
	return n
}

// Node is one field/member instance in a value tree. It links a mutable
// runtime value to its static schema definition and carries the deferred
// producers registered against it by two-way bindings elsewhere in the tree.
type Node struct {
	tree    *Tree
	id      int
	parent  int // -1 at the root
	kids    []int
	def     *FieldDef
	variant Variant

	value     any
	producers []func() (any, error)
	taps      []Accumulator
	ctx       *Context
	visited   bool
}

// Name returns the field name, empty for the root and collection elements.
func (n *Node) Name() string { return n.def.Name }

// Def returns the node's schema definition.
func (n *Node) Def() *FieldDef { return n.def }

// Value returns the node's current value.
func (n *Node) Value() any { return n.value }

// SetValue replaces the node's current value.
func (n *Node) SetValue(v any) { n.value = v }

// Visited reports whether a serialize or deserialize traversal has completed
// (or failed) on this node. Preserved on failure for diagnostics.
func (n *Node) Visited() bool { return n.visited }

// Parent returns the parent node, nil at the root. The reference is a
// lookup into the owning tree, never a reclaiming pointer.
func (n *Node) Parent() *Node {
	if n.parent < 0 {
		return nil
	}
	return n.tree.nodes[n.parent]
}

// Children returns the node's children in serialization order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.kids))
	for i, id := range n.kids {
		out[i] = n.tree.nodes[id]
	}
	return out
}

// displayName names the node in errors: its field name, or its kind when
// unnamed (the root, collection elements).
func (n *Node) displayName() string {
	if n.def.Name != "" {
		return n.def.Name
	}
	return n.def.Type.Kind.String()
}

// BoundValue returns the node's value as seen by the wire: when two-way
// bindings elsewhere in the tree registered a producer here, the produced
// value replaces the stored one.
func (n *Node) BoundValue() (any, error) {
	if len(n.producers) > 0 {
		return n.producers[0]()
	}
	return n.value, nil
}

func (n *Node) addProducer(p func() (any, error)) {
	n.producers = append(n.producers, p)
}

// bindingSource resolves a cross-field path. Paths are declared against the
// owning field's enclosing scope, so resolution starts at the parent.
func (n *Node) bindingSource(path string) (*Node, error) {
	start := n.Parent()
	if start == nil {
		start = n
	}
	return start.GetChild(path)
}

// GetChild resolves a dot-separated path of field names starting at this
// node. Each segment must match exactly one child; zero or multiple matches
// fail with a BindingError.
func (n *Node) GetChild(path string) (*Node, error) {
	if path == "" {
		return nil, bindErr(path, "empty path")
	}
	cur := n
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, bindErr(path, "empty path segment")
		}
		var match *Node
		count := 0
		for _, id := range cur.kids {
			c := n.tree.nodes[id]
			if c.def.Name == seg {
				match = c
				count++
			}
		}
		switch {
		case count == 0:
			return nil, bindErr(path, "no child named %q under %q", seg, cur.displayName())
		case count > 1:
			return nil, bindErr(path, "%d children named %q under %q", count, seg, cur.displayName())
		}
		cur = match
	}
	return cur, nil
}

// ============================================================
// Tree construction
// ============================================================

func (n *Node) populate(value any) error {
	n.value = value
	def := n.def.Type

	switch def.Kind {
	case KindStruct:
		rv, err := structValue(def, value)
		if err != nil {
			return err
		}
		for _, fd := range def.Fields {
			child := n.tree.newNode(n.id, fd)
			fv := rv.FieldByName(fd.Name)
			if !fv.IsValid() {
				return fmt.Errorf("type %s has no field %q", rv.Type(), fd.Name)
			}
			if err := child.populate(fv.Interface()); err != nil {
				return fieldErr("build", child, err)
			}
		}

	case KindList, KindListUntil:
		if value == nil {
			return nil
		}
		rv := reflect.ValueOf(value)
		if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
			return fmt.Errorf("list value is %T, want slice or array", value)
		}
		for i := 0; i < rv.Len(); i++ {
			child := n.tree.newNode(n.id, def.Elem)
			if err := child.populate(rv.Index(i).Interface()); err != nil {
				return fieldErr("build", child, err)
			}
		}

	case KindUnion:
		if value == nil {
			return nil // bind or serialize reports the missing subtype
		}
		key, ok := def.Subtypes.KeyFor(reflect.TypeOf(value))
		if !ok {
			return nil // unregistered; Bind fails with attribution
		}
		sub, _ := def.Subtypes.DefFor(key)
		child := n.tree.newNode(n.id, &FieldDef{Type: sub})
		return child.populate(deref(value))
	}
	return nil
}

func (n *Node) buildShell() {
	def := n.def.Type
	if def.Kind != KindStruct {
		return
	}
	for _, fd := range def.Fields {
		child := n.tree.newNode(n.id, fd)
		child.buildShell()
	}
}

// structValue unwraps value down to a struct reflect.Value compatible with
// the definition's prototype.
func structValue(def *TypeDef, value any) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %s value", rv.Type())
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("struct value is %T, want %s", value, def.GoType)
	}
	return rv, nil
}

func deref(value any) any {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Interface()
}

// ============================================================
// Lazy serialization context
// ============================================================

// Context is a deferred, memoized bundle of a node's value, its parent's
// value and the parent's schema type, chained to the parent's own context.
// It is built only when first requested, so predicates and computed fields
// that never fire cost no tree walks.
type Context struct {
	node       *Node
	built      bool
	value      any
	parentVal  any
	parentType *TypeDef
	parent     *Context
}

// Context returns the node's lazy serialization context.
func (n *Node) Context() *Context {
	if n.ctx == nil {
		n.ctx = &Context{node: n}
	}
	return n.ctx
}

func (c *Context) materialize() {
	if c.built {
		return
	}
	c.value = c.node.value
	if p := c.node.Parent(); p != nil {
		c.parentVal = p.value
		c.parentType = p.def.Type
		c.parent = p.Context()
	}
	c.built = true
}

// Value returns the node's value at first materialization.
func (c *Context) Value() any { c.materialize(); return c.value }

// ParentValue returns the parent node's value, nil at the root.
func (c *Context) ParentValue() any { c.materialize(); return c.parentVal }

// ParentType returns the parent's type definition, nil at the root.
func (c *Context) ParentType() *TypeDef { c.materialize(); return c.parentType }

// Parent returns the parent's own lazy context, nil at the root.
func (c *Context) Parent() *Context { c.materialize(); return c.parent }

// ============================================================
// Inherited parameters
// ============================================================

// resolveEndian walks the inheritance chain: field literal, bound value
// (type-checked), parent, tree default.
func (n *Node) resolveEndian(bound bool) (Endian, error) {
	if b := n.def.Endian; b != nil {
		if b.isConst() {
			return asEndian(b.Const)
		}
		v, err := b.resolve(n, bound)
		if err != nil {
			return 0, err
		}
		return asEndian(v)
	}
	if p := n.Parent(); p != nil {
		return p.resolveEndian(bound)
	}
	return n.tree.defEndian, nil
}

// resolveEncoding mirrors resolveEndian for text encodings.
func (n *Node) resolveEncoding(bound bool) (encoding.Encoding, error) {
	if b := n.def.Encoding; b != nil {
		if b.isConst() {
			return asEncoding(b.Const)
		}
		v, err := b.resolve(n, bound)
		if err != nil {
			return nil, err
		}
		return asEncoding(v)
	}
	if p := n.Parent(); p != nil {
		return p.resolveEncoding(bound)
	}
	return n.tree.defEncoding, nil
}

// ============================================================
// Measurement
// ============================================================

// measure performs a dry-run, unaligned serialize of this node into a
// discard sink and returns the relative position the write advanced to.
// Measurement is re-entrant: it may run in the middle of an outer Serialize
// resolving a length prefix, and uses no shared scratch state.
func (n *Node) measure() (int64, error) {
	sink := Limit(NewNullStream(), -1)
	if err := n.serialize(sink, nil, false); err != nil {
		return 0, err
	}
	return sink.Relative(), nil
}

// ============================================================
// Diagnostics
// ============================================================

type nodeSnapshot struct {
	Name     string
	Kind     string
	Value    any
	Visited  bool
	Children []nodeSnapshot
}

func (n *Node) snapshot() nodeSnapshot {
	s := nodeSnapshot{
		Name:    n.displayName(),
		Kind:    n.def.Type.Kind.String(),
		Value:   n.value,
		Visited: n.visited,
	}
	for _, id := range n.kids {
		s.Children = append(s.Children, n.tree.nodes[id].snapshot())
	}
	return s
}

// Dump renders the subtree for diagnostics.
func (n *Node) Dump() string {
	return spew.Sdump(n.snapshot())
}
