package binlay

import (
	"fmt"
	"reflect"
)

// TypeDef is the static, shared description of one type's wire shape. It is
// constructed once, outlives every value node referencing it, and is never
// mutated by the engine.
type TypeDef struct {
	Kind   Kind
	GoType reflect.Type // struct construction target; element slice type for lists

	Fields   []*FieldDef   // KindStruct members, in serialization order
	Elem     *FieldDef     // KindList / KindListUntil element definition
	Subtypes *SubtypeTable // KindUnion discriminator table
}

// FieldDef carries one field's name and layout bindings. The zero binding
// (nil) means the parameter is absent and defaults apply.
type FieldDef struct {
	Name string
	Type *TypeDef

	Length     *Binding // encoded byte length of this field
	ItemLength *Binding // encoded byte length of each collection element
	Count      *Binding // collection element count
	Offset     *Binding // absolute position within the current stream scope
	Align      *Binding // alignment boundary
	Endian     *Binding // byte-order override
	Encoding   *Binding // text-encoding override
	Subtype    *Binding // union discriminator source
	Until      *Binding // terminated-list sentinel
	When       []*Condition

	// Compute builds a fresh accumulator per bound tree for computed
	// fields; ComputePath names the field whose written bytes feed it.
	Compute     func() Accumulator
	ComputePath string

	Ignore bool
}

// ============================================================
// Schema constructors
// ============================================================

// Prim builds a scalar type definition.
func Prim(k Kind) *TypeDef {
	return &TypeDef{Kind: k}
}

// Struct builds a composite type definition. The prototype supplies the
// concrete Go struct type constructed on deserialize; fields are encoded in
// the order given.
func Struct(prototype any, fields ...*FieldDef) *TypeDef {
	return &TypeDef{
		Kind:   KindStruct,
		GoType: baseType(reflect.TypeOf(prototype)),
		Fields: fields,
	}
}

// List builds a collection type definition. The element definition carries
// per-element bindings; its name is empty (elements cannot be targeted by
// cross-field paths).
func List(elem *FieldDef) *TypeDef {
	return &TypeDef{Kind: KindList, Elem: elem}
}

// ListOf builds a collection materialized as the given slice type on read,
// e.g. ListOf([]uint16{}, elem).
func ListOf(prototype any, elem *FieldDef) *TypeDef {
	return &TypeDef{Kind: KindList, Elem: elem, GoType: reflect.TypeOf(prototype)}
}

// ListUntil builds a sentinel-terminated collection. The sentinel itself is
// bound on the field via WithUntil. Reading one requires a seekable stream:
// the sentinel is peeked and rewound before each element.
func ListUntil(elem *FieldDef) *TypeDef {
	return &TypeDef{Kind: KindListUntil, Elem: elem}
}

// Union builds a polymorphic type definition over a subtype table.
func Union(table *SubtypeTable) *TypeDef {
	return &TypeDef{Kind: KindUnion, Subtypes: table}
}

// Field builds a field definition with functional options.
func Field(name string, typ *TypeDef, opts ...FieldOption) *FieldDef {
	f := &FieldDef{Name: name, Type: typ}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Elem builds an unnamed collection-element definition.
func Elem(typ *TypeDef, opts ...FieldOption) *FieldDef {
	return Field("", typ, opts...)
}

// FieldOption is a function that modifies a field definition.
type FieldOption func(*FieldDef)

// WithLength binds the field's encoded byte length.
func WithLength(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Length = b }
}

// WithItemLength binds the encoded byte length of each collection element.
func WithItemLength(b *Binding) FieldOption {
	return func(f *FieldDef) { f.ItemLength = b }
}

// WithCount binds the collection element count.
func WithCount(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Count = b }
}

// WithOffset binds the field's position within the current stream scope. The
// cursor is restored after the field so siblings continue where they left
// off.
func WithOffset(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Offset = b }
}

// WithAlign binds the field's alignment boundary.
func WithAlign(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Align = b }
}

// WithEndian overrides byte order for this field and its subtree.
func WithEndian(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Endian = b }
}

// WithEncoding overrides text encoding for this field and its subtree.
func WithEncoding(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Encoding = b }
}

// WithSubtype binds the union discriminator source field.
func WithSubtype(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Subtype = b }
}

// WithUntil binds the terminated-list sentinel value.
func WithUntil(b *Binding) FieldOption {
	return func(f *FieldDef) { f.Until = b }
}

// WhenEq adds a serialize-when predicate: the field is present only when the
// binding's value equals v. Multiple predicates must all hold.
func WhenEq(b *Binding, v any) FieldOption {
	return func(f *FieldDef) {
		f.When = append(f.When, &Condition{Binding: b, Equals: v})
	}
}

// ComputedBy marks the field's value as computed: factory builds an
// accumulator fed every byte written while the field at path encodes, and
// the accumulator's final value becomes this field's on-wire value.
func ComputedBy(path string, factory func() Accumulator) FieldOption {
	return func(f *FieldDef) {
		f.Compute = factory
		f.ComputePath = path
	}
}

// Ignored excludes the field from serialization and deserialization.
func Ignored() FieldOption {
	return func(f *FieldDef) { f.Ignore = true }
}

// ============================================================
// Subtype table
// ============================================================

// SubtypeTable maps concrete runtime types to on-wire discriminator values
// and discriminators back to type definitions. It is read-only after
// registration and shared like any other schema data.
type SubtypeTable struct {
	byType map[reflect.Type]any
	byKey  map[any]*TypeDef
}

// NewSubtypeTable creates an empty subtype table.
func NewSubtypeTable() *SubtypeTable {
	return &SubtypeTable{
		byType: make(map[reflect.Type]any),
		byKey:  make(map[any]*TypeDef),
	}
}

// Register associates a discriminator key with a concrete Go type and its
// type definition. Numeric keys are normalized so a u8 discriminator read
// from the wire matches an int key given here.
func (t *SubtypeTable) Register(key any, prototype any, def *TypeDef) *SubtypeTable {
	k := normalizeKey(key)
	rt := baseType(reflect.TypeOf(prototype))
	t.byType[rt] = k
	t.byKey[k] = def
	return t
}

// KeyFor returns the discriminator for a concrete runtime type.
func (t *SubtypeTable) KeyFor(rt reflect.Type) (any, bool) {
	k, ok := t.byType[baseType(rt)]
	return k, ok
}

// DefFor returns the type definition for a discriminator value.
func (t *SubtypeTable) DefFor(key any) (*TypeDef, bool) {
	def, ok := t.byKey[normalizeKey(key)]
	return def, ok
}

// normalizeKey folds all integer discriminators into int64 so map lookups do
// not depend on the Go integer type the wire value decoded into.
func normalizeKey(key any) any {
	if v, err := NumericValue(key); err == nil {
		return v
	}
	return key
}

// baseType strips pointer wrappers.
func baseType(rt reflect.Type) reflect.Type {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt
}

// ============================================================
// Schema validation
// ============================================================

// Validate checks the field definition and its subtree for schema mistakes
// the engine would otherwise report only mid-walk: collection-only bindings
// on non-collections, unions without tables, two-way bindings without a
// target path.
func (f *FieldDef) Validate() error {
	return f.validate(f.Name)
}

func (f *FieldDef) validate(path string) error {
	if f.Type == nil {
		return fmt.Errorf("%s: field has no type", path)
	}
	k := f.Type.Kind

	for param, b := range map[Param]*Binding{
		ParamLength:     f.Length,
		ParamItemLength: f.ItemLength,
		ParamCount:      f.Count,
		ParamSubtype:    f.Subtype,
		ParamUntil:      f.Until,
	} {
		if b != nil && b.Mode == TwoWayMode && b.Path == "" {
			return fmt.Errorf("%s: two-way %s binding needs a target path", path, param)
		}
	}

	if !k.collection() {
		if f.ItemLength != nil {
			return fmt.Errorf("%s: item-length binding on non-collection kind %s", path, k)
		}
		if f.Count != nil {
			return fmt.Errorf("%s: count binding on non-collection kind %s", path, k)
		}
		if f.Until != nil {
			return fmt.Errorf("%s: until binding on non-collection kind %s", path, k)
		}
	}
	if f.Subtype != nil && k != KindUnion {
		return fmt.Errorf("%s: subtype binding on non-union kind %s", path, k)
	}
	if f.Compute != nil && f.ComputePath == "" {
		return fmt.Errorf("%s: computed field needs a source path", path)
	}

	switch k {
	case KindStruct:
		if f.Type.GoType == nil || f.Type.GoType.Kind() != reflect.Struct {
			return fmt.Errorf("%s: struct kind needs a Go struct prototype", path)
		}
		seen := make(map[string]bool, len(f.Type.Fields))
		for _, child := range f.Type.Fields {
			if seen[child.Name] {
				return fmt.Errorf("%s: duplicate field name %q", path, child.Name)
			}
			seen[child.Name] = true
			if err := child.validate(path + "." + child.Name); err != nil {
				return err
			}
		}
	case KindList, KindListUntil:
		if f.Type.Elem == nil {
			return fmt.Errorf("%s: list kind needs an element definition", path)
		}
		if k == KindListUntil && f.Until == nil {
			return fmt.Errorf("%s: terminated list needs an until binding", path)
		}
		if err := f.Type.Elem.validate(path + "[]"); err != nil {
			return err
		}
	case KindUnion:
		if f.Type.Subtypes == nil || len(f.Type.Subtypes.byKey) == 0 {
			return fmt.Errorf("%s: union kind needs a populated subtype table", path)
		}
		if f.Subtype == nil {
			return fmt.Errorf("%s: union field needs a subtype binding", path)
		}
	}
	return nil
}
