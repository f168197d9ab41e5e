package binlay

import (
	"fmt"
	"math"
	"reflect"
)

// Param names a layout parameter a binding can resolve. Used for producer
// registration and error attribution.
type Param uint8

const (
	ParamLength Param = iota
	ParamItemLength
	ParamCount
	ParamOffset
	ParamAlign
	ParamEndian
	ParamEncoding
	ParamSubtype
	ParamUntil
	ParamValue // computed-field value
)

// String returns the parameter name.
func (p Param) String() string {
	switch p {
	case ParamLength:
		return "length"
	case ParamItemLength:
		return "item-length"
	case ParamCount:
		return "count"
	case ParamOffset:
		return "offset"
	case ParamAlign:
		return "alignment"
	case ParamEndian:
		return "endianness"
	case ParamEncoding:
		return "encoding"
	case ParamSubtype:
		return "subtype"
	case ParamUntil:
		return "until"
	case ParamValue:
		return "value"
	default:
		return "unknown"
	}
}

// BindingMode distinguishes read-only references from bindings whose on-wire
// value is produced by the declaring field's own computation.
type BindingMode uint8

const (
	// OneWay pulls a value from elsewhere in the tree into this parameter.
	OneWay BindingMode = iota
	// TwoWayMode additionally writes the computed value back into the
	// referenced field, so a prefix elsewhere in the layout carries it.
	TwoWayMode
)

// Binding describes how one layout parameter resolves: a literal constant, a
// cross-field reference, or a custom resolver function. Exactly one of
// Const, Path or Func should be set.
type Binding struct {
	Mode  BindingMode
	Const any
	Path  string
	Func  func(*Node) (any, error)
}

// Const builds a literal-constant binding.
func Const(v any) *Binding {
	return &Binding{Const: v}
}

// Ref builds a one-way binding pulling its value from the field at the given
// dotted path, resolved against the declaring field's parent.
func Ref(path string) *Binding {
	return &Binding{Path: path}
}

// TwoWay builds a two-way binding: the field at the given path carries a
// value produced by the declaring field (its measured length, element count,
// subtype discriminator, terminator or computed value), and on read that
// field's parsed value drives the declaring field.
func TwoWay(path string) *Binding {
	return &Binding{Mode: TwoWayMode, Path: path}
}

// FuncBinding builds a binding resolved by a custom function evaluated
// against the declaring node.
func FuncBinding(fn func(*Node) (any, error)) *Binding {
	return &Binding{Func: fn}
}

// isConst reports whether the binding is a literal constant with no graph
// dependency.
func (b *Binding) isConst() bool {
	return b != nil && b.Path == "" && b.Func == nil && b.Const != nil
}

// resolve evaluates the binding against node n. For path bindings the value
// is taken from the referenced node: its bound (producer-computed) value
// when bound is true, its current parsed value otherwise. Constants never
// touch the graph.
func (b *Binding) resolve(n *Node, bound bool) (any, error) {
	switch {
	case b == nil:
		return nil, bindErr("", "nil binding")
	case b.Func != nil:
		return b.Func(n)
	case b.Path != "":
		src, err := n.bindingSource(b.Path)
		if err != nil {
			return nil, err
		}
		if bound {
			return src.BoundValue()
		}
		return src.Value(), nil
	default:
		return b.Const, nil
	}
}

// Condition is a serialize-when predicate: the field is present only when
// the binding resolves to a value equal to Equals.
type Condition struct {
	Binding *Binding
	Equals  any
}

// holds evaluates the condition against node n. Numeric operands compare by
// value regardless of their Go integer type.
func (c *Condition) holds(n *Node, bound bool) (bool, error) {
	v, err := c.Binding.resolve(n, bound)
	if err != nil {
		return false, err
	}
	return looseEqual(v, c.Equals), nil
}

// looseEqual compares two values, treating all integer types as one numeric
// domain.
func looseEqual(a, b any) bool {
	if ai, err := NumericValue(a); err == nil {
		bi, err := NumericValue(b)
		return err == nil && ai == bi
	}
	return reflect.DeepEqual(a, b)
}

// ============================================================
// Numeric coercion
// ============================================================

// NumericValue converts a resolved binding value to a 64-bit integer. It
// accepts every Go integer type plus whole-valued floats.
func NumericValue(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("numeric value %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return wholeFloat(float64(x))
	case float64:
		return wholeFloat(x)
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", v)
	}
}

func wholeFloat(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("numeric value %v is not an integer", f)
	}
	return int64(f), nil
}

// isNumeric reports whether v coerces to an integer. Used by the
// deserialize-side item-length fallback, which must ignore non-numeric
// per-item binding results.
func isNumeric(v any) bool {
	_, err := NumericValue(v)
	return err == nil
}

// constNumeric resolves a binding to an integer only when it is a literal
// constant. It never forces evaluation of the value graph, so it is safe to
// call before bindings are resolvable (forcing a length binding may itself
// trigger a recursive measurement pass).
func constNumeric(b *Binding) (int64, bool) {
	if !b.isConst() {
		return 0, false
	}
	v, err := NumericValue(b.Const)
	if err != nil {
		return 0, false
	}
	return v, true
}
