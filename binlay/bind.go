package binlay

import (
	"reflect"
)

// Bind resolves the tree's two-way bindings: every field whose on-wire value
// is produced by another field's computation (self-measured lengths, element
// counts, subtype discriminators, terminators, computed values) gets its
// producer registered. Bind walks pre-order — a node's own bindings attach
// before its children's, because child presence, encoding and endianness may
// depend on them — and is idempotent; re-binding a bound tree is a no-op.
func (t *Tree) Bind() error {
	if t.bound {
		return nil
	}
	if err := t.Root().bind(); err != nil {
		return err
	}
	t.bound = true
	return nil
}

func (n *Node) bind() error {
	d := n.def

	if err := n.attach(ParamLength, d.Length, func() (any, error) {
		return n.variant.Measure(n)
	}); err != nil {
		return fieldErr("bind", n, err)
	}
	if err := n.attach(ParamItemLength, d.ItemLength, func() (any, error) {
		return n.itemLengths()
	}); err != nil {
		return fieldErr("bind", n, err)
	}
	if err := n.attach(ParamCount, d.Count, func() (any, error) {
		return n.variant.Count(n)
	}); err != nil {
		return fieldErr("bind", n, err)
	}
	if err := n.attach(ParamSubtype, d.Subtype, func() (any, error) {
		return n.variant.SubtypeKey(n)
	}); err != nil {
		return fieldErr("bind", n, err)
	}
	if err := n.attach(ParamUntil, d.Until, func() (any, error) {
		return n.variant.LastItem(n)
	}); err != nil {
		return fieldErr("bind", n, err)
	}

	// A computed field taps the bytes written while its source encodes; the
	// field's own on-wire value is the accumulator's final result.
	if d.Compute != nil {
		acc := d.Compute()
		src, err := n.bindingSource(d.ComputePath)
		if err != nil {
			return fieldErr("bind", n, err)
		}
		src.taps = append(src.taps, acc)
		n.addProducer(func() (any, error) { return acc.Final() })
	}

	// A union holding a value must resolve its discriminator; failing here
	// keeps unregistered types from getting as far as the wire.
	if d.Type.Kind == KindUnion && d.Subtype != nil && n.value != nil {
		if _, ok := d.Type.Subtypes.KeyFor(reflect.TypeOf(n.value)); !ok {
			return fieldErr("bind", n,
				bindErr("", "subtype: unregistered concrete type %s", reflect.TypeOf(n.value)))
		}
	}

	for _, id := range n.kids {
		if err := n.tree.nodes[id].bind(); err != nil {
			return err
		}
	}
	return nil
}

// attach registers a producer on the binding's target field when the binding
// is two-way. One-way and constant bindings register nothing; they are
// pulled on demand during the walks.
func (n *Node) attach(param Param, b *Binding, produce func() (any, error)) error {
	if b == nil || b.Mode != TwoWayMode {
		return nil
	}
	if b.Path == "" {
		return bindErr("", "two-way %s binding needs a target path", param)
	}
	src, err := n.bindingSource(b.Path)
	if err != nil {
		return err
	}
	src.addProducer(produce)
	return nil
}

// itemLengths produces the per-element encoded lengths of a collection,
// collapsed to a single value when every element measures the same (the
// common case of a scalar per-item length prefix).
func (n *Node) itemLengths() (any, error) {
	lengths, err := n.variant.MeasureItems(n)
	if err != nil {
		return nil, err
	}
	if len(lengths) == 0 {
		return int64(0), nil
	}
	uniform := true
	for _, l := range lengths[1:] {
		if l != lengths[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return lengths[0], nil
	}
	return lengths, nil
}
