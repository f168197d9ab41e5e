package binlay

import "reflect"

// unionVariant encodes a polymorphic value: its single child carries the
// concrete subtype selected through the schema's discriminator table. On
// read the discriminator comes from the subtype binding's source field,
// parsed earlier in the walk.
type unionVariant struct {
	baseVariant
}

func (v *unionVariant) Write(n *Node, s Stream, nf Notifier) error {
	if len(n.kids) == 0 {
		if n.value == nil {
			return bindErr("", "subtype cannot be determined from an empty value")
		}
		return bindErr("", "subtype: unregistered concrete type %s", reflect.TypeOf(n.value))
	}
	if err := n.tree.nodes[n.kids[0]].serialize(s, nf, true); err != nil {
		return err
	}
	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpWrite, Offset: s.Relative()})
	return nil
}

func (v *unionVariant) Read(n *Node, s Stream, nf Notifier) error {
	if n.def.Subtype == nil {
		return unsupported("subtype", v.kind)
	}
	key, err := n.def.Subtype.resolve(n, false)
	if err != nil {
		return err
	}
	sub, ok := n.def.Type.Subtypes.DefFor(key)
	if !ok {
		return bindErr("", "no subtype registered for discriminator %v", key)
	}
	child := n.tree.newNode(n.id, &FieldDef{Type: sub})
	if err := child.deserialize(s, nf, true); err != nil {
		return err
	}
	n.value = child.value
	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpRead, Offset: s.Relative()})
	return nil
}

// SubtypeKey inspects the node's concrete runtime type and returns its
// registered discriminator; the producer behind two-way subtype bindings.
func (v *unionVariant) SubtypeKey(n *Node) (any, error) {
	if n.value == nil {
		return nil, bindErr("", "subtype cannot be determined from an empty value")
	}
	key, ok := n.def.Type.Subtypes.KeyFor(reflect.TypeOf(n.value))
	if !ok {
		return nil, bindErr("", "subtype: unregistered concrete type %s", reflect.TypeOf(n.value))
	}
	return key, nil
}
