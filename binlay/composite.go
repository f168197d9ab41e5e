package binlay

import (
	"fmt"
	"reflect"
)

// compositeVariant encodes a struct's members in schema order. On read it
// constructs a fresh instance of the schema's Go prototype and assigns the
// parsed children into its fields.
type compositeVariant struct {
	baseVariant
}

func (v *compositeVariant) Write(n *Node, s Stream, nf Notifier) error {
	for _, id := range n.kids {
		if err := n.tree.nodes[id].serialize(s, nf, true); err != nil {
			return err
		}
	}
	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpWrite, Offset: s.Relative()})
	return nil
}

func (v *compositeVariant) Read(n *Node, s Stream, nf Notifier) error {
	for _, id := range n.kids {
		if err := n.tree.nodes[id].deserialize(s, nf, true); err != nil {
			return err
		}
	}

	rv := reflect.New(n.def.Type.GoType).Elem()
	for _, id := range n.kids {
		c := n.tree.nodes[id]
		if c.def.Ignore || c.value == nil {
			continue // skipped conditionals stay at their zero value
		}
		fv := rv.FieldByName(c.def.Name)
		if !fv.IsValid() {
			return fmt.Errorf("type %s has no field %q", n.def.Type.GoType, c.def.Name)
		}
		if err := assignValue(fv, c.value); err != nil {
			return fmt.Errorf("field %q: %w", c.def.Name, err)
		}
	}
	n.value = rv.Interface()

	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpRead, Offset: s.Relative()})
	return nil
}

// assignValue stores val into the destination field, converting between
// compatible numeric types and materializing []any collections into typed
// slices element by element.
func assignValue(fv reflect.Value, val any) error {
	if val == nil {
		return nil // absent value (a false conditional): keep the zero value
	}
	cv := reflect.ValueOf(val)

	if cv.Type().AssignableTo(fv.Type()) {
		fv.Set(cv)
		return nil
	}
	if cv.Type().ConvertibleTo(fv.Type()) && fv.Kind() != reflect.String {
		fv.Set(cv.Convert(fv.Type()))
		return nil
	}

	if items, ok := val.([]any); ok && fv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fv.Type(), len(items), len(items))
		for i, item := range items {
			if err := assignValue(out.Index(i), item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		fv.Set(out)
		return nil
	}

	if fv.Kind() == reflect.Ptr {
		out := reflect.New(fv.Type().Elem())
		if err := assignValue(out.Elem(), val); err != nil {
			return err
		}
		fv.Set(out)
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", val, fv.Type())
}
