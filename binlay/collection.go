package binlay

import (
	"errors"
	"fmt"
	"io"
	"reflect"
)

// listVariant encodes repeated elements. Element count on read comes from a
// count binding, a terminating sentinel (terminated form), or the end of the
// current scope (greedy form, which needs a known-length scope). On write the
// terminated form appends the sentinel after the last element.
type listVariant struct {
	baseVariant
	terminated bool
}

func (v *listVariant) Write(n *Node, s Stream, nf Notifier) error {
	for _, id := range n.kids {
		if err := n.tree.nodes[id].serialize(s, nf, true); err != nil {
			return err
		}
	}
	if v.terminated {
		if err := v.writeSentinel(n, s); err != nil {
			return err
		}
	}
	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpWrite, Offset: s.Relative()})
	return nil
}

func (v *listVariant) writeSentinel(n *Node, s Stream) error {
	if n.def.Until == nil {
		return unsupported("until", v.kind)
	}
	sentinel, err := n.def.Until.resolve(n, true)
	if err != nil {
		return err
	}
	e, err := n.resolveEndian(true)
	if err != nil {
		return err
	}
	k, err := v.sentinelKind(n, sentinel)
	if err != nil {
		return err
	}
	return writeScalar(s, e.Order(), k, sentinel)
}

// sentinelKind picks the wire shape of the terminator: the element's own
// kind when elements are fixed-width scalars, else the sentinel value's
// natural width.
func (v *listVariant) sentinelKind(n *Node, sentinel any) (Kind, error) {
	if ek := n.def.Type.Elem.Type.Kind; ek.fixedSize() > 0 {
		return ek, nil
	}
	switch sentinel.(type) {
	case uint8, int8:
		return KindU8, nil
	case uint16, int16:
		return KindU16, nil
	case uint32, int32:
		return KindU32, nil
	case uint64, int64, int, uint:
		return KindU64, nil
	default:
		return KindInvalid, fmt.Errorf("sentinel of type %T needs scalar elements", sentinel)
	}
}

func (v *listVariant) Read(n *Node, s Stream, nf Notifier) error {
	var values []any
	readElem := func() (any, error) {
		child := n.tree.newNode(n.id, n.def.Type.Elem)
		if err := child.deserialize(s, nf, true); err != nil {
			return nil, err
		}
		return child.value, nil
	}

	switch {
	case v.terminated:
		if n.def.Until == nil {
			return unsupported("until", v.kind)
		}
		if !s.CanSeek() {
			return &UnsupportedError{Op: "until", Kind: v.kind, Message: "reading a terminated list needs a seekable stream"}
		}
		sentinel, err := n.def.Until.resolve(n, false)
		if err != nil {
			return err
		}
		e, err := n.resolveEndian(false)
		if err != nil {
			return err
		}
		k, err := v.sentinelKind(n, sentinel)
		if err != nil {
			return err
		}
		for {
			mark := s.Relative()
			peek, err := readScalar(s, e.Order(), k)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break // data ended without a sentinel; tolerate
			}
			if err != nil {
				return err
			}
			if looseEqual(peek, sentinel) {
				break
			}
			if _, err := s.Seek(mark, io.SeekStart); err != nil {
				return err
			}
			val, err := readElem()
			if err != nil {
				return err
			}
			values = append(values, val)
		}

	case n.def.Count != nil:
		count, _, err := n.numericParam(n.def.Count, false)
		if err != nil {
			return err
		}
		for i := int64(0); i < count; i++ {
			val, err := readElem()
			if err != nil {
				return err
			}
			values = append(values, val)
		}

	default:
		// Greedy: consume the current scope. Needs a known length, from a
		// limiting wrap or the underlying stream itself.
		total := s.Length()
		if total < 0 {
			return &UnsupportedError{Op: "count", Kind: v.kind, Message: "greedy list needs a bounded scope"}
		}
		for s.Relative() < total {
			val, err := readElem()
			if err != nil {
				return err
			}
			values = append(values, val)
		}
	}

	n.value = assembleList(n.def.Type, values)
	notify(nf, Event{Field: n.displayName(), Kind: v.kind, Op: OpRead, Offset: s.Relative()})
	return nil
}

// assembleList materializes parsed elements, as a typed slice when the
// definition carries a Go slice prototype, else as []any.
func assembleList(def *TypeDef, values []any) any {
	if def.GoType == nil || def.GoType.Kind() != reflect.Slice {
		return values
	}
	out := reflect.MakeSlice(def.GoType, len(values), len(values))
	for i, val := range values {
		if err := assignValue(out.Index(i), val); err != nil {
			return values // fall back to the untyped form
		}
	}
	return out.Interface()
}

// Count reports the element count; registered as the producer for two-way
// count bindings.
func (v *listVariant) Count(n *Node) (int64, error) {
	return int64(len(n.kids)), nil
}

// MeasureItems measures each element separately with its own dry-run
// serialize.
func (v *listVariant) MeasureItems(n *Node) ([]int64, error) {
	lengths := make([]int64, len(n.kids))
	for i, id := range n.kids {
		l, err := n.tree.nodes[id].measure()
		if err != nil {
			return nil, err
		}
		lengths[i] = l
	}
	return lengths, nil
}

// LastItem returns the final element, the value a two-way termination
// binding carries.
func (v *listVariant) LastItem(n *Node) (any, error) {
	if len(n.kids) == 0 {
		return nil, &UnsupportedError{Op: "until", Kind: v.kind, Message: "empty collection has no last item"}
	}
	return n.tree.nodes[n.kids[len(n.kids)-1]].value, nil
}
