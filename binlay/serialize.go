package binlay

import "io"

// Serialize encodes the tree into s. Bind must have been called first when
// the schema carries two-way bindings. The notifier is forwarded down the
// recursion untouched; nil is fine.
func (t *Tree) Serialize(s Stream, nf Notifier) error {
	return t.Root().serialize(s, nf, true)
}

// serialize runs the write walk for one node. Steps, in order: conditional
// check against bound values, left alignment, constant max-length
// resolution, offset scoping, length-limit wrap, computed-field tap, the
// variant's write hook, right alignment. The visited flag is set on every
// exit path.
func (n *Node) serialize(s Stream, nf Notifier, align bool) (err error) {
	if n.def.Ignore {
		return nil
	}
	defer func() {
		n.visited = true
		err = fieldErr("serialize", n, err)
	}()

	for _, c := range n.def.When {
		ok, cerr := c.holds(n, true)
		if cerr != nil {
			return cerr
		}
		if !ok {
			return nil
		}
	}

	boundary, hasAlign, err := n.numericParam(n.def.Align, true)
	if err != nil {
		return err
	}
	if align && hasAlign {
		if err := AlignStream(s, boundary, true); err != nil {
			return err
		}
	}

	// The ceiling must be known before writing, so only literal constants
	// qualify here; forcing a non-constant length binding could trigger a
	// recursive measurement pass mid-write.
	maxLen, hasMax := n.constMaxLength()

	offset, hasOffset, err := n.numericParam(n.def.Offset, true)
	if err != nil {
		return err
	}

	body := func() error {
		ws := s
		if hasMax {
			ws = Limit(ws, maxLen)
		}
		if len(n.taps) > 0 {
			for _, acc := range n.taps {
				acc.Reset(n.Context())
			}
			ws = Tap(ws, accWriters(n.taps)...)
		}
		return n.variant.Write(n, ws, nf)
	}

	if hasOffset {
		err = withPosition(s, offset, body)
	} else {
		err = body()
	}
	if err != nil {
		return err
	}

	if align && hasAlign {
		return AlignStream(s, boundary, true)
	}
	return nil
}

// numericParam resolves an optional binding to an integer. The bound flag
// selects bound (producer-computed) versus raw source values.
func (n *Node) numericParam(b *Binding, bound bool) (int64, bool, error) {
	if b == nil {
		return 0, false, nil
	}
	v, err := b.resolve(n, bound)
	if err != nil {
		return 0, false, err
	}
	i, err := NumericValue(v)
	if err != nil {
		return 0, false, err
	}
	return i, true, nil
}

// constMaxLength resolves the byte ceiling applied before writing: a
// literal-constant length binding on the node itself or, for a collection
// element, the parent's constant per-item length.
func (n *Node) constMaxLength() (int64, bool) {
	if v, ok := constNumeric(n.def.Length); ok {
		return v, true
	}
	if p := n.Parent(); p != nil && p.def.Type.Kind.collection() && n.def == p.def.Type.Elem {
		if v, ok := constNumeric(p.def.ItemLength); ok {
			return v, true
		}
	}
	return 0, false
}

func accWriters(accs []Accumulator) []io.Writer {
	ws := make([]io.Writer, len(accs))
	for i, a := range accs {
		ws[i] = a
	}
	return ws
}
