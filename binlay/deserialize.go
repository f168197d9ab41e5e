package binlay

// Deserialize decodes the stream into the tree, mirroring Serialize with the
// read-side asymmetries: conditionals evaluate against raw already-parsed
// values rather than bound ones, alignment consumes bytes instead of writing
// them (tolerating truncation at end of stream), and field lengths resolve
// dynamically from sibling values parsed earlier in the walk.
func (t *Tree) Deserialize(s Stream, nf Notifier) error {
	return t.Root().deserialize(s, nf, true)
}

func (n *Node) deserialize(s Stream, nf Notifier, align bool) (err error) {
	if n.def.Ignore {
		return nil
	}
	defer func() {
		n.visited = true
		err = fieldErr("deserialize", n, err)
	}()

	// Unbound on purpose: presence depends on what the stream actually
	// said, not on a two-way-computed substitute.
	for _, c := range n.def.When {
		ok, cerr := c.holds(n, false)
		if cerr != nil {
			return cerr
		}
		if !ok {
			return nil
		}
	}

	boundary, hasAlign, err := n.numericParam(n.def.Align, false)
	if err != nil {
		return err
	}
	if align && hasAlign {
		if err := AlignStream(s, boundary, false); err != nil {
			return err
		}
	}

	maxLen, hasMax, err := n.readLength()
	if err != nil {
		return err
	}

	offset, hasOffset, err := n.numericParam(n.def.Offset, false)
	if err != nil {
		return err
	}

	body := func() error {
		rs := s
		if hasMax {
			rs = Limit(rs, maxLen)
		}
		return n.variant.Read(n, rs, nf)
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
		return AlignStream(s, boundary, false)
	}
	return nil
}

// readLength resolves the byte ceiling for a read: the node's own length
// binding when present, else the parent's per-item length — the latter only
// when it resolved to a plain numeric value, guarding against non-numeric
// per-item binding results.
func (n *Node) readLength() (int64, bool, error) {
	if b := n.def.Length; b != nil {
		v, err := b.resolve(n, false)
		if err != nil {
			return 0, false, err
		}
		i, err := NumericValue(v)
		if err != nil {
			return 0, false, err
		}
		return i, true, nil
	}
	if p := n.Parent(); p != nil && p.def.Type.Kind.collection() && p.def.ItemLength != nil {
		v, err := p.def.ItemLength.resolve(p, false)
		if err != nil {
			return 0, false, err
		}
		if isNumeric(v) {
			i, _ := NumericValue(v)
			return i, true, nil
		}
	}
	return 0, false, nil
}
