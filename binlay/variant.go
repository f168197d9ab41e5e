package binlay

// Variant is the capability interface concrete node kinds implement. The
// engine calls Write/Read for the actual encoding and the remaining hooks
// when resolving two-way bindings. Kinds that do not support a capability
// fail loudly with an UnsupportedError, catching misapplied schemas.
type Variant interface {
	// Write encodes the node's bound value into the (possibly
	// length-limited) stream.
	Write(n *Node, s Stream, nf Notifier) error
	// Read decodes the node's value from the (possibly length-limited)
	// stream.
	Read(n *Node, s Stream, nf Notifier) error
	// Measure returns the node's encoded byte length without writing it.
	Measure(n *Node) (int64, error)
	// MeasureItems returns per-element encoded lengths; collections only.
	MeasureItems(n *Node) ([]int64, error)
	// Count returns the element count; collections only.
	Count(n *Node) (int64, error)
	// SubtypeKey returns the discriminator for the node's concrete runtime
	// type; unions only.
	SubtypeKey(n *Node) (any, error)
	// LastItem returns the final element of a terminated collection;
	// collections only.
	LastItem(n *Node) (any, error)
}

// baseVariant supplies the defaults: self-measurement by dry-run serialize,
// and explicit "unsupported" failures for every collection- or union-only
// capability.
type baseVariant struct {
	kind Kind
}

func (b baseVariant) Write(n *Node, s Stream, nf Notifier) error {
	return unsupported("write", b.kind)
}

func (b baseVariant) Read(n *Node, s Stream, nf Notifier) error {
	return unsupported("read", b.kind)
}

// Measure performs the default self-measurement: a full unaligned serialize
// into a discard sink, returning the sink's final relative position.
func (b baseVariant) Measure(n *Node) (int64, error) {
	return n.measure()
}

func (b baseVariant) MeasureItems(n *Node) ([]int64, error) {
	return nil, unsupported("item-length", b.kind)
}

func (b baseVariant) Count(n *Node) (int64, error) {
	return 0, unsupported("count", b.kind)
}

func (b baseVariant) SubtypeKey(n *Node) (any, error) {
	return nil, unsupported("subtype", b.kind)
}

func (b baseVariant) LastItem(n *Node) (any, error) {
	return nil, unsupported("until", b.kind)
}

// variantFor maps a kind to its variant implementation. The set is closed:
// primitive, composite, collection (counted or terminated) and union.
func variantFor(k Kind) Variant {
	switch {
	case k.scalar():
		return &primitiveVariant{baseVariant{k}}
	case k == KindStruct:
		return &compositeVariant{baseVariant{k}}
	case k == KindList:
		return &listVariant{baseVariant: baseVariant{k}}
	case k == KindListUntil:
		return &listVariant{baseVariant: baseVariant{k}, terminated: true}
	case k == KindUnion:
		return &unionVariant{baseVariant{k}}
	default:
		return baseVariant{k}
	}
}
