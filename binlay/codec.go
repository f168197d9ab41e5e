package binlay

// Marshal encodes value against the type definition: build the value tree,
// bind it, and serialize into memory.
func Marshal(def *TypeDef, value any, opts ...TreeOption) ([]byte, error) {
	tree, err := NewTree(def, value, opts...)
	if err != nil {
		return nil, err
	}
	if err := tree.Bind(); err != nil {
		return nil, err
	}
	ms := NewMemoryStream(nil)
	if err := tree.Serialize(ms, nil); err != nil {
		return nil, err
	}
	return ms.Bytes(), nil
}

// Unmarshal decodes data against the type definition and returns the parsed
// value: struct kinds yield an instance of their Go prototype.
func Unmarshal(def *TypeDef, data []byte, opts ...TreeOption) (any, error) {
	tree := NewShell(def, opts...)
	if err := tree.Bind(); err != nil {
		return nil, err
	}
	if err := tree.Deserialize(NewMemoryStream(data), nil); err != nil {
		return nil, err
	}
	return tree.Value(), nil
}
