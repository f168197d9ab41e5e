// Package binlay implements a schema-driven binary layout engine.
//
// Given a static description of a data shape — field order, lengths, counts,
// offsets, alignment, endianness, text encoding, conditional presence,
// polymorphic subtypes and computed fields — binlay converts a runtime value
// tree to and from a byte stream, preserving the exact layout in both
// directions.
//
// # Model
//
// Two trees cooperate:
//   - The schema tree (TypeDef/FieldDef) is static, immutable and shared by
//     reference across any number of value trees.
//   - The value tree (Tree/Node) mirrors one runtime value, one node per
//     field instance, each linked to its schema definition.
//
// Layout parameters are expressed as bindings. A Binding resolves to a
// literal constant, a cross-field reference (a dotted path to a sibling
// field), or a computed value. Two-way bindings flow both directions: on
// write the referenced field's on-wire value is produced by this field
// (for example, a length prefix holds this field's self-measured encoded
// size); on read the referenced field's parsed value drives this field's
// parsing.
//
// # Usage
//
//	schema := binlay.Struct(Record{},
//	    binlay.Field("Length", binlay.Prim(binlay.KindU32)),
//	    binlay.Field("Payload", binlay.Prim(binlay.KindBytes),
//	        binlay.WithLength(binlay.TwoWay("Length"))),
//	)
//
//	data, err := binlay.Marshal(schema, Record{Payload: []byte("ABC")})
//	// data == 03 00 00 00 41 42 43
//
//	v, err := binlay.Unmarshal(schema, data)
//
// Lower-level control is available through NewTree / NewShell, Bind, and
// Serialize / Deserialize against any Stream.
//
// # Kinds
//
// Scalars: u8..u64, i8..i64, f32, f64, bool, string, bytes.
// Containers: struct (fixed fields), list (counted, sized or greedy),
// list-until (sentinel-terminated), union (subtype-discriminated).
//
// # Errors
//
// Failures carry the name of the field being processed at every level of the
// recursion (SerializationError). Schema/data mismatches are wrapped;
// transport failures (StreamFault) pass through unchanged.
//
// # Concurrency
//
// Schema trees are read-only and safe to share. A value tree is owned by one
// serialize/deserialize operation at a time; no internal locking is
// provided.
package binlay
