package cairom

// AbiType is the closed set of types an entry point's ABI can describe,
// grounded on original_source/crates/common/src/program.rs's AbiType (as
// referenced by abi_codec.rs's tests) and on
// original_source/crates/common/src/abi_codec.rs's InputValue/CairoMValue.
type AbiType struct {
	Kind AbiKind

	// Pointer / FixedSizeArray element type.
	Element *AbiType

	// FixedSizeArray length.
	Size int

	// Tuple element types.
	Elements []AbiType

	// Struct name and positional fields.
	Name   string
	Fields []AbiField
}

// AbiKind enumerates the AbiType variants.
type AbiKind int

const (
	AbiFelt AbiKind = iota
	AbiBool
	AbiU32
	AbiPointer
	AbiTuple
	AbiStruct
	AbiFixedSizeArray
	AbiUnit
)

// AbiField is one named, ordered field of an AbiStruct AbiType.
type AbiField struct {
	Name string
	Type AbiType
}

// InputValue is an untyped CLI-argument value, interpreted against an
// AbiType at encode time (a Number may become a felt, u32, bool, or
// pointer depending on context).
type InputValue struct {
	Kind InputKind

	Number int64
	Bool   bool
	List   []InputValue // Array or Tuple
	Struct []InputValue // positional; field names come from the AbiType
}

// InputKind enumerates the InputValue variants.
type InputKind int

const (
	InputNumber InputKind = iota
	InputBool
	InputList
	InputStruct
	InputUnit
)

// CairoMValue is a typed output value decoded from VM memory after a run,
// tagged with the AbiType that produced it.
type CairoMValue struct {
	Kind   AbiKind
	Felt   uint32
	Bool   bool
	U32    uint32
	Tuple  []CairoMValue
	Array  []CairoMValue
	Struct []NamedValue
}

// NamedValue pairs a struct field's name with its decoded value.
type NamedValue struct {
	Name  string
	Value CairoMValue
}
