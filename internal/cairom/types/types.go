// Package types implements the closed MirType set, a TypeId interning
// table, and the DataLayout service (value-size vs memory-size, field
// offsets, mem2reg promotability) grounded on
// original_source/crates/compiler/mir/src/layout.rs (spec §4.4, §4.8).
package types

import "fmt"

// Kind enumerates the closed set of MIR types (spec §3).
type Kind int

const (
	KindFelt Kind = iota
	KindBool
	KindU32
	KindPointer
	KindTuple
	KindStruct
	KindFixedArray
	KindFunction
	KindUnit
	KindError
	KindUnknown
)

// MirType is one fully-resolved type. Tuple/Struct/FixedArray/Function
// carry extra data in the corresponding fields; other kinds ignore them.
type MirType struct {
	Kind Kind

	// Pointer
	Pointee TypeId

	// Tuple
	Elements []TypeId

	// Struct
	StructName string
	Fields     []StructField

	// FixedArray
	ElemType TypeId
	Length   int

	// Function
	Params  []TypeId
	Returns TypeId
}

// StructField is one named, ordered field of a Struct type.
type StructField struct {
	Name string
	Type TypeId
}

// TypeId is an interned handle to a MirType.
type TypeId int

// Table interns MirType values so structurally-equal types share a TypeId,
// the same way the original's type resolver avoids re-allocating identical
// tuple/struct shapes across a module.
type Table struct {
	types []MirType
	index map[string]TypeId
}

// NewTable creates an interning table seeded with the scalar kinds.
func NewTable() *Table {
	t := &Table{index: make(map[string]TypeId)}
	t.Intern(MirType{Kind: KindFelt})
	t.Intern(MirType{Kind: KindBool})
	t.Intern(MirType{Kind: KindU32})
	t.Intern(MirType{Kind: KindUnit})
	t.Intern(MirType{Kind: KindError})
	t.Intern(MirType{Kind: KindUnknown})
	return t
}

// Well-known ids for the scalar kinds, valid for any Table returned by
// NewTable (they're interned first, in this order).
const (
	Felt TypeId = iota
	Bool
	U32
	Unit
	ErrorType
	UnknownType
)

// Intern returns the TypeId for ty, allocating a new one if this exact
// shape hasn't been seen before.
func (t *Table) Intern(ty MirType) TypeId {
	key := fingerprint(ty)
	if id, ok := t.index[key]; ok {
		return id
	}
	id := TypeId(len(t.types))
	t.types = append(t.types, ty)
	t.index[key] = id
	return id
}

// Get returns the MirType for id.
func (t *Table) Get(id TypeId) MirType {
	return t.types[id]
}

func fingerprint(ty MirType) string {
	switch ty.Kind {
	case KindTuple:
		return fmt.Sprintf("tuple%v", ty.Elements)
	case KindStruct:
		return fmt.Sprintf("struct:%s%v", ty.StructName, ty.Fields)
	case KindFixedArray:
		return fmt.Sprintf("array:%d:%d", ty.ElemType, ty.Length)
	case KindPointer:
		return fmt.Sprintf("ptr:%d", ty.Pointee)
	case KindFunction:
		return fmt.Sprintf("fn:%v->%d", ty.Params, ty.Returns)
	default:
		return fmt.Sprintf("k%d", ty.Kind)
	}
}

// AreCompatible reports whether a value of type b can be used where a is
// expected. Cairo-M has no implicit numeric widening (spec §9): types must
// match exactly, except that Unknown and Error are compatible with
// anything (both only arise after an earlier diagnostic, and should not
// cascade further errors).
func (t *Table) AreCompatible(a, b TypeId) bool {
	if a == b {
		return true
	}
	if a == UnknownType || b == UnknownType {
		return true
	}
	if a == ErrorType || b == ErrorType {
		return true
	}
	return false
}

// ValueSizeOf returns the number of memory cells a value of this type
// occupies when held directly (e.g. a local variable or a function
// parameter passed by value). FixedArray is sized as elemSize*length here;
// contrast MemorySizeOf, which always allocates a FixedArray behind a
// single pointer slot.
func (t *Table) ValueSizeOf(id TypeId) int {
	ty := t.Get(id)
	switch ty.Kind {
	case KindFelt, KindBool, KindPointer, KindFunction:
		return 1
	case KindU32:
		return 2
	case KindUnit:
		return 0
	case KindTuple:
		sum := 0
		for _, e := range ty.Elements {
			sum += t.ValueSizeOf(e)
		}
		return sum
	case KindStruct:
		sum := 0
		for _, f := range ty.Fields {
			sum += t.ValueSizeOf(f.Type)
		}
		return sum
	case KindFixedArray:
		return t.ValueSizeOf(ty.ElemType) * ty.Length
	default:
		return 1
	}
}

// MemorySizeOf returns the number of memory cells this type occupies when a
// FixedArray is counted as a single pointer slot; every other type has its
// ValueSizeOf size. Codegen's frame layout and pkg/cairom's ABI encoder do
// not use it: they size a FixedArray by value (elemSize*length) through
// ValueSizeOf, so array parameters are flattened into the frame.
func (t *Table) MemorySizeOf(id TypeId) int {
	ty := t.Get(id)
	if ty.Kind == KindFixedArray {
		return 1
	}
	return t.ValueSizeOf(id)
}

// FieldOffset returns the cell offset of a named struct field within its
// enclosing value, or -1 if no such field exists.
func (t *Table) FieldOffset(id TypeId, name string) int {
	ty := t.Get(id)
	if ty.Kind != KindStruct {
		return -1
	}
	offset := 0
	for _, f := range ty.Fields {
		if f.Name == name {
			return offset
		}
		offset += t.ValueSizeOf(f.Type)
	}
	return -1
}

// TupleOffset returns the cell offset of the index-th tuple element, or -1
// if index is out of range.
func (t *Table) TupleOffset(id TypeId, index int) int {
	ty := t.Get(id)
	if ty.Kind != KindTuple || index < 0 || index >= len(ty.Elements) {
		return -1
	}
	offset := 0
	for _, e := range ty.Elements[:index] {
		offset += t.ValueSizeOf(e)
	}
	return offset
}

// IsPromotable reports whether a value of this type is eligible for
// mem2reg: always true for scalars and U32, true for small (<=2-slot)
// tuples/structs whose parts are themselves promotable, and always false
// for FixedArray (which is always memory-backed).
func (t *Table) IsPromotable(id TypeId) bool {
	ty := t.Get(id)
	switch ty.Kind {
	case KindFelt, KindBool, KindPointer, KindU32, KindFunction, KindUnit:
		return true
	case KindTuple:
		if t.ValueSizeOf(id) > 2 {
			return false
		}
		for _, e := range ty.Elements {
			if !t.IsPromotable(e) {
				return false
			}
		}
		return true
	case KindStruct:
		if t.ValueSizeOf(id) > 2 {
			return false
		}
		for _, f := range ty.Fields {
			if !t.IsPromotable(f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
