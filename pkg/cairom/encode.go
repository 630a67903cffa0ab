package cairom

import (
	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/vm"
)

// abiSize returns the number of memory cells a value of this AbiType
// occupies, mirroring internal/cairom/types.Table.ValueSizeOf's layout
// rules (felt/bool/pointer = 1 cell, u32 = 2 limbs, tuple/struct = sum of
// parts, fixed array = elemSize*length when held by value).
func abiSize(t AbiType) int {
	switch t.Kind {
	case AbiFelt, AbiBool, AbiPointer:
		return 1
	case AbiU32:
		return 2
	case AbiUnit:
		return 0
	case AbiTuple:
		sum := 0
		for _, e := range t.Elements {
			sum += abiSize(e)
		}
		return sum
	case AbiStruct:
		sum := 0
		for _, f := range t.Fields {
			sum += abiSize(f.Type)
		}
		return sum
	case AbiFixedSizeArray:
		return abiSize(*t.Element) * t.Size
	default:
		return 1
	}
}

// encodeArgs writes args into mem starting at base, according to
// paramTypes, and returns the frame base the VM should use as its
// initial fp (the arguments occupy the same slots the callee's
// calling convention expects its parameters to arrive in).
func encodeArgs(mem *vm.PagedMemory, base uint32, args []InputValue, paramTypes []AbiType) (uint32, error) {
	addr := base
	for i, arg := range args {
		n, err := encodeValue(mem, addr, arg, paramTypes[i])
		if err != nil {
			return 0, err
		}
		addr += n
	}
	return base, nil
}

func encodeValue(mem *vm.PagedMemory, addr uint32, v InputValue, t AbiType) (uint32, error) {
	switch t.Kind {
	case AbiFelt, AbiPointer:
		n, err := inputAsInt64(v)
		if err != nil {
			return 0, err
		}
		mem.Set(addr, core.FromFelt(core.NewFelt(FeltFromI64(n))))
		return 1, nil
	case AbiBool:
		b, err := inputAsBool(v)
		if err != nil {
			return 0, err
		}
		val := uint32(0)
		if b {
			val = 1
		}
		mem.Set(addr, core.FromFelt(core.NewFelt(val)))
		return 1, nil
	case AbiU32:
		n, err := inputAsInt64(v)
		if err != nil {
			return 0, err
		}
		u := uint32(n)
		mem.Set(addr, core.FromFelt(core.NewFelt(u&0xFFFF)))
		mem.Set(addr+1, core.FromFelt(core.NewFelt(u>>16)))
		return 2, nil
	case AbiTuple:
		if v.Kind != InputList || len(v.List) != len(t.Elements) {
			return 0, &VMError{Code: ErrInvalidInput, Message: "tuple arity mismatch"}
		}
		offset := uint32(0)
		for i, elemTy := range t.Elements {
			n, err := encodeValue(mem, addr+offset, v.List[i], elemTy)
			if err != nil {
				return 0, err
			}
			offset += n
		}
		return offset, nil
	case AbiStruct:
		if v.Kind != InputStruct || len(v.Struct) != len(t.Fields) {
			return 0, &VMError{Code: ErrInvalidInput, Message: "struct field count mismatch for " + t.Name}
		}
		offset := uint32(0)
		for i, f := range t.Fields {
			n, err := encodeValue(mem, addr+offset, v.Struct[i], f.Type)
			if err != nil {
				return 0, err
			}
			offset += n
		}
		return offset, nil
	case AbiFixedSizeArray:
		items := v.List
		if v.Kind != InputList || len(items) != t.Size {
			return 0, &VMError{Code: ErrInvalidInput, Message: "array length mismatch"}
		}
		offset := uint32(0)
		for _, item := range items {
			n, err := encodeValue(mem, addr+offset, item, *t.Element)
			if err != nil {
				return 0, err
			}
			offset += n
		}
		return offset, nil
	case AbiUnit:
		return 0, nil
	default:
		return 0, &VMError{Code: ErrInvalidInput, Message: "unsupported ABI type"}
	}
}

func inputAsInt64(v InputValue) (int64, error) {
	switch v.Kind {
	case InputNumber:
		return v.Number, nil
	case InputBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &VMError{Code: ErrInvalidInput, Message: "expected a number"}
	}
}

func inputAsBool(v InputValue) (bool, error) {
	switch v.Kind {
	case InputBool:
		return v.Bool, nil
	case InputNumber:
		return v.Number != 0, nil
	default:
		return false, &VMError{Code: ErrInvalidInput, Message: "expected a boolean"}
	}
}

// decodeReturn reads a value of type t back out of mem starting at addr,
// the mirror of encodeValue used to interpret a function's return slot.
func decodeReturn(mem *vm.PagedMemory, addr uint32, t AbiType) (CairoMValue, error) {
	v, _, err := decodeValue(mem, addr, t)
	return v, err
}

func decodeValue(mem *vm.PagedMemory, addr uint32, t AbiType) (CairoMValue, uint32, error) {
	switch t.Kind {
	case AbiFelt:
		cell, _ := mem.Get(addr)
		return CairoMValue{Kind: AbiFelt, Felt: cell.AsFelt().Value()}, 1, nil
	case AbiPointer:
		cell, _ := mem.Get(addr)
		return CairoMValue{Kind: AbiPointer, Felt: cell.AsFelt().Value()}, 1, nil
	case AbiBool:
		cell, _ := mem.Get(addr)
		return CairoMValue{Kind: AbiBool, Bool: cell.AsFelt().Value() != 0}, 1, nil
	case AbiU32:
		lo, _ := mem.Get(addr)
		hi, _ := mem.Get(addr + 1)
		u := lo.AsFelt().Value() | (hi.AsFelt().Value() << 16)
		return CairoMValue{Kind: AbiU32, U32: u}, 2, nil
	case AbiTuple:
		out := make([]CairoMValue, len(t.Elements))
		offset := uint32(0)
		for i, elemTy := range t.Elements {
			v, n, err := decodeValue(mem, addr+offset, elemTy)
			if err != nil {
				return CairoMValue{}, 0, err
			}
			out[i] = v
			offset += n
		}
		return CairoMValue{Kind: AbiTuple, Tuple: out}, offset, nil
	case AbiStruct:
		out := make([]NamedValue, len(t.Fields))
		offset := uint32(0)
		for i, f := range t.Fields {
			v, n, err := decodeValue(mem, addr+offset, f.Type)
			if err != nil {
				return CairoMValue{}, 0, err
			}
			out[i] = NamedValue{Name: f.Name, Value: v}
			offset += n
		}
		return CairoMValue{Kind: AbiStruct, Struct: out}, offset, nil
	case AbiFixedSizeArray:
		out := make([]CairoMValue, t.Size)
		offset := uint32(0)
		for i := 0; i < t.Size; i++ {
			v, n, err := decodeValue(mem, addr+offset, *t.Element)
			if err != nil {
				return CairoMValue{}, 0, err
			}
			out[i] = v
			offset += n
		}
		return CairoMValue{Kind: AbiFixedSizeArray, Array: out}, offset, nil
	case AbiUnit:
		return CairoMValue{Kind: AbiUnit}, 0, nil
	default:
		return CairoMValue{}, 0, &VMError{Code: ErrInvalidInput, Message: "unsupported ABI type"}
	}
}
