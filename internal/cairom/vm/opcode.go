// Package vm implements the Cairo-M execution model: paged memory, the
// (pc, fp, clock) machine state, and the fixed 32-opcode dispatch loop.
package vm

import "fmt"

// Opcode identifies one of the 32 CASM instructions. The numeric value of
// every constant below is contractual: the STARK prover's AIR constraints
// are built against these exact ids, so the set is closed and the
// assignment never changes (spec §6, §9).
type Opcode uint32

const (
	StoreAddFpFp Opcode = iota
	StoreAddFpImm
	StoreSubFpFp
	StoreSubFpImm
	StoreDerefFp
	StoreDoubleDerefFp
	StoreImm
	StoreMulFpFp
	StoreMulFpImm
	StoreDivFpFp
	StoreDivFpImm
	CallAbsFp
	CallAbsImm
	CallRelFp
	CallRelImm
	Ret
	JmpAbsAddFpFp
	JmpAbsAddFpImm
	JmpAbsDerefFp
	JmpAbsDoubleDerefFp
	JmpAbsImm
	JmpAbsMulFpFp
	JmpAbsMulFpImm
	JmpRelAddFpFp
	JmpRelAddFpImm
	JmpRelDerefFp
	JmpRelDoubleDerefFp
	JmpRelImm
	JmpRelMulFpFp
	JmpRelMulFpImm
	JnzFpFp
	JnzFpImm
)

// NumOpcodes is the size of the closed opcode set.
const NumOpcodes = 32

// MemoryAccess classifies how an instruction's operand slot touches memory.
type MemoryAccess int

const (
	Unused MemoryAccess = iota
	Read
	Write
)

func (m MemoryAccess) String() string {
	switch m {
	case Read:
		return "Read"
	case Write:
		return "Write"
	default:
		return "Unused"
	}
}

// OpcodeInfo is the static, per-opcode metadata table consumed by both
// codegen (instruction selection) and the VM (dispatch + trace adapter).
// AccessPattern is the 3-slot (op0, op1, op2) memory access pattern the
// prover's memory-consistency argument is built against; it must match
// opcode.rs exactly.
type OpcodeInfo struct {
	Opcode        Opcode
	Name          string
	AccessPattern [3]MemoryAccess
}

// Table is indexed by Opcode and holds every opcode's static info.
var Table = [NumOpcodes]OpcodeInfo{
	StoreAddFpFp:        {StoreAddFpFp, "StoreAddFpFp", [3]MemoryAccess{Read, Read, Write}},
	StoreAddFpImm:       {StoreAddFpImm, "StoreAddFpImm", [3]MemoryAccess{Read, Unused, Write}},
	StoreSubFpFp:        {StoreSubFpFp, "StoreSubFpFp", [3]MemoryAccess{Read, Read, Write}},
	StoreSubFpImm:       {StoreSubFpImm, "StoreSubFpImm", [3]MemoryAccess{Read, Unused, Write}},
	StoreDerefFp:        {StoreDerefFp, "StoreDerefFp", [3]MemoryAccess{Read, Unused, Write}},
	StoreDoubleDerefFp:  {StoreDoubleDerefFp, "StoreDoubleDerefFp", [3]MemoryAccess{Read, Read, Write}},
	StoreImm:            {StoreImm, "StoreImm", [3]MemoryAccess{Unused, Unused, Write}},
	StoreMulFpFp:        {StoreMulFpFp, "StoreMulFpFp", [3]MemoryAccess{Read, Read, Write}},
	StoreMulFpImm:       {StoreMulFpImm, "StoreMulFpImm", [3]MemoryAccess{Read, Unused, Write}},
	StoreDivFpFp:        {StoreDivFpFp, "StoreDivFpFp", [3]MemoryAccess{Read, Read, Write}},
	StoreDivFpImm:       {StoreDivFpImm, "StoreDivFpImm", [3]MemoryAccess{Read, Unused, Write}},
	CallAbsFp:           {CallAbsFp, "CallAbsFp", [3]MemoryAccess{Write, Write, Read}},
	CallAbsImm:          {CallAbsImm, "CallAbsImm", [3]MemoryAccess{Write, Write, Unused}},
	CallRelFp:           {CallRelFp, "CallRelFp", [3]MemoryAccess{Write, Write, Read}},
	CallRelImm:          {CallRelImm, "CallRelImm", [3]MemoryAccess{Write, Write, Unused}},
	Ret:                 {Ret, "Ret", [3]MemoryAccess{Read, Read, Unused}},
	JmpAbsAddFpFp:       {JmpAbsAddFpFp, "JmpAbsAddFpFp", [3]MemoryAccess{Read, Read, Unused}},
	JmpAbsAddFpImm:      {JmpAbsAddFpImm, "JmpAbsAddFpImm", [3]MemoryAccess{Read, Unused, Unused}},
	JmpAbsDerefFp:       {JmpAbsDerefFp, "JmpAbsDerefFp", [3]MemoryAccess{Read, Unused, Unused}},
	JmpAbsDoubleDerefFp: {JmpAbsDoubleDerefFp, "JmpAbsDoubleDerefFp", [3]MemoryAccess{Read, Read, Unused}},
	JmpAbsImm:           {JmpAbsImm, "JmpAbsImm", [3]MemoryAccess{Unused, Unused, Unused}},
	JmpAbsMulFpFp:       {JmpAbsMulFpFp, "JmpAbsMulFpFp", [3]MemoryAccess{Read, Read, Unused}},
	JmpAbsMulFpImm:      {JmpAbsMulFpImm, "JmpAbsMulFpImm", [3]MemoryAccess{Read, Unused, Unused}},
	JmpRelAddFpFp:       {JmpRelAddFpFp, "JmpRelAddFpFp", [3]MemoryAccess{Read, Read, Unused}},
	JmpRelAddFpImm:      {JmpRelAddFpImm, "JmpRelAddFpImm", [3]MemoryAccess{Read, Unused, Unused}},
	JmpRelDerefFp:       {JmpRelDerefFp, "JmpRelDerefFp", [3]MemoryAccess{Read, Unused, Unused}},
	JmpRelDoubleDerefFp: {JmpRelDoubleDerefFp, "JmpRelDoubleDerefFp", [3]MemoryAccess{Read, Read, Unused}},
	JmpRelImm:           {JmpRelImm, "JmpRelImm", [3]MemoryAccess{Unused, Unused, Unused}},
	JmpRelMulFpFp:       {JmpRelMulFpFp, "JmpRelMulFpFp", [3]MemoryAccess{Read, Read, Unused}},
	JmpRelMulFpImm:      {JmpRelMulFpImm, "JmpRelMulFpImm", [3]MemoryAccess{Read, Unused, Unused}},
	JnzFpFp:             {JnzFpFp, "JnzFpFp", [3]MemoryAccess{Read, Read, Unused}},
	JnzFpImm:            {JnzFpImm, "JnzFpImm", [3]MemoryAccess{Read, Unused, Unused}},
}

// Info returns the static metadata for op, or an error if op falls outside
// the closed 0-31 range or this module's own U32 extension band (spec:
// decoding an out-of-range opcode is the InvalidOpcode runtime error).
func Info(op Opcode) (OpcodeInfo, error) {
	if uint32(op) < NumOpcodes {
		return Table[op], nil
	}
	if idx := uint32(op) - NumOpcodes; idx < NumU32Opcodes {
		return u32Table[idx], nil
	}
	return OpcodeInfo{}, fmt.Errorf("vm: invalid opcode %d", op)
}

// String renders the opcode's mnemonic.
func (op Opcode) String() string {
	info, err := Info(op)
	if err != nil {
		return fmt.Sprintf("Opcode(%d)", uint32(op))
	}
	return info.Name
}

// FromU32 validates and converts a raw instruction word's opcode field.
// Accepts both the closed 0-31 CASM range and this module's U32 extension
// band (see u32ops.go); the prover-facing contract only ever sees the
// former, since this module implements execution, not proving.
func FromU32(v uint32) (Opcode, error) {
	if v < NumOpcodes+NumU32Opcodes {
		return Opcode(v), nil
	}
	return 0, fmt.Errorf("vm: invalid opcode %d", v)
}
