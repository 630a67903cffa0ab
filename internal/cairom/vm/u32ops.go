package vm

// U32 extended opcodes are this module's own addition, layered on top of
// the closed 32-id CASM set to give codegen somewhere to put runtime
// (non-constant) u32 arithmetic and ordering comparisons (spec §4.8's "U32
// -specific instruction encodings" table, §4.9's "recompose ... operate ...
// decompose" semantics).
//
// They deliberately sit outside ids 0-31: opcode.rs's AIR is built only
// against that closed range (spec §6, §9), and this module implements
// execution only, never a STARK prover (see DESIGN.md) — so there is no
// AIR these ids need to round-trip against. The closed range has no
// shift/bitwise/range-check primitive a felt-only sequence could use to
// extract a carry bit from a limb sum without one, so recompose/operate
// /decompose happens directly in Go over the reconstructed uint32, the way
// a real prover's range-check builtin would be relied on to attest to
// out-of-circuit, but that this module has no circuit to satisfy.
const (
	U32AddFpFp Opcode = NumOpcodes + iota
	U32SubFpFp
	U32MulFpFp
	U32DivFpFp
	U32LessFpFp
)

// NumU32Opcodes is the size of the U32 extension band.
const NumU32Opcodes = 5

// u32Table mirrors Table's shape for the extended ops, indexed relative to
// NumOpcodes. Op0 and Op1 each address the base cell of a 2-limb (lo, hi)
// u32 operand; Op2 addresses a 2-limb destination for the arithmetic ops,
// or a single result cell for U32LessFpFp (spec §4.9: "comparisons produce
// ... one ... in a single destination cell"). The access pattern below
// records only the base cell of each operand, the granularity this
// module's prover-less trace recording already works at.
var u32Table = [NumU32Opcodes]OpcodeInfo{
	{U32AddFpFp, "U32AddFpFp", [3]MemoryAccess{Read, Read, Write}},
	{U32SubFpFp, "U32SubFpFp", [3]MemoryAccess{Read, Read, Write}},
	{U32MulFpFp, "U32MulFpFp", [3]MemoryAccess{Read, Read, Write}},
	{U32DivFpFp, "U32DivFpFp", [3]MemoryAccess{Read, Read, Write}},
	{U32LessFpFp, "U32LessFpFp", [3]MemoryAccess{Read, Read, Write}},
}
