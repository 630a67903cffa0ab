package optimize

import (
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// Legalize rewrites MIR into the shape codegen's instruction selector
// expects, grounded on
// original_source/crates/compiler/codegen/src/mir_passes/legalize.rs:
//
//   - commutative binary ops get their immediate operand canonicalized to
//     the right, since the CASM *FpImm opcodes only take an immediate in
//     the second slot;
//   - u32 Neq has no dedicated opcode: `a != b` legalizes to
//     `t = (a == b); dest = !t`;
//   - u32 Greater/GreaterEqual have no dedicated opcode either: they
//     legalize to the Less/LessEqual opcode with operands swapped.
//
// Legalize runs once, after the optimizer's fixed-point passes, directly
// ahead of instruction selection.
func Legalize(mod *mir.Module) {
	for _, fn := range mod.Functions {
		legalizeFunction(fn)
	}
}

var commutative = map[string]bool{"+": true, "*": true, "==": true, "!=": true}

func legalizeFunction(fn *mir.Function) {
	for _, blk := range fn.Blocks {
		out := make([]mir.Instr, 0, len(blk.Instrs))
		for _, in := range blk.Instrs {
			out = append(out, legalizeInstr(fn, &in)...)
		}
		blk.Instrs = out
	}
}

func legalizeInstr(fn *mir.Function, in *mir.Instr) []mir.Instr {
	// A comparison's own Type is Bool, so the u32 test looks at the left
	// operand's defining instruction instead.
	u32Operands := false
	if in.Op == mir.OpBinary && len(in.Operands) == 2 {
		if lhs, ok := defOf(fn, in.Operands[0]); ok && lhs.Type == types.U32 {
			u32Operands = true
		}
	}
	if !u32Operands {
		canonicalizeImmediate(fn, in)
		return []mir.Instr{*in}
	}
	switch in.BinOp {
	case "!=":
		eq := mir.Instr{Result: fn.NextValue(), Op: mir.OpBinary, Type: in.Type, BinOp: "==", Operands: in.Operands}
		not := mir.Instr{Result: in.Result, Op: mir.OpUnary, Type: in.Type, BinOp: "!", Operands: []mir.ValueId{eq.Result}}
		return []mir.Instr{eq, not}
	case ">":
		swapped := *in
		swapped.BinOp = "<"
		swapped.Operands = []mir.ValueId{in.Operands[1], in.Operands[0]}
		return []mir.Instr{swapped}
	case ">=":
		swapped := *in
		swapped.BinOp = "<="
		swapped.Operands = []mir.ValueId{in.Operands[1], in.Operands[0]}
		return []mir.Instr{swapped}
	default:
		canonicalizeImmediate(fn, in)
		return []mir.Instr{*in}
	}
}

// canonicalizeImmediate swaps a commutative binary op's operands so that
// an immediate operand, if any, ends up on the right.
func canonicalizeImmediate(fn *mir.Function, in *mir.Instr) {
	if in.Op != mir.OpBinary || len(in.Operands) != 2 || !commutative[in.BinOp] {
		return
	}
	_, leftConst := constOf(fn, in.Operands[0])
	_, rightConst := constOf(fn, in.Operands[1])
	if leftConst && !rightConst {
		in.Operands[0], in.Operands[1] = in.Operands[1], in.Operands[0]
	}
}
