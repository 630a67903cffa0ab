package codegen

import (
	"fmt"

	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
	"github.com/cairo-m/cairom/internal/cairom/vm"
)

// pseudoKind distinguishes a fully-resolved instruction from one whose
// target still needs the two-phase label resolution codegen.go performs
// once every function's size is known.
type pseudoKind int

const (
	pInstr        pseudoKind = iota // ins is ready to emit as-is
	pJumpBlock                      // unconditional jump to a block in the same function (JmpAbsImm, Op0 patched)
	pCallFunction                   // call to another function (CallAbsImm, Op2 patched)
)

type pseudo struct {
	kind        pseudoKind
	ins         vm.Instruction
	targetBlock mir.BlockId
	targetFunc  mir.FunctionId
}

// fnBuilder lowers one MIR function into a flat pseudo-instruction stream.
type fnBuilder struct {
	fn         *mir.Function
	layout     *FunctionLayout
	tbl        *types.Table
	out        []pseudo
	blockStart []int32
}

func selectFunction(fn *mir.Function, layout *FunctionLayout, tbl *types.Table) ([]pseudo, []int32, error) {
	b := &fnBuilder{fn: fn, layout: layout, tbl: tbl, blockStart: make([]int32, len(fn.Blocks))}
	for bid, blk := range fn.Blocks {
		if err := b.lowerBlock(mir.BlockId(bid), blk); err != nil {
			return nil, nil, err
		}
	}
	return b.out, b.blockStart, nil
}

func (b *fnBuilder) errf(format string, args ...any) error {
	return &Error{Function: b.fn.Name, Message: fmt.Sprintf(format, args...)}
}

func (b *fnBuilder) slot(v mir.ValueId) int32 {
	return b.layout.Slots[v]
}

func (b *fnBuilder) typeOf(v mir.ValueId) types.TypeId {
	in, ok := findDef(b.fn, v)
	if !ok {
		return types.UnknownType
	}
	return in.Type
}

func off(o int32) core.Felt  { return core.FeltFromSignedOffset(o) }
func imm(n int64) core.Felt  { return core.FeltFromInt64(n) }

// --- raw emission -----------------------------------------------------

func (b *fnBuilder) emit(ins vm.Instruction) {
	b.out = append(b.out, pseudo{kind: pInstr, ins: ins})
}

func (b *fnBuilder) emitStoreImm(value int64, dst int32) {
	b.emit(vm.Instruction{Op: vm.StoreImm, Op0: imm(value), Op2: off(dst)})
}

// emitCopy moves `size` contiguous cells from src to dst via the
// add-zero idiom (there's no plain move opcode in the instruction set).
func (b *fnBuilder) emitCopy(dst, src int32, size int32) {
	for i := int32(0); i < size; i++ {
		if dst+i == src+i {
			continue
		}
		b.emit(vm.Instruction{Op: vm.StoreAddFpImm, Op0: off(src + i), Op1: imm(0), Op2: off(dst + i)})
	}
}

func (b *fnBuilder) emitJumpBlock(target mir.BlockId) {
	b.out = append(b.out, pseudo{kind: pJumpBlock, ins: vm.Instruction{Op: vm.JmpAbsImm}, targetBlock: target})
}

func (b *fnBuilder) emitCallFunction(retOff, fpOff int32, target mir.FunctionId) {
	b.out = append(b.out, pseudo{
		kind:       pCallFunction,
		ins:        vm.Instruction{Op: vm.CallAbsImm, Op0: off(retOff), Op1: off(fpOff)},
		targetFunc: target,
	})
}

// reserveJnz appends a JnzFpImm whose relative offset isn't known yet
// (the branch target is a handful of instructions further down, emitted
// next) and returns its index in b.out for patchRelJnz to fill in.
func (b *fnBuilder) reserveJnz(condOff int32) int {
	idx := len(b.out)
	b.emit(vm.Instruction{Op: vm.JnzFpImm, Op0: off(condOff)})
	return idx
}

func (b *fnBuilder) patchRelJnz(idx int, targetIdx int) {
	b.out[idx].ins.Op1 = imm(int64(targetIdx - idx))
}

func (b *fnBuilder) reserveJmpRel() int {
	idx := len(b.out)
	b.emit(vm.Instruction{Op: vm.JmpRelImm})
	return idx
}

func (b *fnBuilder) patchRelJmp(idx int, targetIdx int) {
	b.out[idx].ins.Op0 = imm(int64(targetIdx - idx))
}

// --- boolean materialization -------------------------------------------

// materializeZeroTest writes whenZero into dst if the felt at diffOff is
// zero, whenNonZero otherwise. diffOff is allowed to alias dst (the
// common case: the diff is computed directly into the result slot) since
// the Jnz test reads diffOff before anything writes dst.
func (b *fnBuilder) materializeZeroTest(diffOff, dst int32, whenZero, whenNonZero int64) {
	jnzIdx := b.reserveJnz(diffOff)
	b.emitStoreImm(whenZero, dst)
	jmpIdx := b.reserveJmpRel()
	nonZeroIdx := len(b.out)
	b.emitStoreImm(whenNonZero, dst)
	endIdx := len(b.out)
	b.patchRelJnz(jnzIdx, nonZeroIdx)
	b.patchRelJmp(jmpIdx, endIdx)
}

// materializeAllZero writes whenAllZero into dst if every felt in diffs is
// zero, whenNot otherwise: a short-circuiting chain of Jnz tests, the
// materialization a U32 equality compiles to (two independent limb
// diffs, neither of which alone decides the result).
func (b *fnBuilder) materializeAllZero(diffs []int32, dst int32, whenAllZero, whenNot int64) {
	b.emitStoreImm(whenAllZero, dst)
	jnzIdxs := make([]int, len(diffs))
	for i, d := range diffs {
		jnzIdxs[i] = b.reserveJnz(d)
	}
	jmpIdx := b.reserveJmpRel()
	setIdx := len(b.out)
	b.emitStoreImm(whenNot, dst)
	endIdx := len(b.out)
	for _, idx := range jnzIdxs {
		b.patchRelJnz(idx, setIdx)
	}
	b.patchRelJmp(jmpIdx, endIdx)
}

// negateBool writes 1-src into dst, src and dst both known to hold 0 or 1
// (e.g. the result of U32LessFpFp): the arithmetic form of "!" used to
// derive <=/>= from the canonical strict-less comparison.
func (b *fnBuilder) negateBool(src, dst int32) {
	b.emit(vm.Instruction{Op: vm.StoreMulFpImm, Op0: off(src), Op1: imm(-1), Op2: off(dst)})
	b.emit(vm.Instruction{Op: vm.StoreAddFpImm, Op0: off(dst), Op1: imm(1), Op2: off(dst)})
}

// --- instruction selection ----------------------------------------------

func (b *fnBuilder) lowerBlock(bid mir.BlockId, blk *mir.Block) error {
	b.blockStart[bid] = int32(len(b.out))
	for i := range blk.Instrs {
		in := &blk.Instrs[i]
		if in.Op == mir.OpPhi || in.Op == mir.OpParam {
			continue
		}
		if err := b.lowerInstr(in); err != nil {
			return err
		}
	}
	return b.lowerTerminator(bid, blk.Terminator)
}

func (b *fnBuilder) lowerTerminator(bid mir.BlockId, term mir.Terminator) error {
	switch term.Kind {
	case mir.TermReturn:
		return b.lowerReturn(term)
	case mir.TermJump:
		b.emitPhiCopies(bid, term.Target)
		b.emitJumpBlock(term.Target)
		return nil
	case mir.TermBranch:
		condOff := b.slot(term.Cond)
		jnzIdx := b.reserveJnz(condOff)
		b.emitPhiCopies(bid, term.Else)
		b.emitJumpBlock(term.Else)
		b.patchRelJnz(jnzIdx, len(b.out))
		b.emitPhiCopies(bid, term.Then)
		b.emitJumpBlock(term.Then)
		return nil
	default:
		return b.errf("unhandled terminator kind %d", term.Kind)
	}
}

// emitPhiCopies materializes every Phi at the head of `to` whose edge
// from `from` carries a value, writing it into the Phi's own slot (spec
// §4.6: the codegen-side resolution for Phis CopyPropagation/PhiElimination
// couldn't remove at the MIR level).
func (b *fnBuilder) emitPhiCopies(from, to mir.BlockId) {
	blk := b.fn.Blocks[to]
	for i := range blk.Instrs {
		in := &blk.Instrs[i]
		if in.Op != mir.OpPhi {
			continue
		}
		for _, e := range in.PhiEdges {
			if e.Block == from {
				b.emitCopy(b.slot(in.Result), b.slot(e.Value), int32(b.tbl.ValueSizeOf(in.Type)))
				break
			}
		}
	}
}

func (b *fnBuilder) lowerReturn(term mir.Terminator) error {
	if term.HasValue && b.fn.RetType != types.Unit {
		size := int32(b.tbl.ValueSizeOf(b.fn.RetType))
		b.emitCopy(0, b.slot(term.Value), size)
	}
	b.emit(vm.Instruction{Op: vm.Ret, Op0: off(-2), Op1: off(-1)})
	return nil
}

func (b *fnBuilder) lowerInstr(in *mir.Instr) error {
	dst := b.slot(in.Result)
	switch in.Op {
	case mir.OpConstFelt, mir.OpConstBool:
		b.emitStoreImm(in.Const, dst)
		return nil
	case mir.OpConstU32:
		u := uint32(in.Const)
		b.emitStoreImm(int64(u&0xFFFF), dst)
		b.emitStoreImm(int64(u>>16), dst+1)
		return nil
	case mir.OpCopy:
		b.emitCopy(dst, b.slot(in.Operands[0]), int32(b.tbl.ValueSizeOf(in.Type)))
		return nil
	case mir.OpUnary:
		return b.lowerUnary(in, dst)
	case mir.OpBinary:
		return b.lowerBinary(in, dst)
	case mir.OpCall:
		return b.lowerCall(in, dst)
	case mir.OpMakeTuple, mir.OpMakeArray:
		return b.lowerMake(in, dst)
	case mir.OpMakeStruct:
		return b.lowerMake(in, dst)
	case mir.OpExtractTupleElement:
		baseTy := b.typeOf(in.Operands[0])
		elemOff := b.tbl.TupleOffset(baseTy, int(in.Const))
		if elemOff < 0 {
			return b.errf("tuple index %d out of range", in.Const)
		}
		b.emitCopy(dst, b.slot(in.Operands[0])+int32(elemOff), int32(b.tbl.ValueSizeOf(in.Type)))
		return nil
	case mir.OpExtractStructField:
		baseTy := b.typeOf(in.Operands[0])
		fieldOff := b.tbl.FieldOffset(baseTy, in.Field)
		if fieldOff < 0 {
			return b.errf("unknown field %q", in.Field)
		}
		b.emitCopy(dst, b.slot(in.Operands[0])+int32(fieldOff), int32(b.tbl.ValueSizeOf(in.Type)))
		return nil
	case mir.OpArrayIndex:
		return b.lowerArrayIndex(in, dst)
	default:
		return b.errf("unhandled MIR op %d", in.Op)
	}
}

func (b *fnBuilder) lowerUnary(in *mir.Instr, dst int32) error {
	src := b.slot(in.Operands[0])
	switch in.BinOp {
	case "-":
		b.emit(vm.Instruction{Op: vm.StoreMulFpImm, Op0: off(src), Op1: imm(-1), Op2: off(dst)})
		return nil
	case "!":
		// !x, x boolean, is exactly "x == 0".
		if src != dst {
			b.emitCopy(dst, src, 1)
		}
		b.materializeZeroTest(dst, dst, 1, 0)
		return nil
	default:
		return b.errf("unhandled unary operator %q", in.BinOp)
	}
}

func (b *fnBuilder) lowerBinary(in *mir.Instr, dst int32) error {
	lhs, rhs := b.slot(in.Operands[0]), b.slot(in.Operands[1])
	opType := b.typeOf(in.Operands[0])

	switch in.BinOp {
	case "+", "-", "*", "/":
		if opType == types.U32 {
			op := map[string]vm.Opcode{"+": vm.U32AddFpFp, "-": vm.U32SubFpFp, "*": vm.U32MulFpFp, "/": vm.U32DivFpFp}[in.BinOp]
			b.emit(vm.Instruction{Op: op, Op0: off(lhs), Op1: off(rhs), Op2: off(dst)})
			return nil
		}
		op := map[string]vm.Opcode{"+": vm.StoreAddFpFp, "-": vm.StoreSubFpFp, "*": vm.StoreMulFpFp, "/": vm.StoreDivFpFp}[in.BinOp]
		b.emit(vm.Instruction{Op: op, Op0: off(lhs), Op1: off(rhs), Op2: off(dst)})
		return nil
	case "==", "!=":
		whenEq, whenNe := int64(1), int64(0)
		if in.BinOp == "!=" {
			whenEq, whenNe = 0, 1
		}
		if opType == types.U32 {
			scratch := b.layout.ScratchBase
			b.emit(vm.Instruction{Op: vm.StoreSubFpFp, Op0: off(lhs), Op1: off(rhs), Op2: off(scratch)})
			b.emit(vm.Instruction{Op: vm.StoreSubFpFp, Op0: off(lhs + 1), Op1: off(rhs + 1), Op2: off(scratch + 1)})
			b.materializeAllZero([]int32{scratch, scratch + 1}, dst, whenEq, whenNe)
			return nil
		}
		b.emit(vm.Instruction{Op: vm.StoreSubFpFp, Op0: off(lhs), Op1: off(rhs), Op2: off(dst)})
		b.materializeZeroTest(dst, dst, whenEq, whenNe)
		return nil
	case "<", "<=", ">", ">=":
		if opType != types.U32 {
			// Felt has no native ordering primitive and no u32-style limb
			// decomposition to fall back on; codegen refuses any felt
			// comparison other than equality (spec §4.8).
			return b.errf("unsupported felt comparison %q: only equality is supported on felt", in.BinOp)
		}
		// Normalize to U32LessFpFp the way legalize.rs's u32 comparison
		// canonicalization does: Greater swaps operands, the *Equal forms
		// negate the strict opposite.
		switch in.BinOp {
		case "<":
			b.emit(vm.Instruction{Op: vm.U32LessFpFp, Op0: off(lhs), Op1: off(rhs), Op2: off(dst)})
		case ">":
			b.emit(vm.Instruction{Op: vm.U32LessFpFp, Op0: off(rhs), Op1: off(lhs), Op2: off(dst)})
		case "<=":
			scratch := b.layout.ScratchBase
			b.emit(vm.Instruction{Op: vm.U32LessFpFp, Op0: off(rhs), Op1: off(lhs), Op2: off(scratch)})
			b.negateBool(scratch, dst)
		case ">=":
			scratch := b.layout.ScratchBase
			b.emit(vm.Instruction{Op: vm.U32LessFpFp, Op0: off(lhs), Op1: off(rhs), Op2: off(scratch)})
			b.negateBool(scratch, dst)
		}
		return nil
	default:
		return b.errf("unhandled binary operator %q", in.BinOp)
	}
}

func (b *fnBuilder) lowerMake(in *mir.Instr, dst int32) error {
	offset := int32(0)
	for _, operand := range in.Operands {
		size := int32(b.tbl.ValueSizeOf(b.typeOf(operand)))
		b.emitCopy(dst+offset, b.slot(operand), size)
		offset += size
	}
	return nil
}

func (b *fnBuilder) lowerArrayIndex(in *mir.Instr, dst int32) error {
	arr, idx := in.Operands[0], in.Operands[1]
	idxConst, ok := findDef(b.fn, idx)
	if !ok || idxConst.Op != mir.OpConstFelt {
		return b.errf("array index must be a compile-time constant (dynamic indexing needs a range-checked bounds proof this module does not implement)")
	}
	elemSize := int32(b.tbl.ValueSizeOf(in.Type))
	b.emitCopy(dst, b.slot(arr)+int32(idxConst.Const)*elemSize, elemSize)
	return nil
}

func (b *fnBuilder) lowerCall(in *mir.Instr, dst int32) error {
	scratch, ok := b.layout.CallSites[in.Result]
	if !ok {
		return b.errf("call site missing layout")
	}
	argsBase := dst
	offset := int32(0)
	for _, a := range in.Operands {
		size := int32(b.tbl.ValueSizeOf(b.typeOf(a)))
		b.emitCopy(argsBase+offset, b.slot(a), size)
		offset += size
	}
	b.emitCallFunction(scratch, scratch+1, in.Callee)
	return nil
}
