package codegen

import (
	"testing"

	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
	"github.com/cairo-m/cairom/internal/cairom/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run loads a linked Module into fresh memory, wraps its entry function's
// frame with the synthetic self-returning scratch cells pkg/cairom's Run
// sets up for a real entry point, and executes it to completion.
func run(t *testing.T, mod *Module, fn *mir.Function, args ...uint32) (*vm.State, uint32) {
	t.Helper()
	mem := vm.NewDefaultPagedMemory()
	for pc, ins := range mod.Instructions {
		mem.Set(uint32(pc), ins.Encode())
	}

	codeEnd := uint32(len(mod.Instructions))
	mem.Set(codeEnd, core.FromFelt(core.NewFelt(0)))
	mem.Set(codeEnd+1, core.FromFelt(core.NewFelt(codeEnd+2)))
	frameBase := codeEnd + 2
	for i, a := range args {
		mem.Set(frameBase+uint32(i), core.FromFelt(core.NewFelt(a)))
	}

	st := vm.NewState(mem, mod.FunctionPCs[fn.ID], frameBase)
	_, err := st.Run(1000)
	require.NoError(t, err)
	require.True(t, st.Halted)
	return st, frameBase
}

func getFelt(t *testing.T, mem *vm.PagedMemory, addr uint32) uint32 {
	t.Helper()
	w, ok := mem.Get(addr)
	require.True(t, ok)
	return w.AsFelt().Value()
}

// buildModule is a tiny helper assembling a one-function mir.Module for
// the tests below, mirroring the shape mir.Build produces.
func buildModule(fn *mir.Function, tbl *types.Table) *mir.Module {
	return &mir.Module{Functions: []*mir.Function{fn}, Types: tbl}
}

func TestBuildLayoutParamsAndScratch(t *testing.T) {
	tbl := types.NewTable()
	fn := &mir.Function{
		ID:      0,
		Name:    "add",
		Params:  []mir.ValueId{0, 1},
		RetType: types.Felt,
		Blocks: []*mir.Block{{
			Instrs: []mir.Instr{
				{Result: 0, Op: mir.OpParam, Type: types.Felt},
				{Result: 1, Op: mir.OpParam, Type: types.Felt},
				{Result: 2, Op: mir.OpBinary, Type: types.Felt, Operands: []mir.ValueId{0, 1}, BinOp: "+"},
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 2, HasValue: true},
		}},
	}

	l := BuildLayout(fn, tbl)
	assert.Equal(t, int32(0), l.Slots[0])
	assert.Equal(t, int32(1), l.Slots[1])
	assert.Equal(t, int32(2), l.Slots[2])
	assert.Equal(t, int32(3), l.ScratchBase)
	assert.Equal(t, int32(3+scratchCells), l.FrameSize)
}

func TestBuildAddTwoFelts(t *testing.T) {
	tbl := types.NewTable()
	fn := &mir.Function{
		ID:      0,
		Name:    "add",
		Params:  []mir.ValueId{0, 1},
		RetType: types.Felt,
		Blocks: []*mir.Block{{
			Instrs: []mir.Instr{
				{Result: 0, Op: mir.OpParam, Type: types.Felt},
				{Result: 1, Op: mir.OpParam, Type: types.Felt},
				{Result: 2, Op: mir.OpBinary, Type: types.Felt, Operands: []mir.ValueId{0, 1}, BinOp: "+"},
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 2, HasValue: true},
		}},
	}

	mod, err := Build(buildModule(fn, tbl))
	require.NoError(t, err)

	st, frameBase := run(t, mod, fn, 7, 35)
	assert.Equal(t, uint32(42), getFelt(t, st.Memory, frameBase))
}

// TestBuildEqualityBranch covers felt equality materialization: a
// single-block function returning 1 when its felt parameter equals 0, else
// 0, exercising the branch materializeZeroTest emits inside one MIR block.
func TestBuildEqualityBranch(t *testing.T) {
	tbl := types.NewTable()
	fn := &mir.Function{
		ID:      0,
		Name:    "isZero",
		Params:  []mir.ValueId{0},
		RetType: types.Bool,
		Blocks: []*mir.Block{
			{
				Instrs: []mir.Instr{
					{Result: 0, Op: mir.OpParam, Type: types.Felt},
					{Result: 1, Op: mir.OpConstFelt, Type: types.Felt, Const: 0},
					{Result: 2, Op: mir.OpBinary, Type: types.Felt, Operands: []mir.ValueId{0, 1}, BinOp: "=="},
				},
				Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 2, HasValue: true},
			},
		},
	}

	mod, err := Build(buildModule(fn, tbl))
	require.NoError(t, err)

	st, frameBase := run(t, mod, fn, 0)
	assert.Equal(t, uint32(1), getFelt(t, st.Memory, frameBase))

	st, frameBase = run(t, mod, fn, 9)
	assert.Equal(t, uint32(0), getFelt(t, st.Memory, frameBase))
}

// TestBuildCallsBetweenFunctions exercises the two-function link path:
// caller invokes callee(x) = x + 1 and returns its result unchanged.
func TestBuildCallsBetweenFunctions(t *testing.T) {
	tbl := types.NewTable()
	callee := &mir.Function{
		ID:      0,
		Name:    "increment",
		Params:  []mir.ValueId{0},
		RetType: types.Felt,
		Blocks: []*mir.Block{{
			Instrs: []mir.Instr{
				{Result: 0, Op: mir.OpParam, Type: types.Felt},
				{Result: 1, Op: mir.OpConstFelt, Type: types.Felt, Const: 1},
				{Result: 2, Op: mir.OpBinary, Type: types.Felt, Operands: []mir.ValueId{0, 1}, BinOp: "+"},
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 2, HasValue: true},
		}},
	}
	caller := &mir.Function{
		ID:      1,
		Name:    "callIncrement",
		Params:  []mir.ValueId{0},
		RetType: types.Felt,
		Blocks: []*mir.Block{{
			Instrs: []mir.Instr{
				{Result: 0, Op: mir.OpParam, Type: types.Felt},
				{Result: 1, Op: mir.OpCall, Type: types.Felt, Operands: []mir.ValueId{0}, Callee: 0},
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 1, HasValue: true},
		}},
	}

	mod, err := Build(&mir.Module{Functions: []*mir.Function{callee, caller}, Types: tbl})
	require.NoError(t, err)

	st, frameBase := run(t, mod, caller, 41)
	assert.Equal(t, uint32(42), getFelt(t, st.Memory, frameBase))
}

// runU32 lowers fn (a two-u32-parameter function), writes a and b into the
// frame as 2-limb pairs, runs it to completion, and returns the
// reconstructed u32 at the return slot.
func runU32(t *testing.T, fn *mir.Function, tbl *types.Table, a, b uint32) uint32 {
	t.Helper()
	mod, err := Build(buildModule(fn, tbl))
	require.NoError(t, err)

	mem := vm.NewDefaultPagedMemory()
	for pc, ins := range mod.Instructions {
		mem.Set(uint32(pc), ins.Encode())
	}
	codeEnd := uint32(len(mod.Instructions))
	mem.Set(codeEnd, core.FromFelt(core.NewFelt(0)))
	mem.Set(codeEnd+1, core.FromFelt(core.NewFelt(codeEnd+2)))
	frameBase := codeEnd + 2

	setU32 := func(addr uint32, v uint32) {
		mem.Set(addr, core.FromFelt(core.NewFelt(v&0xFFFF)))
		mem.Set(addr+1, core.FromFelt(core.NewFelt(v>>16)))
	}
	setU32(frameBase, a)
	setU32(frameBase+2, b)

	st := vm.NewState(mem, mod.FunctionPCs[fn.ID], frameBase)
	_, err = st.Run(1000)
	require.NoError(t, err)
	require.True(t, st.Halted)

	lo := getFelt(t, st.Memory, frameBase)
	hi := getFelt(t, st.Memory, frameBase+1)
	return lo | hi<<16
}

func u32BinaryFn(name string, retType types.TypeId, binOp string) *mir.Function {
	return &mir.Function{
		ID:      0,
		Name:    name,
		Params:  []mir.ValueId{0, 1},
		RetType: retType,
		Blocks: []*mir.Block{{
			Instrs: []mir.Instr{
				{Result: 0, Op: mir.OpParam, Type: types.U32},
				{Result: 1, Op: mir.OpParam, Type: types.U32},
				{Result: 2, Op: mir.OpBinary, Type: retType, Operands: []mir.ValueId{0, 1}, BinOp: binOp},
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 2, HasValue: true},
		}},
	}
}

// TestLowerBinaryU32RuntimeMultiplyWraps covers spec §8's u32 multiply
// wraparound scenario: mul(4294967295, 2) wraps mod 2^32 to 4294967294.
// Both operands are runtime parameters, so ConstantFold cannot have
// resolved this before codegen ever sees it.
func TestLowerBinaryU32RuntimeMultiplyWraps(t *testing.T) {
	tbl := types.NewTable()
	fn := u32BinaryFn("mulU32", types.U32, "*")
	got := runU32(t, fn, tbl, 4294967295, 2)
	assert.Equal(t, uint32(4294967294), got)
}

// TestLowerBinaryU32RuntimeArithmetic covers the other three arithmetic
// operators on runtime (non-constant) u32 operands.
func TestLowerBinaryU32RuntimeArithmetic(t *testing.T) {
	tbl := types.NewTable()

	add := u32BinaryFn("addU32", types.U32, "+")
	assert.Equal(t, uint32(42), runU32(t, add, tbl, 17, 25))

	sub := u32BinaryFn("subU32", types.U32, "-")
	assert.Equal(t, uint32(0xFFFFFFFF), runU32(t, sub, tbl, 0, 1))

	div := u32BinaryFn("divU32", types.U32, "/")
	assert.Equal(t, uint32(3), runU32(t, div, tbl, 10, 3))
}

// TestLowerBinaryU32OrderingComparisons covers the canonical U32Less
// lowering and its derived forms (<=, >, >=), normalized the way
// legalize.rs canonicalizes u32 comparisons down to strict Less.
func TestLowerBinaryU32OrderingComparisons(t *testing.T) {
	tbl := types.NewTable()

	lt := u32BinaryFn("ltU32", types.Bool, "<")
	assert.Equal(t, uint32(1), runU32(t, lt, tbl, 3, 5))
	assert.Equal(t, uint32(0), runU32(t, lt, tbl, 5, 3))

	le := u32BinaryFn("leU32", types.Bool, "<=")
	assert.Equal(t, uint32(1), runU32(t, le, tbl, 5, 5))
	assert.Equal(t, uint32(0), runU32(t, le, tbl, 6, 5))

	gt := u32BinaryFn("gtU32", types.Bool, ">")
	assert.Equal(t, uint32(1), runU32(t, gt, tbl, 5, 3))
	assert.Equal(t, uint32(0), runU32(t, gt, tbl, 3, 5))

	ge := u32BinaryFn("geU32", types.Bool, ">=")
	assert.Equal(t, uint32(1), runU32(t, ge, tbl, 5, 5))
	assert.Equal(t, uint32(0), runU32(t, ge, tbl, 4, 5))
}

// TestLowerBinaryRejectsFeltOrderingComparison: codegen still refuses
// ordering comparisons on felt operands (spec §4.8: "felt comparisons
// other than equality" are unsupported). Only u32 gets U32LessFpFp.
func TestLowerBinaryRejectsFeltOrderingComparison(t *testing.T) {
	tbl := types.NewTable()
	fn := &mir.Function{
		ID:      0,
		Name:    "lessThan",
		Params:  []mir.ValueId{0, 1},
		RetType: types.Bool,
		Blocks: []*mir.Block{{
			Instrs: []mir.Instr{
				{Result: 0, Op: mir.OpParam, Type: types.Felt},
				{Result: 1, Op: mir.OpParam, Type: types.Felt},
				{Result: 2, Op: mir.OpBinary, Type: types.Bool, Operands: []mir.ValueId{0, 1}, BinOp: "<"},
			},
			Terminator: mir.Terminator{Kind: mir.TermReturn, Value: 2, HasValue: true},
		}},
	}

	_, err := Build(buildModule(fn, tbl))
	require.Error(t, err)
	var cgErr *Error
	require.ErrorAs(t, err, &cgErr)
	assert.Equal(t, "lessThan", cgErr.Function)
}
