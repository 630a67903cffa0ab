package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// oneBlockFn builds a single-block function and advances its internal
// value counter past every Result already used, so a later NextValue()
// call (e.g. from Legalize) never collides with an existing value.
func oneBlockFn(instrs []mir.Instr, term mir.Terminator) *mir.Function {
	fn := &mir.Function{Name: "f", Blocks: []*mir.Block{{Instrs: instrs, Terminator: term}}}
	max := mir.ValueId(-1)
	for _, in := range instrs {
		if in.Result > max {
			max = in.Result
		}
	}
	for i := mir.ValueId(0); i <= max; i++ {
		fn.NextValue()
	}
	return fn
}

func TestConstantFoldAddition(t *testing.T) {
	a := mir.Instr{Result: 0, Op: mir.OpConstFelt, Const: 2}
	b := mir.Instr{Result: 1, Op: mir.OpConstFelt, Const: 3}
	sum := mir.Instr{Result: 2, Op: mir.OpBinary, BinOp: "+", Operands: []mir.ValueId{0, 1}}
	fn := oneBlockFn([]mir.Instr{a, b, sum}, mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 2})

	changed := (&ConstantFold{}).Run(fn)
	require.True(t, changed)
	require.Equal(t, mir.OpConstFelt, fn.Blocks[0].Instrs[2].Op)
	require.Equal(t, int64(5), fn.Blocks[0].Instrs[2].Const)
}

func TestArithSimplifyAddZero(t *testing.T) {
	x := mir.Instr{Result: 0, Op: mir.OpParam}
	zero := mir.Instr{Result: 1, Op: mir.OpConstFelt, Const: 0}
	add := mir.Instr{Result: 2, Op: mir.OpBinary, BinOp: "+", Operands: []mir.ValueId{0, 1}}
	ret := mir.Instr{Result: 3, Op: mir.OpUnary, BinOp: "+", Operands: []mir.ValueId{2}}
	fn := oneBlockFn([]mir.Instr{x, zero, add, ret}, mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 3})

	changed := (&ArithSimplify{}).Run(fn)
	require.True(t, changed)
	// every reference to the folded add's result (2) should now read 0 (the param)
	require.Equal(t, mir.ValueId(0), fn.Blocks[0].Instrs[3].Operands[0])
}

func TestBranchSimplifyConstantCondition(t *testing.T) {
	cond := mir.Instr{Result: 0, Op: mir.OpConstBool, Const: 1}
	fn := oneBlockFn([]mir.Instr{cond}, mir.Terminator{Kind: mir.TermBranch, Cond: 0, Then: 1, Else: 2})
	fn.Blocks = append(fn.Blocks,
		&mir.Block{Terminator: mir.Terminator{Kind: mir.TermReturn}},
		&mir.Block{Terminator: mir.Terminator{Kind: mir.TermReturn}})

	changed := (&BranchSimplify{}).Run(fn)
	require.True(t, changed)
	require.Equal(t, mir.TermJump, fn.Blocks[0].Terminator.Kind)
	require.Equal(t, mir.BlockId(1), fn.Blocks[0].Terminator.Target)
}

func TestCopyPropagationCollapsesUnanimousPhi(t *testing.T) {
	v := mir.Instr{Result: 0, Op: mir.OpParam}
	phi := mir.Instr{Result: 1, Op: mir.OpPhi, PhiEdges: []mir.PhiEdge{{Block: 0, Value: 0}, {Block: 1, Value: 0}}}
	use := mir.Instr{Result: 2, Op: mir.OpUnary, BinOp: "+", Operands: []mir.ValueId{1}}
	fn := oneBlockFn([]mir.Instr{v, phi, use}, mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 2})

	changed := (&CopyPropagation{}).Run(fn)
	require.True(t, changed)
	require.Equal(t, mir.ValueId(0), fn.Blocks[0].Instrs[2].Operands[0])
}

// multiBlockFn builds a function from pre-built blocks, advancing the
// value counter past every Result so a later NextValue() (PhiElimination's
// cycle-breaking temp) never collides with an existing value.
func multiBlockFn(blocks []*mir.Block) *mir.Function {
	fn := &mir.Function{Name: "f", Blocks: blocks}
	max := mir.ValueId(-1)
	for _, blk := range blocks {
		for _, in := range blk.Instrs {
			if in.Result > max {
				max = in.Result
			}
		}
	}
	for i := mir.ValueId(0); i <= max; i++ {
		fn.NextValue()
	}
	return fn
}

func hasOp(instrs []mir.Instr, op mir.Op) bool {
	for _, in := range instrs {
		if in.Op == op {
			return true
		}
	}
	return false
}

func TestPhiEliminationRemovesPhiAndInsertsCopies(t *testing.T) {
	// block0, block1 both jump into block2, which phi-merges their value.
	block0 := &mir.Block{
		Instrs:     []mir.Instr{{Result: 0, Op: mir.OpConstFelt, Const: 1}},
		Terminator: mir.Terminator{Kind: mir.TermJump, Target: 2},
	}
	block1 := &mir.Block{
		Instrs:     []mir.Instr{{Result: 1, Op: mir.OpConstFelt, Const: 2}},
		Terminator: mir.Terminator{Kind: mir.TermJump, Target: 2},
	}
	block2 := &mir.Block{
		Instrs: []mir.Instr{
			{Result: 2, Op: mir.OpPhi, Type: types.Felt, PhiEdges: []mir.PhiEdge{{Block: 0, Value: 0}, {Block: 1, Value: 1}}},
		},
		Terminator: mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 2},
	}
	fn := multiBlockFn([]*mir.Block{block0, block1, block2})

	changed := (&PhiElimination{}).Run(fn)
	require.True(t, changed)
	require.False(t, hasOp(fn.Blocks[2].Instrs, mir.OpPhi))
	require.True(t, hasOp(fn.Blocks[0].Instrs, mir.OpCopy))
	require.True(t, hasOp(fn.Blocks[1].Instrs, mir.OpCopy))
}

func TestPhiEliminationSplitsCriticalEdge(t *testing.T) {
	// block0 branches to block1 (merge point, 2 preds) or block2, which
	// reaches block1 through block3. block1's merge phi also receives a
	// value along the block3->block1 edge.
	block0 := &mir.Block{
		Instrs:     []mir.Instr{{Result: 0, Op: mir.OpConstBool, Const: 1}},
		Terminator: mir.Terminator{Kind: mir.TermBranch, Cond: 0, Then: 1, Else: 2},
	}
	block1 := &mir.Block{
		Instrs: []mir.Instr{
			{Result: 1, Op: mir.OpPhi, Type: types.Felt, PhiEdges: []mir.PhiEdge{{Block: 0, Value: 0}, {Block: 3, Value: 0}}},
		},
		Terminator: mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 1},
	}
	block2 := &mir.Block{Terminator: mir.Terminator{Kind: mir.TermJump, Target: 3}}
	block3 := &mir.Block{Terminator: mir.Terminator{Kind: mir.TermJump, Target: 1}}
	fn := multiBlockFn([]*mir.Block{block0, block1, block2, block3})

	changed := splitCriticalEdges(fn)
	require.True(t, changed)
	require.Len(t, fn.Blocks, 5)
	require.NotEqual(t, mir.BlockId(1), fn.Blocks[0].Terminator.Then)
	newBlock := fn.Blocks[fn.Blocks[0].Terminator.Then]
	require.Equal(t, mir.TermJump, newBlock.Terminator.Kind)
	require.Equal(t, mir.BlockId(1), newBlock.Terminator.Target)
	require.Equal(t, fn.Blocks[0].Terminator.Then, fn.Blocks[1].Instrs[0].PhiEdges[0].Block)
}

func TestPhiEliminationBreaksLoopHeaderSwapCycle(t *testing.T) {
	// A loop header with two phis whose back-edge values swap each other
	// (mir/build.go's lowerWhile shape): the header's phi2 takes phi3's
	// prior value and vice versa along the back edge from the body block.
	// Block layout: 0=entry, 1=header, 2=body (back edge), 3=exit.
	entry := &mir.Block{
		Instrs: []mir.Instr{
			{Result: 0, Op: mir.OpConstFelt, Const: 1},
			{Result: 1, Op: mir.OpConstFelt, Const: 2},
		},
		Terminator: mir.Terminator{Kind: mir.TermJump, Target: 1},
	}
	header := &mir.Block{
		Instrs: []mir.Instr{
			{Result: 2, Op: mir.OpPhi, Type: types.Felt, PhiEdges: []mir.PhiEdge{{Block: 0, Value: 0}, {Block: 2, Value: 3}}},
			{Result: 3, Op: mir.OpPhi, Type: types.Felt, PhiEdges: []mir.PhiEdge{{Block: 0, Value: 1}, {Block: 2, Value: 2}}},
		},
		Terminator: mir.Terminator{Kind: mir.TermBranch, Cond: 2, Then: 2, Else: 3},
	}
	body := &mir.Block{Terminator: mir.Terminator{Kind: mir.TermJump, Target: 1}}
	exit := &mir.Block{Terminator: mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 2}}
	fn := multiBlockFn([]*mir.Block{entry, header, body, exit})

	changed := (&PhiElimination{}).Run(fn)
	require.True(t, changed)
	require.False(t, hasOp(fn.Blocks[1].Instrs, mir.OpPhi))
	// the swap can only be resolved with a rescue temp beyond the two
	// original phi results (2 and 3)
	maxResult := mir.ValueId(0)
	for _, in := range fn.Blocks[2].Instrs {
		if in.Result > maxResult {
			maxResult = in.Result
		}
	}
	require.Greater(t, maxResult, mir.ValueId(3))
}

func TestLegalizeU32NotEqual(t *testing.T) {
	a := mir.Instr{Result: 0, Op: mir.OpParam, Type: types.U32}
	b := mir.Instr{Result: 1, Op: mir.OpParam, Type: types.U32}
	neq := mir.Instr{Result: 2, Op: mir.OpBinary, Type: types.U32, BinOp: "!=", Operands: []mir.ValueId{0, 1}}
	fn := oneBlockFn([]mir.Instr{a, b, neq}, mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 2})

	Legalize(&mir.Module{Functions: []*mir.Function{fn}})

	instrs := fn.Blocks[0].Instrs
	require.Len(t, instrs, 4)
	require.Equal(t, "==", instrs[2].BinOp)
	require.Equal(t, mir.OpUnary, instrs[3].Op)
	require.Equal(t, "!", instrs[3].BinOp)
	require.Equal(t, mir.ValueId(2), fn.Blocks[0].Instrs[3].Result)
}

func TestLegalizeU32GreaterSwapsOperands(t *testing.T) {
	a := mir.Instr{Result: 0, Op: mir.OpParam, Type: types.U32}
	b := mir.Instr{Result: 1, Op: mir.OpParam, Type: types.U32}
	gt := mir.Instr{Result: 2, Op: mir.OpBinary, Type: types.U32, BinOp: ">", Operands: []mir.ValueId{0, 1}}
	fn := oneBlockFn([]mir.Instr{a, b, gt}, mir.Terminator{Kind: mir.TermReturn, HasValue: true, Value: 2})

	Legalize(&mir.Module{Functions: []*mir.Function{fn}})

	got := fn.Blocks[0].Instrs[2]
	require.Equal(t, "<", got.BinOp)
	require.Equal(t, []mir.ValueId{1, 0}, got.Operands)
}
