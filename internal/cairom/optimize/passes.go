package optimize

import (
	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// constOf returns the instruction defining v, if v is a block-local
// constant producer (OpConstFelt or OpConstBool), scanning every block
// since MIR values aren't dominance-indexed here.
func constOf(fn *mir.Function, v mir.ValueId) (*mir.Instr, bool) {
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Result == v && (in.Op == mir.OpConstFelt || in.Op == mir.OpConstBool) {
				return in, true
			}
		}
	}
	return nil, false
}

func defOf(fn *mir.Function, v mir.ValueId) (*mir.Instr, bool) {
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			if blk.Instrs[i].Result == v {
				return &blk.Instrs[i], true
			}
		}
	}
	return nil, false
}

// replaceValue rewrites every reference to old (in instruction operands,
// phi edges, and block terminators) to new, used whenever a pass proves
// two values are interchangeable.
func replaceValue(fn *mir.Function, old, new mir.ValueId) {
	if old == new {
		return
	}
	sub := func(v mir.ValueId) mir.ValueId {
		if v == old {
			return new
		}
		return v
	}
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			for j := range in.Operands {
				in.Operands[j] = sub(in.Operands[j])
			}
			for j := range in.PhiEdges {
				in.PhiEdges[j].Value = sub(in.PhiEdges[j].Value)
			}
		}
		if blk.Terminator.HasValue {
			blk.Terminator.Value = sub(blk.Terminator.Value)
		}
		blk.Terminator.Cond = sub(blk.Terminator.Cond)
	}
}

// ConstantFold evaluates binary/unary operations whose operands are both
// compile-time constants, turning the instruction itself into the folded
// constant (its Result ValueId is unchanged, so every existing reference
// to it automatically observes the new value).
type ConstantFold struct{}

func (*ConstantFold) Name() string { return "const-fold" }

func (p *ConstantFold) Run(fn *mir.Function) bool {
	changed := false
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Op != mir.OpBinary && in.Op != mir.OpUnary {
				continue
			}
			if in.Op == mir.OpUnary {
				a, ok := constOf(fn, in.Operands[0])
				if !ok {
					continue
				}
				if in.BinOp == "-" {
					in.Op, in.Const, in.Operands = mir.OpConstFelt, -a.Const, nil
					changed = true
				}
				continue
			}
			a, aok := constOf(fn, in.Operands[0])
			b, bok := constOf(fn, in.Operands[1])
			if !aok || !bok {
				continue
			}
			result, resultOp, ok := foldBinary(in.BinOp, a.Const, b.Const)
			if !ok {
				continue
			}
			in.Op, in.Const, in.Operands = resultOp, result, nil
			changed = true
		}
	}
	return changed
}

func foldBinary(op string, a, b int64) (int64, mir.Op, bool) {
	switch op {
	case "+":
		return a + b, mir.OpConstFelt, true
	case "-":
		return a - b, mir.OpConstFelt, true
	case "*":
		return a * b, mir.OpConstFelt, true
	case "/":
		q, err := core.FeltFromInt64(a).Div(core.FeltFromInt64(b))
		if err != nil {
			return 0, mir.OpConstFelt, false
		}
		return int64(q.Value()), mir.OpConstFelt, true
	case "==":
		return boolConst(a == b), mir.OpConstBool, true
	case "!=":
		return boolConst(a != b), mir.OpConstBool, true
	case "<":
		return boolConst(a < b), mir.OpConstBool, true
	case "<=":
		return boolConst(a <= b), mir.OpConstBool, true
	case ">":
		return boolConst(a > b), mir.OpConstBool, true
	case ">=":
		return boolConst(a >= b), mir.OpConstBool, true
	default:
		return 0, mir.OpConstFelt, false
	}
}

func boolConst(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// AggregateFold folds an extract/index operation whose base is a known
// aggregate constructor (OpMakeTuple/OpMakeStruct/OpMakeArray) directly to
// the corresponding element, eliminating the intermediate aggregate.
type AggregateFold struct{}

func (*AggregateFold) Name() string { return "aggregate-fold" }

func (p *AggregateFold) Run(fn *mir.Function) bool {
	changed := false
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			switch in.Op {
			case mir.OpExtractTupleElement:
				base, ok := defOf(fn, in.Operands[0])
				if !ok || base.Op != mir.OpMakeTuple || int(in.Const) >= len(base.Operands) {
					continue
				}
				replaceValue(fn, in.Result, base.Operands[in.Const])
				changed = true
			case mir.OpArrayIndex:
				base, ok := defOf(fn, in.Operands[0])
				if !ok || base.Op != mir.OpMakeArray {
					continue
				}
				idxConst, ok := constOf(fn, in.Operands[1])
				if !ok || int(idxConst.Const) >= len(base.Operands) {
					continue
				}
				replaceValue(fn, in.Result, base.Operands[idxConst.Const])
				changed = true
			}
		}
	}
	return changed
}

// ArithSimplify rewrites identity arithmetic (x+0, x*1, x-0) to a direct
// reference to the surviving operand, and x*0 to the constant 0.
type ArithSimplify struct{}

func (*ArithSimplify) Name() string { return "arith-simplify" }

func (p *ArithSimplify) Run(fn *mir.Function) bool {
	changed := false
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Op != mir.OpBinary {
				continue
			}
			lc, lok := constOf(fn, in.Operands[0])
			rc, rok := constOf(fn, in.Operands[1])
			switch {
			case in.BinOp == "+" && rok && rc.Const == 0:
				replaceValue(fn, in.Result, in.Operands[0])
				changed = true
			case in.BinOp == "+" && lok && lc.Const == 0:
				replaceValue(fn, in.Result, in.Operands[1])
				changed = true
			case in.BinOp == "-" && rok && rc.Const == 0:
				replaceValue(fn, in.Result, in.Operands[0])
				changed = true
			case in.BinOp == "*" && rok && rc.Const == 1:
				replaceValue(fn, in.Result, in.Operands[0])
				changed = true
			case in.BinOp == "*" && lok && lc.Const == 1:
				replaceValue(fn, in.Result, in.Operands[1])
				changed = true
			case in.BinOp == "*" && ((rok && rc.Const == 0) || (lok && lc.Const == 0)):
				in.Op, in.Const, in.Operands, in.BinOp = mir.OpConstFelt, 0, nil, ""
				changed = true
			}
		}
	}
	return changed
}

// CopyPropagation collapses a Phi whose edges have all converged on the
// same value (typical after ConstantFold/ArithSimplify prune a branch)
// into a direct reference to that value.
type CopyPropagation struct{}

func (*CopyPropagation) Name() string { return "copy-propagation" }

func (p *CopyPropagation) Run(fn *mir.Function) bool {
	changed := false
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Op != mir.OpPhi || len(in.PhiEdges) == 0 {
				continue
			}
			first := in.PhiEdges[0].Value
			allSame := true
			for _, e := range in.PhiEdges[1:] {
				if e.Value != first {
					allSame = false
					break
				}
			}
			if allSame && first != in.Result {
				replaceValue(fn, in.Result, first)
				changed = true
			}
		}
	}
	return changed
}

// BranchSimplify rewrites a conditional terminator whose condition is a
// known constant into an unconditional jump to the taken successor.
type BranchSimplify struct{}

func (*BranchSimplify) Name() string { return "branch-simplify" }

func (p *BranchSimplify) Run(fn *mir.Function) bool {
	changed := false
	for _, blk := range fn.Blocks {
		if blk.Terminator.Kind != mir.TermBranch {
			continue
		}
		c, ok := constOf(fn, blk.Terminator.Cond)
		if !ok {
			continue
		}
		target := blk.Terminator.Else
		if c.Const != 0 {
			target = blk.Terminator.Then
		}
		blk.Terminator = mir.Terminator{Kind: mir.TermJump, Target: target}
		changed = true
	}
	return changed
}

// PhiElimination runs once, after the fixed-point passes converge, and
// destroys every remaining Phi via parallel-copy insertion into
// predecessor blocks (spec §4.7: "after this pass, no Phi remains"; the
// §8 universal invariant repeats this for every function in every
// module). Critical edges are split first, since a predecessor with more
// than one successor can't host a copy scoped to just one of them; each
// predecessor's copy set is then sequenced as a genuine parallel copy,
// rescuing a value into a fresh temporary when it would otherwise be
// clobbered before every read of it completes (the classic loop-header
// phi swap, e.g. mir/build.go's lowerWhile back edge).
type PhiElimination struct{}

func (*PhiElimination) Name() string { return "phi-elimination" }

func (p *PhiElimination) Run(fn *mir.Function) bool {
	changed := splitCriticalEdges(fn)
	if eliminatePhis(fn) {
		changed = true
	}
	return changed
}

// predecessors maps every block to the blocks whose terminator can
// transfer control to it directly.
func predecessors(fn *mir.Function) map[mir.BlockId][]mir.BlockId {
	preds := make(map[mir.BlockId][]mir.BlockId)
	for bid, blk := range fn.Blocks {
		switch blk.Terminator.Kind {
		case mir.TermJump:
			preds[blk.Terminator.Target] = append(preds[blk.Terminator.Target], mir.BlockId(bid))
		case mir.TermBranch:
			preds[blk.Terminator.Then] = append(preds[blk.Terminator.Then], mir.BlockId(bid))
			preds[blk.Terminator.Else] = append(preds[blk.Terminator.Else], mir.BlockId(bid))
		}
	}
	return preds
}

// splitCriticalEdges inserts a dedicated single-purpose block on every
// edge whose source has more than one successor and whose destination has
// more than one predecessor. Writing a Phi's per-edge copy directly into
// such a source block would also execute along its other successor, since
// a basic block has no way to scope an instruction to one outgoing edge.
// Predecessor counts are computed once up front: splitting is decided from
// the function's original shape, and newly appended blocks (a single jump
// to the original target) are never themselves a critical-edge source.
func splitCriticalEdges(fn *mir.Function) bool {
	changed := false
	preds := predecessors(fn)
	n := len(fn.Blocks)
	for bid := 0; bid < n; bid++ {
		blk := fn.Blocks[bid]
		if blk.Terminator.Kind != mir.TermBranch || blk.Terminator.Then == blk.Terminator.Else {
			continue
		}
		if len(preds[blk.Terminator.Then]) > 1 {
			blk.Terminator.Then = splitEdge(fn, mir.BlockId(bid), blk.Terminator.Then)
			changed = true
		}
		if len(preds[blk.Terminator.Else]) > 1 {
			blk.Terminator.Else = splitEdge(fn, mir.BlockId(bid), blk.Terminator.Else)
			changed = true
		}
	}
	return changed
}

// splitEdge appends a new block containing only an unconditional jump to
// target, repoints any Phi in target whose edge names from to the new
// block instead, and returns the new block's id for the caller to
// redirect its branch target to.
func splitEdge(fn *mir.Function, from, target mir.BlockId) mir.BlockId {
	id := mir.BlockId(len(fn.Blocks))
	fn.Blocks = append(fn.Blocks, &mir.Block{
		Terminator: mir.Terminator{Kind: mir.TermJump, Target: target},
	})
	for i := range fn.Blocks[target].Instrs {
		in := &fn.Blocks[target].Instrs[i]
		if in.Op != mir.OpPhi {
			continue
		}
		for j := range in.PhiEdges {
			if in.PhiEdges[j].Block == from {
				in.PhiEdges[j].Block = id
			}
		}
	}
	return id
}

// copyAssign is one Phi's per-predecessor obligation: write src's value
// into dst (the Phi's own Result) along this specific edge.
type copyAssign struct {
	dst mir.ValueId
	src mir.ValueId
	typ types.TypeId
}

// eliminatePhis strips every Phi out of every block, having first emitted
// the copies that reproduce its effect along each incoming edge.
func eliminatePhis(fn *mir.Function) bool {
	changed := false
	for _, blk := range fn.Blocks {
		byPred := make(map[mir.BlockId][]copyAssign)
		hasPhi := false
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Op != mir.OpPhi {
				continue
			}
			hasPhi = true
			for _, e := range in.PhiEdges {
				byPred[e.Block] = append(byPred[e.Block], copyAssign{dst: in.Result, src: e.Value, typ: in.Type})
			}
		}
		if !hasPhi {
			continue
		}
		for pred, assigns := range byPred {
			insertParallelCopies(fn, pred, assigns)
		}
		blk.Instrs = stripPhis(blk.Instrs)
		changed = true
	}
	return changed
}

func stripPhis(instrs []mir.Instr) []mir.Instr {
	out := instrs[:0]
	for _, in := range instrs {
		if in.Op == mir.OpPhi {
			continue
		}
		out = append(out, in)
	}
	return out
}

// insertParallelCopies sequences assigns (all conceptually simultaneous,
// since they fire along the same edge) into actual OpCopy instructions
// appended to pred, in an order that never overwrites a value before its
// last read. An assignment is "ready" once nothing else still pending
// needs its destination as a source; when no assignment is ready, the
// remaining set forms a genuine cycle (only possible through a loop-header
// Phi's back edge), broken by rescuing one destination's current value
// into a fresh temporary before continuing.
func insertParallelCopies(fn *mir.Function, pred mir.BlockId, assigns []copyAssign) {
	remaining := append([]copyAssign(nil), assigns...)

	neededAsSource := func(v mir.ValueId, skip int) bool {
		for i, a := range remaining {
			if i != skip && a.src == v {
				return true
			}
		}
		return false
	}

	for len(remaining) > 0 {
		progressed := false
		for i := 0; i < len(remaining); i++ {
			a := remaining[i]
			if a.dst == a.src {
				remaining = append(remaining[:i], remaining[i+1:]...)
				progressed = true
				break
			}
			if !neededAsSource(a.dst, i) {
				emitCopyInstr(fn, pred, a.dst, a.src, a.typ)
				remaining = append(remaining[:i], remaining[i+1:]...)
				progressed = true
				break
			}
		}
		if progressed {
			continue
		}
		a := remaining[0]
		tmp := fn.NextValue()
		emitCopyInstr(fn, pred, tmp, a.dst, a.typ)
		for i := range remaining {
			if remaining[i].src == a.dst {
				remaining[i].src = tmp
			}
		}
	}
}

func emitCopyInstr(fn *mir.Function, block mir.BlockId, dst, src mir.ValueId, typ types.TypeId) {
	blk := fn.Blocks[block]
	blk.Instrs = append(blk.Instrs, mir.Instr{Result: dst, Op: mir.OpCopy, Type: typ, Operands: []mir.ValueId{src}})
}
