// Package mir implements the SSA-form mid-level IR and its two-pass
// builder from the AST (spec §4.6).
package mir

import "github.com/cairo-m/cairom/internal/cairom/types"

// ValueId identifies one SSA value.
type ValueId int

// BlockId identifies one basic block within a function.
type BlockId int

// FunctionId identifies one function across the whole module graph, used
// for cross-module call resolution.
type FunctionId int

// Op enumerates the MIR instruction kinds.
type Op int

const (
	OpConstFelt Op = iota
	OpConstBool
	OpConstU32
	OpBinary
	OpUnary
	OpCall
	OpPhi
	OpMakeTuple
	OpMakeStruct
	OpExtractTupleElement
	OpExtractStructField
	OpMakeArray
	OpArrayIndex
	OpParam
	// OpCopy assigns Operands[0]'s value to Result. It never comes out of
	// the AST lowering; the optimizer's PhiElimination pass introduces it
	// when it destroys SSA form, so codegen's frame-slot allocator (which
	// tolerates a value being (re)defined more than once, unlike a true
	// SSA consumer) can treat it exactly like any other instruction.
	OpCopy
)

// Instr is one SSA instruction, producing the value named by Result.
type Instr struct {
	Result   ValueId
	Op       Op
	Type     types.TypeId
	Operands []ValueId // meaning depends on Op
	Const    int64     // OpConstFelt/OpConstU32 value, or OpConstBool (0/1)
	BinOp    string    // OpBinary/OpUnary operator text
	Callee   FunctionId
	Field    string // OpExtractStructField field name / OpMakeStruct struct name
	PhiEdges []PhiEdge
}

// PhiEdge is one (predecessor block, incoming value) pair of a Phi.
type PhiEdge struct {
	Block BlockId
	Value ValueId
}

// TermKind enumerates how a basic block ends.
type TermKind int

const (
	TermReturn TermKind = iota
	TermJump
	TermBranch
)

// Terminator ends a basic block.
type Terminator struct {
	Kind  TermKind
	Value ValueId   // TermReturn: the returned value (invalid if the function is Unit)
	HasValue bool
	Target BlockId  // TermJump
	Cond   ValueId  // TermBranch
	Then   BlockId  // TermBranch
	Else   BlockId  // TermBranch
}

// Block is one basic block: a straight-line instruction sequence ending in
// exactly one Terminator.
type Block struct {
	Instrs     []Instr
	Terminator Terminator
}

// Function is one lowered function body.
type Function struct {
	ID      FunctionId
	Name    string
	Params  []ValueId
	RetType types.TypeId
	Blocks  []*Block
	nextVal ValueId
}

// Module is the whole lowered program: every function plus the shared
// TypeId interning table.
type Module struct {
	Functions []*Function
	Types     *types.Table
}

// NextValue allocates a fresh ValueId in fn, used by post-build passes
// (the optimizer, the legalizer) that need to introduce new instructions.
func (fn *Function) NextValue() ValueId {
	v := fn.nextVal
	fn.nextVal++
	return v
}
