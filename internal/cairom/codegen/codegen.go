// Package codegen lowers legalized MIR into a linear CASM instruction
// stream (spec §4.9): it assigns every SSA value a frame slot
// (FunctionLayout), selects an instruction sequence per MIR op (select.go),
// and links every function's local block/call references into absolute
// program-counter targets in a final two-phase pass, the same shape as an
// assembler resolving forward label references once every section's size
// is known.
package codegen

import (
	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/vm"
)

// Module is the fully-linked output of Build: one flat instruction stream
// addressed from 0, and the entry PC of every function in the source
// module.
type Module struct {
	Instructions []vm.Instruction
	FunctionPCs  map[mir.FunctionId]uint32
}

// compiledFunction holds one function's instruction selection output
// before cross-function linking resolves its block and call targets to
// absolute addresses.
type compiledFunction struct {
	fn         *mir.Function
	out        []pseudo
	blockStart []int32
	startPC    uint32
}

// Build lowers every function in mod to CASM and links them into one
// instruction stream. Functions are laid out in module order, so the
// first function's first instruction sits at PC 0.
func Build(mod *mir.Module) (*Module, error) {
	compiled := make([]*compiledFunction, len(mod.Functions))
	pc := uint32(0)
	for i, fn := range mod.Functions {
		layout := BuildLayout(fn, mod.Types)
		out, blockStart, err := selectFunction(fn, layout, mod.Types)
		if err != nil {
			return nil, err
		}
		compiled[i] = &compiledFunction{fn: fn, out: out, blockStart: blockStart, startPC: pc}
		pc += uint32(len(out))
	}

	funcPCs := make(map[mir.FunctionId]uint32, len(compiled))
	for _, cf := range compiled {
		funcPCs[cf.fn.ID] = cf.startPC
	}

	var program []vm.Instruction
	for _, cf := range compiled {
		for _, p := range cf.out {
			switch p.kind {
			case pInstr:
				program = append(program, p.ins)
			case pJumpBlock:
				target := cf.startPC + uint32(cf.blockStart[p.targetBlock])
				ins := p.ins
				ins.Op0 = core.NewFelt(target)
				program = append(program, ins)
			case pCallFunction:
				target := funcPCs[p.targetFunc]
				ins := p.ins
				ins.Op2 = core.NewFelt(target)
				program = append(program, ins)
			}
		}
	}

	return &Module{Instructions: program, FunctionPCs: funcPCs}, nil
}
