package codegen

import (
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// FunctionLayout assigns every SSA value in a function a fp-relative frame
// slot, following the standard Cairo calling convention (spec §4.9):
// [fp-2] holds the caller's saved return pc, [fp-1] the caller's saved fp,
// and [fp+0..) holds parameters followed by every other value the function
// computes, in the order each is first defined.
//
// Call sites need additional bookkeeping: a CallAbsImm instruction writes
// its own return info into two scratch cells in the *caller's* frame, and
// the callee's frame begins immediately after them. CallSites records,
// for each OpCall's Result, the offset of its two scratch cells; the call
// Result's own slot (the args staging area, which the callee's return
// value overwrites) lives at CallSites[v]+2, same as any other slot.
// scratchCells is the number of extra frame cells reserved beyond every
// named value's slot, for codegen-internal temporaries that don't
// correspond to any MIR value (e.g. the limb-difference cells a U32
// equality test needs before it can materialize its boolean result).
const scratchCells = 4

type FunctionLayout struct {
	Slots      map[mir.ValueId]int32
	CallSites  map[mir.ValueId]int32
	ScratchBase int32
	FrameSize  int32
}

// BuildLayout computes fn's frame layout against the module's shared type
// table.
func BuildLayout(fn *mir.Function, tbl *types.Table) *FunctionLayout {
	l := &FunctionLayout{
		Slots:     make(map[mir.ValueId]int32),
		CallSites: make(map[mir.ValueId]int32),
	}
	var next int32

	for _, p := range fn.Params {
		in, ok := findDef(fn, p)
		if !ok {
			continue
		}
		l.Slots[p] = next
		next += int32(tbl.ValueSizeOf(in.Type))
	}

	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Op == mir.OpParam {
				continue // already laid out above, in parameter order
			}
			if _, seen := l.Slots[in.Result]; seen {
				continue
			}
			size := int32(tbl.ValueSizeOf(in.Type))
			if in.Op == mir.OpCall {
				argsSize := int32(0)
				for _, a := range in.Operands {
					if adef, ok := findDef(fn, a); ok {
						argsSize += int32(tbl.ValueSizeOf(adef.Type))
					}
				}
				staged := argsSize
				if size > staged {
					staged = size
				}
				l.CallSites[in.Result] = next
				next += 2
				l.Slots[in.Result] = next
				next += staged
				continue
			}
			l.Slots[in.Result] = next
			next += size
		}
	}

	l.ScratchBase = next
	l.FrameSize = next + scratchCells
	return l
}

// findDef scans every block for the instruction defining v (MIR values
// aren't dominance-indexed, same caveat as optimize.defOf).
func findDef(fn *mir.Function, v mir.ValueId) (*mir.Instr, bool) {
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			if blk.Instrs[i].Result == v {
				return &blk.Instrs[i], true
			}
		}
	}
	return nil, false
}
