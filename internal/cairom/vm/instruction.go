package vm

import "github.com/cairo-m/cairom/internal/cairom/core"

// Instruction is one decoded CASM instruction word. The three operand
// fields are raw field elements; each opcode's handler interprets them as
// either an fp-relative address, an embedded immediate, or (for the jump
// family) an absolute/relative pc target, per opcode.rs's access pattern.
type Instruction struct {
	Op             Opcode
	Op0, Op1, Op2  core.Felt
}

// Decode reads an instruction out of a single packed memory word.
func Decode(word core.QM31) (Instruction, error) {
	op, err := FromU32(word.V0.Value())
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Op0: word.V1, Op1: word.V2, Op2: word.V3}, nil
}

// Encode packs an instruction back into one memory word, used by codegen
// when it emits the final instruction stream.
func (ins Instruction) Encode() core.QM31 {
	return core.FromComponents(core.NewFelt(uint32(ins.Op)), ins.Op0, ins.Op1, ins.Op2)
}
