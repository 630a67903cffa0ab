package vm

import (
	"fmt"

	"github.com/cairo-m/cairom/internal/cairom/core"
)

// State is the machine state the VM steps through: a program counter, a
// frame pointer, and a clock (spec §4.9: "(pc, fp, clock)"). Memory is
// shared address space for both code and data, matching the original's
// memory model.
type State struct {
	PC     uint32
	FP     uint32
	Clock  uint64
	Memory *PagedMemory

	// Halted is set by Ret when it pops the entrypoint's synthetic frame.
	Halted bool
}

// NewState creates a VM ready to execute starting at entryPC, with fp set
// to initialFP (the caller is expected to have already written the
// program's instruction words into Memory).
func NewState(mem *PagedMemory, entryPC, initialFP uint32) *State {
	return &State{PC: entryPC, FP: initialFP, Memory: mem}
}

func (s *State) addr(off core.Felt) uint32 {
	return uint32(int64(s.FP) + int64(off.SignedOffset()))
}

func (s *State) readCell(addr uint32) (core.QM31, error) {
	v, ok := s.Memory.Get(addr)
	if !ok {
		return core.QM31Zero, &Error{Code: UninitializedMemory, Message: fmt.Sprintf("read from uninitialized cell %d", addr)}
	}
	return v, nil
}

func (s *State) writeCell(addr uint32, v core.QM31) {
	s.Memory.Set(addr, v)
}

func (s *State) readFelt(off core.Felt) (core.Felt, error) {
	v, err := s.readCell(s.addr(off))
	if err != nil {
		return core.FeltZero, err
	}
	return v.AsFelt(), nil
}

// Step decodes and executes the instruction at PC, advancing Clock by one
// on success. It returns a *Error (never a bare error) on any runtime
// failure, per spec §7's runtime error taxonomy.
func (s *State) Step() error {
	word, ok := s.Memory.Get(s.PC)
	if !ok {
		return &Error{Code: MalformedInstruction, Message: fmt.Sprintf("no instruction at pc=%d", s.PC)}
	}
	ins, err := Decode(word)
	if err != nil {
		return &Error{Code: InvalidOpcode, Message: err.Error(), Cause: err}
	}
	if err := s.execute(ins); err != nil {
		return err
	}
	s.Clock++
	return nil
}

// Run steps the VM until it halts (via Ret at the outermost frame) or an
// error occurs, returning the number of steps executed.
func (s *State) Run(maxSteps int) (int, error) {
	steps := 0
	for !s.Halted {
		if maxSteps > 0 && steps >= maxSteps {
			return steps, &Error{Code: Unknown, Message: "exceeded max step count"}
		}
		if err := s.Step(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

func (s *State) execute(ins Instruction) error {
	switch ins.Op {
	case StoreAddFpFp:
		return s.storeBinFpFp(ins, func(a, b core.Felt) (core.Felt, error) { return a.Add(b), nil })
	case StoreAddFpImm:
		return s.storeBinFpImm(ins, func(a, b core.Felt) (core.Felt, error) { return a.Add(b), nil })
	case StoreSubFpFp:
		return s.storeBinFpFp(ins, func(a, b core.Felt) (core.Felt, error) { return a.Sub(b), nil })
	case StoreSubFpImm:
		return s.storeBinFpImm(ins, func(a, b core.Felt) (core.Felt, error) { return a.Sub(b), nil })
	case StoreMulFpFp:
		return s.storeBinFpFp(ins, func(a, b core.Felt) (core.Felt, error) { return a.Mul(b), nil })
	case StoreMulFpImm:
		return s.storeBinFpImm(ins, func(a, b core.Felt) (core.Felt, error) { return a.Mul(b), nil })
	case StoreDivFpFp:
		return s.storeBinFpFp(ins, divChecked)
	case StoreDivFpImm:
		return s.storeBinFpImm(ins, divChecked)
	case StoreDerefFp:
		return s.execStoreDerefFp(ins)
	case StoreDoubleDerefFp:
		return s.execStoreDoubleDerefFp(ins)
	case StoreImm:
		return s.execStoreImm(ins)
	case CallAbsFp:
		return s.execCall(ins, true, false)
	case CallAbsImm:
		return s.execCall(ins, true, true)
	case CallRelFp:
		return s.execCall(ins, false, false)
	case CallRelImm:
		return s.execCall(ins, false, true)
	case Ret:
		return s.execRet(ins)
	case JmpAbsAddFpFp:
		return s.execJmpFpFp(ins, true, func(a, b core.Felt) core.Felt { return a.Add(b) })
	case JmpAbsAddFpImm:
		return s.execJmpFpImm(ins, true, func(a, b core.Felt) core.Felt { return a.Add(b) })
	case JmpAbsDerefFp:
		return s.execJmpDerefFp(ins, true)
	case JmpAbsDoubleDerefFp:
		return s.execJmpDoubleDerefFp(ins, true)
	case JmpAbsImm:
		return s.execJmpImm(ins, true)
	case JmpAbsMulFpFp:
		return s.execJmpFpFp(ins, true, func(a, b core.Felt) core.Felt { return a.Mul(b) })
	case JmpAbsMulFpImm:
		return s.execJmpFpImm(ins, true, func(a, b core.Felt) core.Felt { return a.Mul(b) })
	case JmpRelAddFpFp:
		return s.execJmpFpFp(ins, false, func(a, b core.Felt) core.Felt { return a.Add(b) })
	case JmpRelAddFpImm:
		return s.execJmpFpImm(ins, false, func(a, b core.Felt) core.Felt { return a.Add(b) })
	case JmpRelDerefFp:
		return s.execJmpDerefFp(ins, false)
	case JmpRelDoubleDerefFp:
		return s.execJmpDoubleDerefFp(ins, false)
	case JmpRelImm:
		return s.execJmpImm(ins, false)
	case JmpRelMulFpFp:
		return s.execJmpFpFp(ins, false, func(a, b core.Felt) core.Felt { return a.Mul(b) })
	case JmpRelMulFpImm:
		return s.execJmpFpImm(ins, false, func(a, b core.Felt) core.Felt { return a.Mul(b) })
	case JnzFpFp:
		return s.execJnz(ins, true)
	case JnzFpImm:
		return s.execJnz(ins, false)
	case U32AddFpFp:
		return s.execU32BinFpFp(ins, func(a, b uint32) uint32 { return a + b })
	case U32SubFpFp:
		return s.execU32BinFpFp(ins, func(a, b uint32) uint32 { return a - b })
	case U32MulFpFp:
		return s.execU32BinFpFp(ins, func(a, b uint32) uint32 { return a * b })
	case U32DivFpFp:
		return s.execU32Div(ins)
	case U32LessFpFp:
		return s.execU32Less(ins)
	default:
		return &Error{Code: InvalidOpcode, Message: fmt.Sprintf("unhandled opcode %s", ins.Op)}
	}
}

func divChecked(a, b core.Felt) (core.Felt, error) {
	v, err := a.Div(b)
	if err != nil {
		return core.FeltZero, &Error{Code: DivisionByZero, Message: "division by zero", Cause: err}
	}
	return v, nil
}

// storeBinFpFp implements the `dest = op(fp[off0], fp[off1])` family.
func (s *State) storeBinFpFp(ins Instruction, op func(a, b core.Felt) (core.Felt, error)) error {
	a, err := s.readFelt(ins.Op0)
	if err != nil {
		return err
	}
	b, err := s.readFelt(ins.Op1)
	if err != nil {
		return err
	}
	res, err := op(a, b)
	if err != nil {
		return err
	}
	s.writeCell(s.addr(ins.Op2), core.FromFelt(res))
	s.PC++
	return nil
}

// storeBinFpImm implements the `dest = op(fp[off0], imm)` family; Op1
// carries the immediate directly rather than an fp-relative address.
func (s *State) storeBinFpImm(ins Instruction, op func(a, b core.Felt) (core.Felt, error)) error {
	a, err := s.readFelt(ins.Op0)
	if err != nil {
		return err
	}
	res, err := op(a, ins.Op1)
	if err != nil {
		return err
	}
	s.writeCell(s.addr(ins.Op2), core.FromFelt(res))
	s.PC++
	return nil
}

func (s *State) execStoreDerefFp(ins Instruction) error {
	ptrCell, err := s.readCell(s.addr(ins.Op0))
	if err != nil {
		return err
	}
	val, err := s.readCell(ptrCell.AsFelt().Value())
	if err != nil {
		return err
	}
	s.writeCell(s.addr(ins.Op2), val)
	s.PC++
	return nil
}

func (s *State) execStoreDoubleDerefFp(ins Instruction) error {
	ptr1, err := s.readCell(s.addr(ins.Op0))
	if err != nil {
		return err
	}
	ptr2, err := s.readCell(ptr1.AsFelt().Value())
	if err != nil {
		return err
	}
	val, err := s.readCell(ptr2.AsFelt().Value())
	if err != nil {
		return err
	}
	s.writeCell(s.addr(ins.Op2), val)
	s.PC++
	return nil
}

func (s *State) execStoreImm(ins Instruction) error {
	s.writeCell(s.addr(ins.Op2), core.FromFelt(ins.Op0))
	s.PC++
	return nil
}

// execCall implements the four Call* variants. target is absolute when
// abs is true, otherwise relative to PC. imm is true when the target is an
// immediate embedded in the instruction rather than read through fp+Op2.
func (s *State) execCall(ins Instruction, abs, imm bool) error {
	returnPC := core.FeltFromSignedOffset(int32(s.PC) + 1)
	s.writeCell(s.addr(ins.Op0), core.FromFelt(returnPC))
	s.writeCell(s.addr(ins.Op1), core.FromFelt(core.NewFelt(s.FP)))
	newFP := s.addr(ins.Op1) + 1

	var target uint32
	if imm {
		target = ins.Op2.Value()
	} else {
		cell, err := s.readCell(s.addr(ins.Op2))
		if err != nil {
			return err
		}
		target = cell.AsFelt().Value()
	}
	if abs {
		s.PC = target
	} else {
		s.PC = uint32(int64(s.PC) + int64(int32(target)))
	}
	s.FP = newFP
	return nil
}

func (s *State) execRet(ins Instruction) error {
	returnPC, err := s.readFelt(ins.Op0)
	if err != nil {
		return err
	}
	oldFP, err := s.readFelt(ins.Op1)
	if err != nil {
		return err
	}
	if oldFP.Value() == s.FP {
		// The entrypoint frame returns to itself: nothing further to run.
		s.Halted = true
		return nil
	}
	s.PC = returnPC.Value()
	s.FP = oldFP.Value()
	return nil
}

func (s *State) jumpTo(target core.Felt, abs bool) {
	if abs {
		s.PC = target.Value()
	} else {
		s.PC = uint32(int64(s.PC) + int64(target.SignedOffset()))
	}
}

func (s *State) execJmpFpFp(ins Instruction, abs bool, combine func(a, b core.Felt) core.Felt) error {
	a, err := s.readFelt(ins.Op0)
	if err != nil {
		return err
	}
	b, err := s.readFelt(ins.Op1)
	if err != nil {
		return err
	}
	s.jumpTo(combine(a, b), abs)
	return nil
}

func (s *State) execJmpFpImm(ins Instruction, abs bool, combine func(a, b core.Felt) core.Felt) error {
	a, err := s.readFelt(ins.Op0)
	if err != nil {
		return err
	}
	s.jumpTo(combine(a, ins.Op1), abs)
	return nil
}

func (s *State) execJmpDerefFp(ins Instruction, abs bool) error {
	ptrCell, err := s.readCell(s.addr(ins.Op0))
	if err != nil {
		return err
	}
	target, err := s.readCell(ptrCell.AsFelt().Value())
	if err != nil {
		return err
	}
	s.jumpTo(target.AsFelt(), abs)
	return nil
}

func (s *State) execJmpDoubleDerefFp(ins Instruction, abs bool) error {
	ptr1, err := s.readCell(s.addr(ins.Op0))
	if err != nil {
		return err
	}
	ptr2, err := s.readCell(ptr1.AsFelt().Value())
	if err != nil {
		return err
	}
	target, err := s.readCell(ptr2.AsFelt().Value())
	if err != nil {
		return err
	}
	s.jumpTo(target.AsFelt(), abs)
	return nil
}

func (s *State) execJmpImm(ins Instruction, abs bool) error {
	s.jumpTo(ins.Op0, abs)
	return nil
}

func (s *State) execJnz(ins Instruction, fpTarget bool) error {
	cond, err := s.readFelt(ins.Op0)
	if err != nil {
		return err
	}
	if cond.IsZero() {
		s.PC++
		return nil
	}
	if fpTarget {
		target, err := s.readFelt(ins.Op1)
		if err != nil {
			return err
		}
		s.jumpTo(target, false)
		return nil
	}
	s.jumpTo(ins.Op1, false)
	return nil
}

// next1 returns the fp-relative offset one cell past off, the companion
// high limb of a 2-cell u32 operand (spec §4.9: u32 values are a [lo, hi]
// 16-bit limb pair).
func next1(off core.Felt) core.Felt {
	return core.FeltFromSignedOffset(off.SignedOffset() + 1)
}

// readU32 reconstructs the 32-bit integer held at [base, base+1] (lo, hi
// limbs), the recompose half of spec §4.9's "recompose ... operate ...
// decompose".
func (s *State) readU32(base core.Felt) (uint32, error) {
	lo, err := s.readFelt(base)
	if err != nil {
		return 0, err
	}
	hi, err := s.readFelt(next1(base))
	if err != nil {
		return 0, err
	}
	return lo.Value() | (hi.Value() << 16), nil
}

// writeU32 decomposes v into its [lo, hi] 16-bit limb pair at dst, the
// decompose half of spec §4.9's "recompose ... operate ... decompose".
func (s *State) writeU32(dst core.Felt, v uint32) {
	s.writeCell(s.addr(dst), core.FromFelt(core.NewFelt(v&0xFFFF)))
	s.writeCell(s.addr(next1(dst)), core.FromFelt(core.NewFelt(v>>16)))
}

// execU32BinFpFp implements the u32 add/sub/mul family: recompose both
// 2-limb operands, combine with native Go uint32 arithmetic (wrapping
// exactly the way spec §4.9 requires), and decompose the result back into
// the destination's limb pair. This needs no field-arithmetic carry trick
// because the VM here executes the computation directly rather than
// proving it (see u32ops.go).
func (s *State) execU32BinFpFp(ins Instruction, op func(a, b uint32) uint32) error {
	a, err := s.readU32(ins.Op0)
	if err != nil {
		return err
	}
	b, err := s.readU32(ins.Op1)
	if err != nil {
		return err
	}
	s.writeU32(ins.Op2, op(a, b))
	s.PC++
	return nil
}

func (s *State) execU32Div(ins Instruction) error {
	a, err := s.readU32(ins.Op0)
	if err != nil {
		return err
	}
	b, err := s.readU32(ins.Op1)
	if err != nil {
		return err
	}
	if b == 0 {
		return &Error{Code: DivisionByZero, Message: "u32 division by zero"}
	}
	s.writeU32(ins.Op2, a/b)
	s.PC++
	return nil
}

// execU32Less writes M31::one() to the (single-cell) destination if the
// reconstructed operands satisfy a < b, M31::zero() otherwise (spec §4.9).
func (s *State) execU32Less(ins Instruction) error {
	a, err := s.readU32(ins.Op0)
	if err != nil {
		return err
	}
	b, err := s.readU32(ins.Op1)
	if err != nil {
		return err
	}
	result := uint32(0)
	if a < b {
		result = 1
	}
	s.writeCell(s.addr(ins.Op2), core.FromFelt(core.NewFelt(result)))
	s.PC++
	return nil
}
