// Package trace adapts a raw VM execution into the per-opcode trace queues
// and sorted memory-consistency log the external prover consumes (spec
// §4.10). Recording the raw stream is grounded on the teacher's
// SimpleTraceRecorder/RecordState/GenerateAET shape; building sorted,
// per-opcode tables from it is this package's own responsibility.
package trace

import (
	"sort"

	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/vm"
)

// Row is one recorded VM step: the state before execution, the decoded
// instruction, and the memory cells it touched.
type Row struct {
	PC, FP uint32
	Clock  uint64
	Instr  vm.Instruction
	Reads  []MemoryAccess
	Writes []MemoryAccess
}

// MemoryAccess is one memory cell touched by a step, used both for the
// per-opcode queues and for building the memory-consistency log.
type MemoryAccess struct {
	Addr  uint32
	Value core.QM31
	Clock uint64
}

// Recorder steps a *vm.State and accumulates a Row per step.
type Recorder struct {
	state *vm.State
	rows  []Row
}

// NewRecorder wraps state for trace-recording execution.
func NewRecorder(state *vm.State) *Recorder {
	return &Recorder{state: state}
}

// Run steps the VM to completion (or error), recording a Row per step.
func (r *Recorder) Run(maxSteps int) error {
	for !r.state.Halted {
		if maxSteps > 0 && len(r.rows) >= maxSteps {
			return &vm.Error{Code: vm.Unknown, Message: "exceeded max step count"}
		}
		row, err := r.recordStep()
		if err != nil {
			return err
		}
		r.rows = append(r.rows, row)
	}
	return nil
}

// recordStep captures (pc, fp, clock) and the decoded instruction before
// stepping, then reconstructs which cells the step touched from the
// opcode's static access pattern so the trace doesn't need instrumentation
// inside State itself.
func (r *Recorder) recordStep() (Row, error) {
	st := r.state
	pc, fp, clock := st.PC, st.FP, st.Clock

	word, ok := st.Memory.Get(pc)
	if !ok {
		return Row{}, &vm.Error{Code: vm.MalformedInstruction, Message: "no instruction at pc"}
	}
	ins, err := vm.Decode(word)
	if err != nil {
		return Row{}, &vm.Error{Code: vm.InvalidOpcode, Message: err.Error(), Cause: err}
	}
	info, err := vm.Info(ins.Op)
	if err != nil {
		return Row{}, err
	}

	before := snapshotOperands(st, ins)
	if err := st.Step(); err != nil {
		return Row{}, err
	}
	after := snapshotOperands(st, ins)

	row := Row{PC: pc, FP: fp, Clock: clock, Instr: ins}
	for i, access := range info.AccessPattern {
		switch access {
		case vm.Read:
			row.Reads = append(row.Reads, MemoryAccess{Addr: before[i].addr, Value: before[i].val, Clock: clock})
		case vm.Write:
			row.Writes = append(row.Writes, MemoryAccess{Addr: after[i].addr, Value: after[i].val, Clock: clock})
		}
	}
	return row, nil
}

type operandSnapshot struct {
	addr uint32
	val  core.QM31
}

// snapshotOperands reads the fp-relative cell for each of the instruction's
// three operand slots, best-effort: every slot is read as an fp offset, so
// an immediate-only slot snapshots whatever cell fp+immediate names; that
// snapshot is never consulted since the slot's AccessPattern entry is
// Unused.
func snapshotOperands(st *vm.State, ins vm.Instruction) [3]operandSnapshot {
	operands := [3]core.Felt{ins.Op0, ins.Op1, ins.Op2}
	var out [3]operandSnapshot
	for i, off := range operands {
		addr := uint32(int64(st.FP) + int64(off.SignedOffset()))
		val, _ := st.Memory.Get(addr)
		out[i] = operandSnapshot{addr: addr, val: val}
	}
	return out
}

// Rows returns the recorded steps in execution order.
func (r *Recorder) Rows() []Row { return r.rows }

// PerOpcode groups recorded rows by opcode, the per-opcode trace queues the
// prover's AIR evaluates independently.
func (r *Recorder) PerOpcode() map[vm.Opcode][]Row {
	out := make(map[vm.Opcode][]Row)
	for _, row := range r.rows {
		out[row.Instr.Op] = append(out[row.Instr.Op], row)
	}
	return out
}

// MemoryConsistencyLog returns every memory access across the whole run,
// sorted by (address, clock) as the memory-consistency argument requires.
func (r *Recorder) MemoryConsistencyLog() []MemoryAccess {
	var log []MemoryAccess
	for _, row := range r.rows {
		log = append(log, row.Reads...)
		log = append(log, row.Writes...)
	}
	sort.Slice(log, func(i, j int) bool {
		if log[i].Addr != log[j].Addr {
			return log[i].Addr < log[j].Addr
		}
		return log[i].Clock < log[j].Clock
	})
	return log
}
