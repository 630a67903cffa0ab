package cairom

import (
	"encoding/binary"
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/vm"
)

// EntryPoint describes one callable function in a compiled Program: its
// name, its ABI parameter/return types, and the PC it starts at.
type EntryPoint struct {
	Name       string
	PC         uint32
	ParamTypes []AbiType
	ReturnType AbiType
}

// Word is one encoded CASM instruction: an opcode id plus its three raw
// operand felts, the flattened form of a vm.Instruction that survives
// JSON round-tripping (vm.Instruction itself carries core.Felt values,
// which don't marshal to plain numbers).
type Word struct {
	Op, Op0, Op1, Op2 uint32
}

// Program is the persisted output of BuildProgram: the CASM instruction stream
// plus enough metadata (entry points, source name) for Run to set up a
// call without recompiling. Each Word occupies exactly one memory cell,
// matching the VM's one-instruction-per-cell fetch in vm.State.Step.
type Program struct {
	SourceName  string
	Instrs      []Word
	EntryPoints []EntryPoint
}

// programJSON mirrors Program for JSON (de)serialization; Program itself
// stays the in-memory shape codegen and Run actually use.
type programJSON struct {
	SourceName  string       `json:"source_name"`
	Instrs      []Word       `json:"instructions"`
	EntryPoints []EntryPoint `json:"entry_points"`
}

// MarshalJSON implements json.Marshaler.
func (p *Program) MarshalJSON() ([]byte, error) {
	return json.Marshal(programJSON{SourceName: p.SourceName, Instrs: p.Instrs, EntryPoints: p.EntryPoints})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Program) UnmarshalJSON(data []byte) error {
	var pj programJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	p.SourceName, p.Instrs, p.EntryPoints = pj.SourceName, pj.Instrs, pj.EntryPoints
	return nil
}

// EntryPointByName finds an entry point by name, or ok=false if there is
// none with that name.
func (p *Program) EntryPointByName(name string) (EntryPoint, bool) {
	for _, ep := range p.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// LoadInto writes the program's instructions into mem starting at address
// 0, the convention codegen and Run share for where a program's code
// lives: cell i holds Instrs[i] packed into one QM31 the same way
// vm.Instruction.Encode does.
func (p *Program) LoadInto(mem *vm.PagedMemory) {
	for i, w := range p.Instrs {
		mem.Set(uint32(i), core.FromComponents(core.NewFelt(w.Op), core.NewFelt(w.Op0), core.NewFelt(w.Op1), core.NewFelt(w.Op2)))
	}
}

// ProgramHash returns a SHA3-256 digest identifying this program's code
// and entry-point layout, usable as a cache key or as the public
// attestation value a verifier checks the executed program against.
func (p *Program) ProgramHash() [32]byte {
	h := sha3.New256()
	buf := make([]byte, 4)
	putWord := func(w uint32) {
		binary.LittleEndian.PutUint32(buf, w)
		h.Write(buf)
	}
	for _, w := range p.Instrs {
		putWord(w.Op)
		putWord(w.Op0)
		putWord(w.Op1)
		putWord(w.Op2)
	}
	for _, ep := range p.EntryPoints {
		h.Write([]byte(ep.Name))
		putWord(ep.PC)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
