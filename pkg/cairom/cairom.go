package cairom

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cairo-m/cairom/internal/cairom/ast"
	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/cairo-m/cairom/internal/cairom/diag"
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/optimize"
	"github.com/cairo-m/cairom/internal/cairom/semantic"
	"github.com/cairo-m/cairom/internal/cairom/types"
	"github.com/cairo-m/cairom/internal/cairom/utils"
	"github.com/cairo-m/cairom/internal/cairom/validate"
	"github.com/cairo-m/cairom/internal/cairom/vm"
)

// log is the package-wide structured logger for internal (non-diagnostic)
// failures: VM traps and codegen errors that abort Run/BuildProgram
// entirely, as opposed to diag.Diagnostic which reports a recoverable
// problem in the user's own program.
var log = logrus.WithField("component", "cairom")

// CompileResult bundles everything a caller might want from a successful
// (or partially successful) compilation: the diagnostics from every
// phase, the parsed module and type resolver, and the lowered MIR module,
// which is nil whenever the diagnostics contain an error.
type CompileResult struct {
	Diagnostics []diag.Diagnostic
	Module      *ast.Module
	Types       *types.Resolver
	MIR         *mir.Module
}

// HasErrors reports whether any diagnostic in the result is Error
// severity.
func (r *CompileResult) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == diag.Error {
			return true
		}
	}
	return false
}

// Compile runs the full front-end pipeline over source: lex, parse,
// build the semantic index, resolve types, run every validator pass,
// then lower to MIR and run it through the optimizer and legalizer
// (spec §4). It never returns a Go error for a malformed program — every
// recoverable problem surfaces as a Diagnostic. When any diagnostic is an
// error, Compile stops before MIR lowering and leaves MIR nil.
func Compile(source string, cfg *utils.Config) *CompileResult {
	if cfg == nil {
		cfg = utils.DefaultConfig()
	}

	mod := ast.Parse(source)
	idx := semantic.Build(mod)
	resolver := types.NewResolver(mod)
	validation := validate.Run(mod, idx, resolver)

	result := &CompileResult{
		Diagnostics: append(append([]diag.Diagnostic{}, mod.Diagnostics...), validation.All()...),
		Module:      mod,
		Types:       resolver,
	}
	diag.SortBySpan(result.Diagnostics)

	if result.HasErrors() {
		return result
	}

	lowered := mir.Build(mod, resolver)
	optimize.NewPassManagerWithConfig(cfg).Run(lowered)
	optimize.Legalize(lowered)
	result.MIR = lowered
	return result
}

// Run executes entryName in program against args, decoded according to
// the entry point's declared ABI, and returns the decoded return value.
// It mirrors the public-API shape of
// _examples/vybium-vybium-starks-vm/pkg/vybium-starks-vm/vm.go's
// VM.Execute, adapted from a STARK-provable trace producer to a direct
// VM run (proving/verifying is out of scope; see DESIGN.md).
func Run(program *Program, entryName string, args []InputValue) (CairoMValue, error) {
	ep, ok := program.EntryPointByName(entryName)
	if !ok {
		return CairoMValue{}, &VMError{Code: ErrInvalidInput, Message: "unknown entry point: " + entryName}
	}
	if len(args) != len(ep.ParamTypes) {
		return CairoMValue{Kind: AbiUnit}, &VMError{Code: ErrInvalidInput, Message: "argument count mismatch"}
	}

	mem := vm.NewDefaultPagedMemory()
	program.LoadInto(mem)

	// Reserve the two call-scratch slots (spec §4.9's [fp-2]=return pc,
	// [fp-1]=saved fp convention) directly below the entry frame, with
	// the saved-fp slot pointing at the frame itself so the entry
	// function's Ret halts instead of jumping through uninitialized
	// memory (vm.State.execRet treats oldFP==FP as the halt condition).
	codeEnd := uint32(len(program.Instrs))
	scratchBase := codeEnd
	frameBase := scratchBase + 2
	mem.Set(scratchBase, core.FromFelt(core.NewFelt(0)))
	mem.Set(scratchBase+1, core.FromFelt(core.NewFelt(frameBase)))

	if _, err := encodeArgs(mem, frameBase, args, ep.ParamTypes); err != nil {
		return CairoMValue{}, err
	}

	state := vm.NewState(mem, ep.PC, frameBase)
	if _, err := state.Run(1 << 20); err != nil {
		wrapped := errors.WithStack(err)
		log.WithError(wrapped).WithField("entry", entryName).Error("VM execution trapped")
		return CairoMValue{}, &VMError{Code: ErrVMExecution, Message: "VM execution failed", Cause: wrapped}
	}

	return decodeReturn(mem, frameBase, ep.ReturnType)
}
