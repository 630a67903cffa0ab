// Package cairom provides the public API for compiling and running
// Cairo-M programs: a statically-typed language that lowers to a
// 32-opcode register-based bytecode (CASM) executed over the
// Mersenne-31 prime field.
//
// # Architecture
//
// - pkg/cairom/: public API (this package)
// - internal/cairom/: private implementation (not importable)
//
// The public API provides stable interfaces for:
//   - Compiling source to diagnostics and MIR (Compile), and building a
//     runnable Program from the result (BuildProgram)
//   - Running a Program's entry points (Run)
//   - Encoding/decoding ABI values for CLI-style invocation (ParseCLIArg)
//   - A cooperative diagnostics controller for editor-style incremental
//     recomputation (DiagnosticsController)
//
// Implementation details in internal/ (the lexer/parser, semantic
// index, type resolver, validators, MIR builder, optimizer, legalizer,
// and VM) can change without breaking this package's API.
//
// # Quick Start
//
//	result := cairom.Compile(source, nil)
//	if result.HasErrors() {
//		for _, d := range result.Diagnostics {
//			fmt.Println(diag.Render(source, d))
//		}
//		return
//	}
//
// # Non-goals
//
// This package does not implement STARK proof generation or
// verification, an LSP server, a CLI binary, or a WASM front-end; it
// implements the compiler front-end, MIR pipeline, and a direct VM
// executor only.
package cairom
