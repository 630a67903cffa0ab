package cairom

import "fmt"

// ErrorCode classifies a public-API error, grounded on
// _examples/vybium-vybium-starks-vm/pkg/vybium-starks-vm/errors.go's
// VMError/ErrorCode shape, adapted from proof-system phases to compiler
// and VM phases.
type ErrorCode int

const (
	// ErrUnknown is an unclassified error.
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig flags a malformed Config.
	ErrInvalidConfig

	// ErrParse flags a lexer/parser failure severe enough to abort the
	// pipeline (diagnostics from recoverable parse errors are reported
	// through Diagnostics, not this code).
	ErrParse

	// ErrValidation flags a fatal validator failure.
	ErrValidation

	// ErrLowering flags an AST-to-MIR lowering failure.
	ErrLowering

	// ErrCodegen flags a MIR-to-CASM codegen failure.
	ErrCodegen

	// ErrVMExecution flags a runtime VM trap.
	ErrVMExecution

	// ErrInvalidInput flags malformed ABI input.
	ErrInvalidInput
)

// VMError is the error type returned across cairom's public API.
type VMError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *VMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cairom error [%d]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("cairom error [%d]: %s", e.Code, e.Message)
}

func (e *VMError) Unwrap() error { return e.Cause }

func (e *VMError) Is(target error) bool {
	t, ok := target.(*VMError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
