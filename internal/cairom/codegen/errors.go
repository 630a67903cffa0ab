package codegen

import "fmt"

// Error reports a codegen-time failure: a MIR shape codegen has no
// instruction selection for. Unlike a Diagnostic (spec §6), these never
// reach end users — by the time MIR exists, validate has already accepted
// the program; an Error here means a construct codegen's instruction
// selection intentionally doesn't cover (see DESIGN.md).
type Error struct {
	Function string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("codegen: %s: %s", e.Function, e.Message)
}
