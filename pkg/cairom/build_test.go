package cairom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildProgramAndRunAddTwoFelts exercises the full pipeline end to
// end: source text through Compile, codegen via BuildProgram, and
// execution via Run, matching spec §8's "add two felts" scenario.
func TestBuildProgramAndRunAddTwoFelts(t *testing.T) {
	src := `
fn add(a: felt, b: felt) -> felt {
    return a + b;
}
`
	result := Compile(src, nil)
	require.False(t, result.HasErrors())

	program, err := BuildProgram("add.cm", result)
	require.NoError(t, err)
	require.Len(t, program.EntryPoints, 1)
	assert.Equal(t, "add", program.EntryPoints[0].Name)

	out, err := Run(program, "add", []InputValue{
		{Kind: InputNumber, Number: 7},
		{Kind: InputNumber, Number: 35},
	})
	require.NoError(t, err)
	assert.Equal(t, AbiFelt, out.Kind)
	assert.Equal(t, uint32(42), out.Felt)
}

// TestBuildProgramEqualityBranch exercises TermBranch/materialize lowering
// through the full pipeline, using "==" rather than an ordering comparison
// (spec §4.9 notes runtime ordering comparisons aren't implementable
// without the range-check builtin; see DESIGN.md).
func TestBuildProgramEqualityBranch(t *testing.T) {
	src := `
fn isZero(a: felt) -> bool {
    if a == 0 {
        return true;
    }
    return false;
}
`
	result := Compile(src, nil)
	require.False(t, result.HasErrors())

	program, err := BuildProgram("iszero.cm", result)
	require.NoError(t, err)

	out, err := Run(program, "isZero", []InputValue{{Kind: InputNumber, Number: 0}})
	require.NoError(t, err)
	assert.Equal(t, AbiBool, out.Kind)
	assert.True(t, out.Bool)

	out, err = Run(program, "isZero", []InputValue{{Kind: InputNumber, Number: 5}})
	require.NoError(t, err)
	assert.False(t, out.Bool)
}

// TestBuildProgramRejectsErroredCompile ensures BuildProgram refuses to
// run codegen over a CompileResult that never reached MIR.
func TestBuildProgramRejectsErroredCompile(t *testing.T) {
	src := `fn bad(a: felt) -> felt { }`
	result := Compile(src, nil)
	require.True(t, result.HasErrors())

	_, err := BuildProgram("bad.cm", result)
	require.Error(t, err)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, ErrCodegen, vmErr.Code)
}
