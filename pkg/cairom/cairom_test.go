package cairom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCLIArgNestedStructures(t *testing.T) {
	v, err := ParseCLIArg("[1,{2,[3,4],(5,6)},false]")
	require.NoError(t, err)
	require.Equal(t, InputList, v.Kind)
	require.Len(t, v.List, 3)
	assert.Equal(t, InputNumber, v.List[0].Kind)
	assert.Equal(t, int64(1), v.List[0].Number)
	assert.Equal(t, InputStruct, v.List[1].Kind)
	require.Len(t, v.List[1].Struct, 3)
	assert.Equal(t, InputBool, v.List[2].Kind)
	assert.False(t, v.List[2].Bool)
}

func TestParseCLIArgWhitespaceHandling(t *testing.T) {
	v, err := ParseCLIArg("  { 1 , 2 , [ 3 , 4 ] }  ")
	require.NoError(t, err)
	require.Equal(t, InputStruct, v.Kind)
	require.Len(t, v.Struct, 3)
}

func TestParseCLIArgTrailingCharactersError(t *testing.T) {
	_, err := ParseCLIArg("{1} extra")
	require.Error(t, err)
}

func TestParseCLIArgInvalidBoolean(t *testing.T) {
	_, err := ParseCLIArg("tru")
	require.Error(t, err)
}

func TestCompileAddTwoFelts(t *testing.T) {
	src := `
fn add(a: felt, b: felt) -> felt {
    return a + b;
}
`
	result := Compile(src, nil)
	require.False(t, result.HasErrors())
	require.NotNil(t, result.MIR)
	require.Len(t, result.MIR.Functions, 1)
	assert.Equal(t, "add", result.MIR.Functions[0].Name)
}

func TestCompileMissingReturnDiagnostic(t *testing.T) {
	src := `
fn bad(a: felt) -> felt {
    if a == 0 {
        return 1;
    }
}
`
	result := Compile(src, nil)
	require.True(t, result.HasErrors())
}

func TestFeltFromI64Extremes(t *testing.T) {
	const p = int64(1)<<31 - 1
	assert.Less(t, FeltFromI64(-1), uint32(p))
	assert.Equal(t, p-1, int64(FeltFromI64(-1)))
	assert.Equal(t, uint32(0), FeltFromI64(-p))
}
