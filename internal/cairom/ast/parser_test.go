package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunctionAddTwoFelts(t *testing.T) {
	src := `
fn add(a: felt, b: felt) -> felt {
    return a + b;
}
`
	mod := Parse(src)
	require.Empty(t, mod.Diagnostics)
	require.Len(t, mod.Items, 1)
	fn, ok := mod.Items[0].(*FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	require.Len(t, fn.Body.Stmts, 1)
	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseStructAndFieldAccess(t *testing.T) {
	src := `
struct Point { x: felt, y: felt }

fn sum(p: Point) -> felt {
    return p.x + p.y;
}
`
	mod := Parse(src)
	require.Empty(t, mod.Diagnostics)
	require.Len(t, mod.Items, 2)
	st, ok := mod.Items[0].(*StructDecl)
	require.True(t, ok)
	assert.Equal(t, "Point", st.Name)
	require.Len(t, st.Fields, 2)
}

func TestParseIfConditionIsNotMistakenForStructLit(t *testing.T) {
	src := `
fn pick(flag: bool) -> felt {
    if flag {
        return 1;
    } else {
        return 0;
    }
}
`
	mod := Parse(src)
	require.Empty(t, mod.Diagnostics)
	fn := mod.Items[0].(*FuncDecl)
	ifStmt, ok := fn.Body.Stmts[0].(*IfStmt)
	require.True(t, ok)
	_, isIdent := ifStmt.Cond.(*IdentExpr)
	assert.True(t, isIdent)
}

func TestParseMalformedItemRecovers(t *testing.T) {
	src := `
fn broken( {
}

fn ok() -> felt {
    return 1;
}
`
	mod := Parse(src)
	assert.NotEmpty(t, mod.Diagnostics)
}
