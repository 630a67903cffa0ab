package vm

import (
	"testing"

	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// program writes one StoreAddFpImm instruction followed by a Ret that
// returns to itself, matching spec §8's "add two felts" end-to-end scenario.
func TestStateAddTwoFelts(t *testing.T) {
	mem := NewPagedMemory(1<<12, 1<<6)
	const fp uint32 = 100

	mem.Set(fp+0, core.FromFelt(core.NewFelt(7))) // operand a
	mem.Set(fp+2, core.FromFelt(core.NewFelt(fp))) // saved old fp == fp: signals halt on Ret
	mem.Set(fp+3, core.FromFelt(core.NewFelt(0)))  // saved return pc, unused on halt

	add := Instruction{Op: StoreAddFpImm, Op0: core.FeltFromSignedOffset(0), Op1: core.NewFelt(35), Op2: core.FeltFromSignedOffset(1)}
	ret := Instruction{Op: Ret, Op0: core.FeltFromSignedOffset(3), Op1: core.FeltFromSignedOffset(2)}
	mem.Set(0, add.Encode())
	mem.Set(1, ret.Encode())

	st := NewState(mem, 0, fp)
	steps, err := st.Run(10)
	require.NoError(t, err)
	assert.Equal(t, 2, steps)
	assert.True(t, st.Halted)

	sum, ok := mem.Get(fp + 1)
	require.True(t, ok)
	assert.Equal(t, uint32(42), sum.AsFelt().Value())
}

func TestStateDivisionByZero(t *testing.T) {
	mem := NewPagedMemory(1<<12, 1<<6)
	const fp uint32 = 0
	mem.Set(fp, core.FromFelt(core.NewFelt(5)))
	div := Instruction{Op: StoreDivFpImm, Op0: core.FeltFromSignedOffset(0), Op1: core.NewFelt(0), Op2: core.FeltFromSignedOffset(1)}
	mem.Set(10, div.Encode())

	st := NewState(mem, 10, fp)
	_, err := st.Run(5)
	require.Error(t, err)
	var vmErr *Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, DivisionByZero, vmErr.Code)
}

func TestStateInvalidOpcode(t *testing.T) {
	mem := NewPagedMemory(1<<12, 1<<6)
	mem.Set(0, core.FromComponents(core.NewFelt(99), core.FeltZero, core.FeltZero, core.FeltZero))
	st := NewState(mem, 0, 0)
	_, err := st.Run(5)
	require.Error(t, err)
	var vmErr *Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, InvalidOpcode, vmErr.Code)
}
