package vm

import (
	"testing"

	"github.com/cairo-m/cairom/internal/cairom/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsSparseAndEmpty(t *testing.T) {
	m := NewDefaultPagedMemory()
	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0, m.Len())
	for _, p := range m.pages {
		assert.Nil(t, p)
	}
}

func TestReadDoesNotAllocatePages(t *testing.T) {
	m := NewPagedMemory(1<<10, 1<<4)
	_, ok := m.Get(5)
	assert.False(t, ok)
	assert.Nil(t, m.getPage(5))
	assert.Equal(t, 0, m.Len())
}

func TestWriteAllocatesOnePageAndUpdatesLen(t *testing.T) {
	m := NewPagedMemory(1<<10, 1<<4)
	m.Set(5, core.FromFelt(core.NewFelt(42)))
	assert.Equal(t, 1, m.Len())
	require.NotNil(t, m.getPage(5))

	v, ok := m.Get(5)
	require.True(t, ok)
	assert.True(t, v.Equal(core.FromFelt(core.NewFelt(42))))

	neighborPage := m.getPage(1 << 8)
	assert.Nil(t, neighborPage)
}

func TestIndexMutAllocatesAndUpdatesLen(t *testing.T) {
	m := NewPagedMemory(1<<10, 1<<4)
	m.Set(3, core.FromFelt(core.NewFelt(7)))
	m.Set(3, core.FromFelt(core.NewFelt(9)))
	assert.Equal(t, 1, m.Len(), "overwriting an already-set cell must not bump len twice")
	v, ok := m.Get(3)
	require.True(t, ok)
	assert.True(t, v.Equal(core.FromFelt(core.NewFelt(9))))
}

func TestExtendAllocatesPagesAsNeeded(t *testing.T) {
	m := NewPagedMemory(1<<10, 1<<4)
	values := make([]core.QM31, 40)
	for i := range values {
		values[i] = core.FromFelt(core.NewFelt(uint32(i)))
	}
	m.Extend(0, values)
	assert.Equal(t, 40, m.Len())
	for i, want := range values {
		got, ok := m.Get(uint32(i))
		require.True(t, ok)
		assert.True(t, got.Equal(want))
	}
}

func TestGetOutOfRangeReturnsNone(t *testing.T) {
	m := NewPagedMemory(1<<10, 1<<4)
	_, ok := m.Get(1 << 20)
	assert.False(t, ok)
}

func TestToInitializedMap(t *testing.T) {
	m := NewPagedMemory(1<<10, 1<<4)
	m.Set(0, core.FromFelt(core.NewFelt(1)))
	m.Set(20, core.FromFelt(core.NewFelt(2)))
	m.Set(1<<9, core.FromFelt(core.NewFelt(3)))

	got := m.ToInitializedMap()
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(core.FromFelt(core.NewFelt(1))))
	assert.True(t, got[20].Equal(core.FromFelt(core.NewFelt(2))))
	assert.True(t, got[1<<9].Equal(core.FromFelt(core.NewFelt(3))))
}
