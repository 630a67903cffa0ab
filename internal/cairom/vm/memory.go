package vm

import (
	"math/bits"

	"github.com/cairo-m/cairom/internal/cairom/core"
)

// DefaultMemorySize is the full 2^28-cell address space.
const DefaultMemorySize = 1 << 28

// DefaultPageSize is the number of cells per lazily-allocated page.
const DefaultPageSize = 1 << 16

// page holds one slice of the address space plus an init bitmap so reads
// never have to allocate and to_initialized_map can be built without
// scanning every cell.
type page struct {
	data     []core.QM31
	initBits []uint64
}

func newPage(size int) *page {
	return &page{
		data:     make([]core.QM31, size),
		initBits: make([]uint64, (size+63)/64),
	}
}

func (p *page) isSet(i int) bool {
	return p.initBits[i/64]&(uint64(1)<<uint(i%64)) != 0
}

func (p *page) set(i int) {
	p.initBits[i/64] |= uint64(1) << uint(i%64)
}

// PagedMemory is a sparse address space: pages are allocated lazily on
// first write, and reads of an unallocated page return "uninitialized"
// without ever allocating anything (spec §4.9 / grounded verbatim on the
// original paged_memory.rs, including its test names — see memory_test.go).
type PagedMemory struct {
	pageSize int
	numPages int
	length   int
	pages    []*page
}

// NewPagedMemory creates a sparse address space of memSize cells divided
// into pages of pageSize cells. memSize must be a multiple of pageSize.
func NewPagedMemory(memSize, pageSize int) *PagedMemory {
	if pageSize <= 0 || memSize%pageSize != 0 {
		panic("vm: memSize must be a positive multiple of pageSize")
	}
	return &PagedMemory{
		pageSize: pageSize,
		numPages: memSize / pageSize,
		pages:    make([]*page, memSize/pageSize),
	}
}

// NewDefaultPagedMemory builds a PagedMemory at the standard 2^28/2^16
// sizing, overridable via the CAIRO_M_PAGE_SIZE environment knob at the
// call site (internal/cairom/utils reads that knob, not this package).
func NewDefaultPagedMemory() *PagedMemory {
	return NewPagedMemory(DefaultMemorySize, DefaultPageSize)
}

func (m *PagedMemory) pageIndex(addr uint32) (page int, offset int) {
	return int(addr) / m.pageSize, int(addr) % m.pageSize
}

// getPageMut returns the page for addr, allocating it if necessary.
func (m *PagedMemory) getPageMut(addr uint32) *page {
	pi, _ := m.pageIndex(addr)
	if m.pages[pi] == nil {
		m.pages[pi] = newPage(m.pageSize)
	}
	return m.pages[pi]
}

// getPage returns the page for addr without allocating it.
func (m *PagedMemory) getPage(addr uint32) *page {
	pi, _ := m.pageIndex(addr)
	if pi >= len(m.pages) {
		return nil
	}
	return m.pages[pi]
}

// Set writes value at addr, allocating its page on first touch.
func (m *PagedMemory) Set(addr uint32, value core.QM31) {
	_, off := m.pageIndex(addr)
	p := m.getPageMut(addr)
	if !p.isSet(off) {
		p.set(off)
		m.length++
	}
	p.data[off] = value
}

// Get reads addr without allocating its page. ok is false if the cell was
// never written.
func (m *PagedMemory) Get(addr uint32) (value core.QM31, ok bool) {
	p := m.getPage(addr)
	if p == nil {
		return core.QM31Zero, false
	}
	_, off := m.pageIndex(addr)
	if !p.isSet(off) {
		return core.QM31Zero, false
	}
	return p.data[off], true
}

// Len reports the number of cells ever written.
func (m *PagedMemory) Len() int { return m.length }

// IsEmpty reports whether no cell has ever been written.
func (m *PagedMemory) IsEmpty() bool { return m.length == 0 }

// Extend writes a contiguous run of values starting at addr, allocating
// pages as needed, mirroring the original's Extend(iter) used to load a
// compiled program's instruction words at startup.
func (m *PagedMemory) Extend(addr uint32, values []core.QM31) {
	for i, v := range values {
		m.Set(addr+uint32(i), v)
	}
}

// ToInitializedMap returns every written (address, value) pair. This is the
// input to the prover's memory-consistency argument.
func (m *PagedMemory) ToInitializedMap() map[uint32]core.QM31 {
	out := make(map[uint32]core.QM31, m.length)
	for pi, p := range m.pages {
		if p == nil {
			continue
		}
		base := pi * m.pageSize
		for wordIdx, word := range p.initBits {
			for word != 0 {
				bit := bits.TrailingZeros64(word)
				word &= word - 1
				off := wordIdx*64 + bit
				out[uint32(base+off)] = p.data[off]
			}
		}
	}
	return out
}
