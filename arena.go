package shale

import (
	"sync/atomic"
	"unsafe"
)

// ArenaBlockSize is the size of a standard arena block. Larger blocks mean
// fewer allocations but more slack wasted when a block is abandoned; 4 KiB
// keeps the worst-case waste at one page per arena.
const ArenaBlockSize = 4096

// arenaAlign is the granularity guaranteed by AllocateAligned: the larger
// of 8 and the pointer size, which is a power of two on every supported
// platform.
const arenaAlign = max(8, int(unsafe.Sizeof(uintptr(0))))

func init() {
	if arenaAlign&(arenaAlign-1) != 0 || arenaAlign > 128 {
		panic("shale: arena alignment must be a power of two no larger than 128")
	}
}

// Arena is a monotonic bump allocator. Memory is handed out from
// fixed-size blocks and is never freed individually; Release drops every
// block at once, after which no slice previously returned by the arena may
// be used.
//
// Allocation requires external synchronization: an arena is meant to have a
// single logical owner serializing Allocate/AllocateAligned calls. Only
// MemoryUsage is safe to call concurrently with allocation.
type Arena struct {
	buf    []byte // free tail of the current block
	blocks [][]byte
	usage  atomic.Int64
}

// NewArena returns an empty arena with no blocks allocated yet.
func NewArena() *Arena {
	return &Arena{}
}

// Allocate returns n bytes of arena-owned memory. The returned slice has
// length and capacity exactly n, so appending to it can never clobber a
// neighboring allocation. REQUIRES: n > 0.
func (a *Arena) Allocate(n int) []byte {
	// Free-space bookkeeping is ill-defined for zero-size requests, so
	// they are rejected as a caller error.
	if n <= 0 {
		panic("shale: arena allocation size must be positive")
	}
	if n <= len(a.buf) {
		p := a.buf[:n:n]
		a.buf = a.buf[n:]
		return p
	}
	return a.allocateFallback(n)
}

// AllocateAligned is Allocate with the guarantee that the returned memory
// starts at an address aligned to the larger of 8 bytes and the pointer
// size. REQUIRES: n > 0.
func (a *Arena) AllocateAligned(n int) []byte {
	if n <= 0 {
		panic("shale: arena allocation size must be positive")
	}
	slop := alignPadding(a.buf)
	if n+slop <= len(a.buf) {
		p := a.buf[slop : slop+n : slop+n]
		a.buf = a.buf[slop+n:]
		return p
	}
	return a.allocateAlignedFallback(n)
}

// MemoryUsage returns the total bytes held by the arena: every block ever
// allocated plus per-block bookkeeping, including alignment padding and
// abandoned block slack. Safe to call concurrently with allocations; the
// value is monotonically non-decreasing.
func (a *Arena) MemoryUsage() int64 {
	return a.usage.Load()
}

// Release drops every block in one pass, ending the arena's life. All
// memory previously returned by Allocate/AllocateAligned becomes invalid
// and must not be referenced afterwards.
func (a *Arena) Release() {
	a.buf = nil
	a.blocks = nil
}

func (a *Arena) allocateFallback(n int) []byte {
	if n >= ArenaBlockSize/4 {
		// Oversized request: dedicated block of exactly n, leaving the
		// current block's remaining space intact for small requests.
		block := a.allocateNewBlock(n)
		return block[:n:n]
	}
	// Abandon the current block's tail (bounded waste, under a quarter
	// block) and start a fresh standard block.
	a.buf = a.allocateNewBlock(ArenaBlockSize)
	p := a.buf[:n:n]
	a.buf = a.buf[n:]
	return p
}

func (a *Arena) allocateAlignedFallback(n int) []byte {
	// Fresh blocks come from the Go heap with no alignment promise for
	// byte slices, so every path pads inside the new block; a dedicated
	// block is over-allocated by one alignment unit to leave room for
	// that padding.
	if n >= ArenaBlockSize/4 {
		block := a.allocateNewBlock(n + arenaAlign)
		slop := alignPadding(block)
		return block[slop : slop+n : slop+n]
	}
	a.buf = a.allocateNewBlock(ArenaBlockSize)
	slop := alignPadding(a.buf)
	p := a.buf[slop : slop+n : slop+n]
	a.buf = a.buf[slop+n:]
	return p
}

func (a *Arena) allocateNewBlock(blockBytes int) []byte {
	block := make([]byte, blockBytes)
	a.blocks = append(a.blocks, block)
	a.usage.Add(int64(blockBytes) + int64(unsafe.Sizeof(block)))
	return block
}

// alignPadding returns how many bytes must be skipped at the front of b for
// the remainder to start at an arenaAlign boundary.
func alignPadding(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	mod := int(uintptr(unsafe.Pointer(unsafe.SliceData(b))) & uintptr(arenaAlign-1))
	if mod == 0 {
		return 0
	}
	return arenaAlign - mod
}
