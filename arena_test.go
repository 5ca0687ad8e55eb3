package shale

import (
	"testing"
	"unsafe"
)

func TestArena_Basics(t *testing.T) {
	a := NewArena()
	if got := a.MemoryUsage(); got != 0 {
		t.Fatalf("MemoryUsage of empty arena = %d, wanted 0", got)
	}

	p := a.Allocate(16)
	if len(p) != 16 || cap(p) != 16 {
		t.Fatalf("Allocate(16): len = %d, cap = %d, wanted 16, 16", len(p), cap(p))
	}
	q := a.Allocate(8)
	if len(q) != 8 {
		t.Fatalf("Allocate(8): len = %d, wanted 8", len(q))
	}

	// Both came from the same standard block, back to back.
	if uintptr(unsafe.Pointer(unsafe.SliceData(q))) != uintptr(unsafe.Pointer(unsafe.SliceData(p)))+16 {
		t.Fatalf("second allocation is not adjacent to the first within the block")
	}
	if got := a.MemoryUsage(); got < 24 {
		t.Fatalf("MemoryUsage = %d, wanted at least 24 (bytes requested so far)", got)
	}
}

func TestArena_ZeroAllocationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Allocate(0) did not panic")
		}
	}()
	NewArena().Allocate(0)
}

func TestArena_NoOverlap(t *testing.T) {
	// Mixed-size allocations must each keep their own bytes intact.
	a := NewArena()
	sizes := []int{1, 7, 16, 100, 500, ArenaBlockSize / 4, 1, 3000, ArenaBlockSize + 1, 25}
	allocated := make([][]byte, len(sizes))
	var requested int64
	for i, n := range sizes {
		p := a.Allocate(n)
		for j := range p {
			p[j] = byte(i)
		}
		allocated[i] = p
		requested += int64(n)
	}
	for i, p := range allocated {
		if len(p) != sizes[i] {
			t.Fatalf("allocation %d: len = %d, wanted %d", i, len(p), sizes[i])
		}
		for j, b := range p {
			if b != byte(i) {
				t.Fatalf("allocation %d clobbered at offset %d: got %d", i, j, b)
			}
		}
	}
	if got := a.MemoryUsage(); got < requested {
		t.Fatalf("MemoryUsage = %d, wanted at least %d (sum of requests)", got, requested)
	}
}

func TestArena_MemoryUsageMonotonic(t *testing.T) {
	a := NewArena()
	prev := a.MemoryUsage()
	for i := 1; i <= 200; i++ {
		a.Allocate(i*37%997 + 1)
		if got := a.MemoryUsage(); got < prev {
			t.Fatalf("MemoryUsage decreased: %d after %d", got, prev)
		} else {
			prev = got
		}
	}
}

func TestArena_Alignment(t *testing.T) {
	a := NewArena()
	// Unalign the bump pointer first.
	a.Allocate(1)
	for _, n := range []int{1, 2, 3, 8, 9, 100, ArenaBlockSize / 4, ArenaBlockSize * 2} {
		p := a.AllocateAligned(n)
		if len(p) != n {
			t.Fatalf("AllocateAligned(%d): len = %d, wanted %d", n, len(p), n)
		}
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
		if addr%uintptr(arenaAlign) != 0 {
			t.Fatalf("AllocateAligned(%d): address %#x not %d-aligned", n, addr, arenaAlign)
		}
		a.Allocate(1) // keep the bump pointer odd between rounds
	}
}

func TestArena_QuarterRequestServedFromCurrentBlock(t *testing.T) {
	// A quarter-block request that still fits in the current block is
	// served from the bump pointer; the dedicated-block path only applies
	// once the current block cannot satisfy the request.
	a := NewArena()
	p := a.Allocate(10)
	before := a.MemoryUsage()
	q := a.Allocate(ArenaBlockSize / 4)
	if got := a.MemoryUsage(); got != before {
		t.Fatalf("in-block quarter request grew usage by %d, wanted 0", got-before)
	}
	pBase := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	qBase := uintptr(unsafe.Pointer(unsafe.SliceData(q)))
	if qBase != pBase+10 {
		t.Fatalf("in-block quarter request was not served from the bump pointer")
	}
}

func TestArena_LargeAllocationIsolation(t *testing.T) {
	a := NewArena()
	small1 := a.Allocate(10)
	filler := a.Allocate(ArenaBlockSize - 16) // leaves 6 free bytes in the shared block
	before := a.MemoryUsage()

	// The 6 remaining bytes cannot satisfy a quarter-block request, so the
	// fallback gives it a dedicated block of exactly the requested size
	// and leaves the shared bump state untouched.
	big := a.Allocate(ArenaBlockSize / 4)
	if got := a.MemoryUsage() - before; got != int64(ArenaBlockSize/4)+int64(unsafe.Sizeof([]byte(nil))) {
		t.Fatalf("dedicated block grew usage by %d, wanted exactly request + block bookkeeping", got)
	}

	small2 := a.Allocate(4)
	fillerBase := uintptr(unsafe.Pointer(unsafe.SliceData(filler)))
	base2 := uintptr(unsafe.Pointer(unsafe.SliceData(small2)))
	if base2 != fillerBase+uintptr(len(filler)) {
		t.Fatalf("small allocation after a dedicated block did not resume the shared block")
	}
	base1 := uintptr(unsafe.Pointer(unsafe.SliceData(small1)))
	bigBase := uintptr(unsafe.Pointer(unsafe.SliceData(big)))
	if bigBase >= base1 && bigBase < base1+ArenaBlockSize {
		t.Fatalf("dedicated block overlaps the shared block")
	}
}

func TestArena_AlignedFallbackThreshold(t *testing.T) {
	blockOverhead := int64(unsafe.Sizeof([]byte(nil)))

	// Exactly a quarter block: dedicated block, over-allocated by one
	// alignment unit so the result can be padded to a boundary.
	a := NewArena()
	p := a.AllocateAligned(ArenaBlockSize / 4)
	if got := a.MemoryUsage(); got != int64(ArenaBlockSize/4+arenaAlign)+blockOverhead {
		t.Fatalf("dedicated aligned block grew usage by %d, wanted request + alignment pad + block bookkeeping", got)
	}
	if len(p) != ArenaBlockSize/4 {
		t.Fatalf("AllocateAligned(%d): len = %d, wanted %d", ArenaBlockSize/4, len(p), ArenaBlockSize/4)
	}

	// Just below a quarter block: a fresh standard block instead.
	a = NewArena()
	q := a.AllocateAligned(ArenaBlockSize/4 - 1)
	if got := a.MemoryUsage(); got != int64(ArenaBlockSize)+blockOverhead {
		t.Fatalf("sub-quarter aligned request grew usage by %d, wanted one standard block + block bookkeeping", got)
	}
	if len(q) != ArenaBlockSize/4-1 {
		t.Fatalf("AllocateAligned(%d): len = %d, wanted %d", ArenaBlockSize/4-1, len(q), ArenaBlockSize/4-1)
	}
}

func TestArena_AppendCannotClobberNeighbor(t *testing.T) {
	a := NewArena()
	p := a.Allocate(4)
	q := a.Allocate(4)
	copy(q, []byte{1, 2, 3, 4})
	_ = append(p, 9, 9, 9, 9) // must reallocate, not spill into q
	for i, b := range q {
		if b != byte(i+1) {
			t.Fatalf("append to a neighbor clobbered q[%d] = %d", i, b)
		}
	}
}

func TestArena_ConcurrentUsageReads(t *testing.T) {
	// Allocation itself is externally serialized; only the usage counter
	// may be read concurrently.
	a := NewArena()
	done := make(chan struct{})
	go func() {
		defer close(done)
		prev := int64(0)
		for i := 0; i < 10000; i++ {
			if got := a.MemoryUsage(); got < prev {
				t.Errorf("concurrent MemoryUsage decreased: %d after %d", got, prev)
				return
			} else {
				prev = got
			}
		}
	}()
	for i := 0; i < 1000; i++ {
		a.Allocate(i%512 + 1)
	}
	<-done
}

func TestArena_Release(t *testing.T) {
	a := NewArena()
	a.Allocate(100)
	a.Release()
	if a.blocks != nil || a.buf != nil {
		t.Fatalf("Release did not drop block references")
	}
}
