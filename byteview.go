package shale

import (
	"bytes"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// ByteView is a non-owning view over a contiguous byte range. It never
// allocates, copies or frees the memory it refers to; the referenced memory
// must outlive every view of it. Views are cheap values and are meant to be
// passed around by value.
//
// Multiple goroutines can call read methods on a view without
// synchronization, but if any goroutine calls a mutating method (DropPrefix,
// Reset), all goroutines touching that same view instance must synchronize
// externally.
//
// The zero ByteView is the canonical empty view.
type ByteView struct {
	data []byte
}

// emptyBytes backs empty views so that Data always returns a non-nil slice
// with a valid base address.
var emptyBytes = make([]byte, 0, 1)

// MakeByteView returns a view over b. No copy is made; b must stay alive
// and unmodified (or at least un-relocated) for as long as the view is used.
func MakeByteView(b []byte) ByteView {
	return ByteView{data: b}
}

// ByteViewFromString returns a view over the bytes of s without copying.
// Safe because strings are immutable and a view never writes.
func ByteViewFromString(s string) ByteView {
	return ByteView{data: unsafe.Slice(unsafe.StringData(s), len(s))}
}

// Data returns the viewed bytes. The result is never nil, even for the
// empty view. Callers must not modify the returned slice.
func (v ByteView) Data() []byte {
	if v.data == nil {
		return emptyBytes
	}
	return v.data
}

// Len returns the length of the viewed range in bytes.
func (v ByteView) Len() int {
	return len(v.data)
}

// IsEmpty returns true iff the view has length 0.
func (v ByteView) IsEmpty() bool {
	return len(v.data) == 0
}

// At returns the i-th viewed byte. REQUIRES: i < Len().
func (v ByteView) At(i int) byte {
	return v.data[i]
}

// DropPrefix narrows the view by dropping its first n bytes.
// REQUIRES: n <= Len().
func (v *ByteView) DropPrefix(n int) {
	v.data = v.data[n:]
}

// Reset sets the view to the canonical empty view.
func (v *ByteView) Reset() {
	v.data = emptyBytes
}

// String returns an owned copy of the viewed bytes. This is the only
// ByteView operation that copies.
func (v ByteView) String() string {
	return string(v.data)
}

// Compare three-way compares two views lexicographically, byte-wise over
// the common prefix, with length as the final tiebreaker. Returns -1, 0
// or +1.
func (v ByteView) Compare(b ByteView) int {
	return bytes.Compare(v.data, b.data)
}

// Equal reports whether both views refer to identical content of identical
// length. Only content is inspected, never addresses.
func (v ByteView) Equal(b ByteView) bool {
	return bytes.Equal(v.data, b.data)
}

// HasPrefix reports whether prefix's bytes are a byte-wise prefix of v.
// The empty view is a prefix of everything.
func (v ByteView) HasPrefix(prefix ByteView) bool {
	return bytes.HasPrefix(v.data, prefix.data)
}

// Hash64 returns an xxhash64 digest of the viewed content. Two views with
// equal content hash equally regardless of where the content lives.
func (v ByteView) Hash64() uint64 {
	return xxhash.Sum64(v.data)
}
