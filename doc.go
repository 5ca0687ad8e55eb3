/*
Package shale provides the core memory and ordering primitives of an
embedded key-value storage engine.

We implement:

1. ByteView, a zero-copy view over a contiguous byte range, used pervasively
as the engine's key/value currency.

2. Comparator, a pluggable total-order contract over ByteViews, with a
built-in lexicographic implementation and key-shortening operations
(separator/successor) that shrink index entries.

3. Arena, a monotonic block-based bump allocator backing short-lived,
arena-owned allocations inside in-memory table structures.

Higher-level engine components (memtables, sorted-table readers and writers,
merge logic, the write path) compose these three contracts; none of them are
part of this package.

# Ownership and lifetime

A ByteView never owns the memory it refers to. The backing buffer (an
external byte slice, a string, or arena memory) must outlive every view of
it, and no view or slice handed out by an Arena may be used after that
arena's Release.

# Concurrency

ByteView reads and all Comparator operations are safe for concurrent use
without locking. Arena allocation has a single logical owner and requires
external synchronization; the one exception is Arena.MemoryUsage, which may
be read lock-free while another goroutine allocates.

The manifest subpackage records the comparator a store was created with and
refuses to open the store under a differently named comparator, which is the
engine's guard against silently corrupting key order.
*/
package shale
