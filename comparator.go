package shale

import "strings"

// ReservedNamePrefix is the namespace reserved for built-in comparators.
// External comparator implementations must not use names starting with it,
// including for future built-ins that do not exist yet.
const ReservedNamePrefix = "shale."

// Comparator defines a total order over ByteViews used as keys in ordered
// structures, plus two optional key-shortening operations that reduce the
// size of index entries. Implementations must be safe for concurrent use
// from multiple goroutines without locking, i.e. stateless or internally
// synchronized.
type Comparator interface {
	// Compare three-way compares a and b under this comparator's order.
	// Returns < 0 iff a < b, 0 iff a == b, > 0 iff a > b. The order must
	// be a strict total order: antisymmetric, transitive, and consistent
	// with the comparator's own notion of equality.
	Compare(a, b ByteView) int

	// Name returns a stable identifier for this ordering. A store records
	// the name it was created with and refuses to open under a comparator
	// with a different name; change the name whenever the implementation
	// changes in a way that reorders any two keys. Names starting with
	// ReservedNamePrefix are reserved for built-ins.
	Name() string

	// FindShortestSeparator returns start, possibly truncated or modified
	// in place, such that the result s still satisfies start <= s < limit
	// using the original start as the lower bound. REQUIRES: start < limit.
	// Returning start unchanged is always correct.
	FindShortestSeparator(start []byte, limit ByteView) []byte

	// FindShortSuccessor returns key, possibly truncated or modified in
	// place, such that the result s satisfies s >= key under this order.
	// Returning key unchanged is always correct.
	FindShortSuccessor(key []byte) []byte
}

// IsReservedComparatorName reports whether name falls in the namespace
// reserved for built-in comparators.
func IsReservedComparatorName(name string) bool {
	return strings.HasPrefix(name, ReservedNamePrefix)
}

// bytewiseName identifies the built-in lexicographic order. Never reuse it
// for a comparator that orders any two keys differently.
const bytewiseName = ReservedNamePrefix + "BytewiseComparator"

var bytewise Comparator = bytewiseComparator{}

// BytewiseComparator returns the built-in comparator ordering keys by plain
// lexicographic byte order with length as the tiebreaker, exactly matching
// ByteView.Compare. The returned instance is stateless and shared
// process-wide; it is safe to use from any number of goroutines.
func BytewiseComparator() Comparator {
	return bytewise
}

type bytewiseComparator struct{}

func (bytewiseComparator) Compare(a, b ByteView) int {
	return a.Compare(b)
}

func (bytewiseComparator) Name() string {
	return bytewiseName
}

func (bytewiseComparator) FindShortestSeparator(start []byte, limit ByteView) []byte {
	minLen := min(len(start), limit.Len())
	diff := 0
	for diff < minLen && start[diff] == limit.At(diff) {
		diff++
	}
	if diff >= minLen {
		// One is a prefix of the other; no shorter separator exists.
		return start
	}
	if b := start[diff]; b < 0xff && b+1 < limit.At(diff) {
		start = start[:diff+1]
		start[diff]++
	}
	return start
}

func (bytewiseComparator) FindShortSuccessor(key []byte) []byte {
	for i, b := range key {
		if b != 0xff {
			key = key[:i+1]
			key[i]++
			return key
		}
	}
	// All 0xff (or empty): no shorter successor is representable.
	return key
}
