// Package seqnum implements wraparound-safe arithmetic over 16-bit
// sequence numbers, the foundation every other reliability component
// builds on.
package seqnum

// ID is a 16-bit sequence number that wraps modulo 1<<16.
type ID uint16

// NullID is the -1 "no sequence" sentinel, held in a wider signed type
// than ID. The reliability package marks empty slots with its own
// NullEntry of the same value, and represents an unset "highest
// sequence seen" as ID(0xFFFF) rather than with this constant.
const NullID int32 = -1

// GreaterThan reports whether a is ahead of b using the half-range
// wraparound convention: a is considered greater if the forward
// distance from b to a is shorter than the backward one.
func GreaterThan(a, b ID) bool {
	return (a > b && a-b <= 0x7FFF) || (a < b && b-a > 0x7FFF)
}

// LessThan reports whether a is behind b under the same convention.
func LessThan(a, b ID) bool {
	return GreaterThan(b, a)
}

// AbsDistance returns the forward wraparound distance from rhs to lhs.
func AbsDistance(lhs, rhs ID) uint32 {
	if lhs < rhs {
		return uint32(lhs) + 0x10000 - uint32(rhs)
	}
	return uint32(lhs - rhs)
}

// Stale reports whether seq is older than the oldest sequence the
// window can still accept given the current expected sequence.
func Stale(seq, expected ID, window uint32) bool {
	return LessThan(seq, expected-ID(window))
}
