// Package seqnum defines the types for sequence numbers used by the LFTP
// send/receive engines. Sequence numbers are 32-bit stream offsets that can
// wrap around; every comparison between two values must therefore be done
// modulo 2^32 rather than with plain integer less-than.
package seqnum

// Value represents the value of a sequence number
type Value uint32

// Size represents the size of a sequence number window
type Size uint32

// LessThan checks if v is before w, modulo the 2^32 wraparound
func (v Value) LessThan(w Value) bool {
	return int32(v-w) < 0
}

// LessThanEq checks if v is before or equal to w
func (v Value) LessThanEq(w Value) bool {
	return v == w || v.LessThan(w)
}

// InRange checks if v is in the range [a, b)
func (v Value) InRange(a, b Value) bool {
	return v-a < b-a
}

// Size computes the difference between v and w, i.e. w - v, as a Size. It is
// intended for computing the number of bytes between a lower and upper bound
func (v Value) Size(w Value) Size {
	return Size(w - v)
}

// Add adds the given Size to v and returns the resulting Value
func (v Value) Add(s Size) Value {
	return v + Value(s)
}
