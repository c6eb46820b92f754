package tcp

// Value is a TCP sequence number. Arithmetic on Value is modular 32-bit
// as per RFC 9293 §3.4: comparisons must go through the signed-wraparound
// helpers below and never through Go's native <, <=, >, >= on the raw bits.
type Value uint32

// Size is a count of octets in sequence space: a segment length, a window
// size, or the distance between two [Value]s.
type Size uint32

// Add implements SEQ_ADD(a,n) := (uint32)(a+n).
func Add(a Value, n Size) Value { return a + Value(n) }

// Sub implements SEQ_SUB(a,b) := (uint32)(a-b), the forward distance from b to a.
func Sub(a, b Value) Size { return Size(a - b) }

// Sizeof returns the forward distance from `from` to `to`, i.e. Sub(to, from).
// Mirrors the common call shape `Sizeof(una, nxt)` meaning "bytes in flight".
func Sizeof(from, to Value) Size { return Sub(to, from) }

// LessThan implements SEQ_LT(a,b) := (int32)(a-b) < 0.
func (a Value) LessThan(b Value) bool { return int32(a-b) < 0 }

// LessThanEq implements SEQ_LE(a,b) := (int32)(a-b) <= 0.
func (a Value) LessThanEq(b Value) bool { return a == b || a.LessThan(b) }

// GreaterThan implements SEQ_GT(a,b) := (int32)(a-b) > 0.
func (a Value) GreaterThan(b Value) bool { return b.LessThan(a) }

// GreaterThanEq implements SEQ_GE(a,b) := (int32)(a-b) >= 0.
func (a Value) GreaterThanEq(b Value) bool { return b.LessThanEq(a) }

// InWindow reports whether seq lies in [base, base+wnd) under modular
// arithmetic. A zero-width window (wnd==0) never contains anything.
func (seq Value) InWindow(base Value, wnd Size) bool {
	if wnd == 0 {
		return false
	}
	return Sub(seq, base) < Size(wnd)
}

// UpdateForward advances *v by n in sequence space. Equivalent to
// *v = Add(*v, n), kept as a method for call-site symmetry with the
// teacher's accessor style.
func (v *Value) UpdateForward(n Size) { *v = Add(*v, n) }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
