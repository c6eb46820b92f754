package tcp

import "errors"

// Producer-path errors returned by [Conn.Send] (ErrNotConn and ErrAgain also
// by [Conn.Read]). These mirror
// the small, flat error surface of tcp_send: a handful of sentinel values,
// no wrapping hierarchy.
var (
	// ErrBadFile is returned when the connection has been closed or was
	// never opened.
	ErrBadFile = errors.New("tcp: operation on closed connection")
	// ErrNotConn is returned by [Conn.Send] when the connection is not
	// ESTABLISHED (handshake incomplete, or a close under way), and by
	// [Conn.Read] once the connection is closed with nothing left buffered.
	ErrNotConn = errors.New("tcp: not connected")
	// ErrNetUnreach is returned by a [Conn.Send] that was waiting for
	// send-buffer room when the connection was closed under it (RST
	// received, [Conn.Abort], or device down) before any byte was queued.
	ErrNetUnreach = errors.New("tcp: network unreachable")
	// ErrAgain is returned by a nonblocking [Conn.Send] call when the send
	// buffer is full and the caller asked not to block.
	ErrAgain = errors.New("tcp: resource temporarily unavailable")
	// ErrNoMem is the out-of-memory member of the producer error set.
	// [Conn.Send] never returns it: WRBs are allocated from the Go heap,
	// with no failure path.
	ErrNoMem = errors.New("tcp: out of memory")
)

// sentinel errors used internally by the ingress/egress state machine.
var (
	errExpectedSYN   = errors.New("tcp: expected SYN")
	errBadSegAck     = errors.New("tcp: segment ACKs unsent data")
	errZeroDstPort   = errors.New("tcp: zero destination port")
	errConnAborted   = errors.New("tcp: connection aborted")
	errAlreadyClosed = errors.New("tcp: already closed")
	errPortInUse     = errors.New("tcp: local port already bound")
)

// RejectError is returned by option parsing when a malformed or
// out-of-bounds option is encountered; it carries the byte offset into the
// option space for logging.
type RejectError struct {
	Offset int
	Reason string
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return "tcp: rejected option"
	}
	return "tcp: rejected option: " + e.Reason
}

func newRejectErr(offset int, reason string) *RejectError {
	return &RejectError{Offset: offset, Reason: reason}
}
