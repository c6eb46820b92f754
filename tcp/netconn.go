package tcp

import (
	"os"
	"time"

	"github.com/soypat/tcpstack/internal"
)

var errDeadlineExceeded = os.ErrDeadlineExceeded

// BlockingConn wraps a [Conn] with the busy-poll/backoff blocking semantics
// the rest of the corpus gives its net.Conn-shaped sockets: Read and Write
// spin on the core's non-blocking [Conn.Send]/[Conn.Read] calls with an
// exponential [internal.Backoff]
// instead of parking on a condition variable, so a caller can still honor
// deadlines set with SetReadDeadline/SetWriteDeadline.
type BlockingConn struct {
	c            *Conn
	rdead, wdead time.Time
}

// NewBlockingConn wraps c for deadline-aware blocking I/O.
func NewBlockingConn(c *Conn) *BlockingConn {
	return &BlockingConn{c: c}
}

func deadlineExceeded(d time.Time) bool {
	return !d.IsZero() && time.Now().After(d)
}

// Write blocks until all of b has been queued onto the connection's write
// path, the deadline expires, or the connection stops accepting writes.
func (bc *BlockingConn) Write(b []byte) (int, error) {
	c := bc.c
	plen := len(b)
	if plen == 0 {
		return 0, nil
	}
	backoff := internal.NewBackoff(internal.BackoffTCPConn)
	n := 0
	for {
		if deadlineExceeded(bc.wdead) {
			return n, errDeadlineExceeded
		}
		ngot, err := c.Send(b, true)
		n += ngot
		b = b[ngot:]
		if n == plen {
			return n, nil
		}
		if err != nil && err != ErrAgain {
			return n, err
		}
		if ngot > 0 {
			backoff.Hit()
		} else {
			backoff.Miss()
		}
	}
}

// Read blocks until at least one byte has been delivered, the deadline
// expires, or the connection closes with nothing left buffered.
func (bc *BlockingConn) Read(b []byte) (int, error) {
	c := bc.c
	backoff := internal.NewBackoff(internal.BackoffTCPConn)
	for {
		n, err := c.Read(b)
		if n > 0 || (err != nil && err != ErrAgain) {
			return n, err
		}
		if deadlineExceeded(bc.rdead) {
			return 0, errDeadlineExceeded
		}
		backoff.Miss()
	}
}

// Close issues an active close on the underlying connection.
func (bc *BlockingConn) Close() error { return bc.c.Close() }

// SetReadDeadline sets the deadline honored by subsequent Read calls.
func (bc *BlockingConn) SetReadDeadline(t time.Time) error { bc.rdead = t; return nil }

// SetWriteDeadline sets the deadline honored by subsequent Write calls.
func (bc *BlockingConn) SetWriteDeadline(t time.Time) error { bc.wdead = t; return nil }

// SetDeadline sets both the read and write deadlines.
func (bc *BlockingConn) SetDeadline(t time.Time) error {
	bc.rdead, bc.wdead = t, t
	return nil
}
