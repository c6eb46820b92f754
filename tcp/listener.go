package tcp

import (
	"errors"
	"sync"

	"github.com/soypat/tcpstack/internal"
)

// Listener is the minimal connection table and accept queue this core
// stands in for the kernel's real one (spec.md §1 lists the connection
// table's allocation/accept-queue policy as an external collaborator;
// this is the smallest thing that lets [Stack.Input] hand a newly admitted
// passive connection somewhere testable).
type Listener struct {
	mu   sync.Mutex
	port uint16
	log  logger

	// incoming holds passively-opened connections not yet claimed by
	// TryAccept: mid-handshake (SYN_RCVD), or ESTABLISHED and ready to accept.
	incoming []*Conn
	// accepted holds connections TryAccept has handed to the application.
	accepted []*Conn
}

// Reset rebinds the listener to port, clearing any prior accept state.
func (l *Listener) Reset(port uint16) error {
	if port == 0 {
		return errZeroDstPort
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.port = port
	internal.SliceReuse(&l.incoming, cap(l.incoming))
	internal.SliceReuse(&l.accepted, cap(l.accepted))
	return nil
}

// Close unbinds the listener. Pending incoming connections are dropped.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == 0 {
		return errAlreadyClosed
	}
	l.port = 0
	l.incoming = nil
	l.accepted = nil
	return nil
}

func (l *Listener) isClosed() bool { return l.port == 0 }

// Port returns the bound local port, or 0 if unbound.
func (l *Listener) Port() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// NumberOfReadyToAccept reports how many connections have completed the
// handshake and are waiting in TryAccept's queue.
func (l *Listener) NumberOfReadyToAccept() (nready int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range l.incoming {
		if conn != nil && conn.State() == StateEstablished {
			nready++
		}
	}
	return nready
}

// TryAccept pops one established connection out of the handshake queue and
// into the accepted set, returning it to the caller.
func (l *Listener) TryAccept() (*Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isClosed() {
		return nil, errAlreadyClosed
	}
	for i, conn := range l.incoming {
		if conn == nil || conn.State() != StateEstablished {
			continue
		}
		l.accepted = append(l.accepted, conn)
		l.incoming[i] = nil
		return conn, nil
	}
	return nil, errors.New("tcp: no connections available")
}

// admit registers a freshly-opened SYN_RCVD connection with the listener's
// handshake queue. Called by [Stack.Input] on a successful passive open.
func (l *Listener) admit(c *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incoming = append(l.incoming, c)
}

// maintain drops any handshake-queue entries that aborted before reaching
// ESTABLISHED, and compacts the accepted slice of connections the
// application has since closed. Called periodically by [Stack.Tick].
func (l *Listener) maintain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.incoming {
		c := l.incoming[i]
		if c == nil {
			continue
		}
		if c.State().IsClosed() {
			l.incoming[i] = nil
		}
	}
	for i, c := range l.accepted {
		if c != nil && c.State().IsClosed() {
			l.accepted[i] = nil
		}
	}
	l.incoming = internal.DeleteZeroed(l.incoming)
	l.accepted = internal.DeleteZeroed(l.accepted)
}
