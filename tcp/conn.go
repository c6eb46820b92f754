package tcp

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/soypat/tcpstack/internal"
)

// Conn is a connection record: per-flow TCP state, the send/receive
// sequence counters, the RTT estimator, and the two WRB queues. The
// buffered accounting (isn, sent, tx_unacked) is canonical; [Conn.legacySndseq]
// and [Conn.legacyUnacked] derive the pre-buffered-model view on demand, per
// the data model's two coexisting layouts.
type Conn struct {
	ID xid.ID

	stack *Stack
	cfg   *Config
	log   logger

	cond *sync.Cond // bound to stack.mu; producer blocks here when the send buffer is full.

	state State

	localPort, remotePort uint16
	remoteAddr             [4]byte

	// receive sequence space.
	rcvseq Value // next expected octet from peer.
	rcvwnd Size  // our advertised window: starts at RecvBufSize, reset to rcvBuf's free space whenever ESTABLISHED payload is delivered (no window scaling).
	stopped bool // application paused reception (UIP_STOPPED analog); suppresses NEWDATA delivery.

	irs Value // initial receive sequence number (peer's ISN), set once the handshake completes.

	// rcvBuf holds payload bytes delivered by the ingress state machine
	// ahead of the application draining them via [Conn.Read], the same
	// role the teacher's Conn gives its Ring-backed receive buffer.
	rcvBuf internal.Ring

	// send sequence space, buffered model.
	isn       Value // initial send sequence number.
	sent      Size  // cumulative bytes queued past isn.
	sndseqMax Value // highest sequence ever scheduled, guards against backward drift on retransmit.
	txUnacked Size  // bytes transmitted but not yet acknowledged.
	sndwnd    Size  // peer's advertised window.
	sndbufs   Size  // send-buffer cap (0 disables back-pressure).

	mss Size

	writeQ   wrbQueue
	unackedQ wrbQueue

	// RTT estimator (Van Jacobson/Karels), same scaling as the classic BSD
	// implementation: sa is smoothed RTT << 3, sv is smoothed deviation << 2.
	rto   time.Duration
	timer time.Duration
	sa    int64
	sv    int64
	nrtx  uint8 // >0 while the in-flight data includes a retransmission; gates RTT sampling only, see [Conn.oldestInFlightNRTX] for a reportable count.

	expired int // count of WRBs dropped after exhausting MaxRTX.

	// callback is the upper-layer tcp_callback (spec.md §6). The ingress
	// state machine invokes it only when an ESTABLISHED connection receives
	// in-order payload (flags carry EvNewData, plus EvACKData if the same
	// segment acknowledged outstanding data), and expects EvSndAck back once
	// the payload is consumed. Nothing in this package sets it; while it is
	// nil every delivered payload is acknowledged.
	callback func(c *Conn, flags EventFlags) EventFlags
}

// newConn allocates a bare connection bound to stack. Callers must still
// call [Conn.openActive] or [Conn.openListen].
func newConn(stack *Stack, cfg *Config, log logger) *Conn {
	c := &Conn{
		ID:      xid.New(),
		stack:   stack,
		cfg:     cfg,
		log:     log,
		rcvwnd:  cfg.RecvBufSize,
		sndbufs: cfg.SendBufSize,
		rto:     cfg.InitialRTO,
	}
	c.rcvBuf = internal.Ring{Buf: make([]byte, cfg.RecvBufSize)}
	c.cond = sync.NewCond(&stack.mu)
	return c
}

// ConnStats is a point-in-time snapshot of a connection's counters, meant
// for an external collector (tcpmetrics) rather than the hot path; it never
// ages into stale pointers since every field is copied by value.
type ConnStats struct {
	ID             xid.ID
	State          State
	RTO            time.Duration
	SmoothedRTT    time.Duration
	RTTVariance    time.Duration
	NumRetransmits uint8
	Expired        int
	TxUnacked      Size
	Sent           Size
	SndWnd         Size
	RcvWnd         Size
	MSS            Size
}

// stats builds a [ConnStats] snapshot; caller must hold the owning Stack's
// network lock.
func (c *Conn) stats() ConnStats {
	return ConnStats{
		ID:             c.ID,
		State:          c.state,
		RTO:            c.rto,
		SmoothedRTT:    time.Duration(c.sa >> 3),
		RTTVariance:    time.Duration(c.sv >> 2),
		NumRetransmits: c.oldestInFlightNRTX(),
		Expired:        c.expired,
		TxUnacked:      c.txUnacked,
		Sent:           c.sent,
		SndWnd:         c.sndwnd,
		RcvWnd:         c.rcvwnd,
		MSS:            c.mss,
	}
}

// oldestInFlightNRTX reports the retransmit count of the WRB that has been
// outstanding longest: unacked_q's head if anything is unacked, else
// write_q's head if it has partially gone out. This is the figure worth
// exporting to an operator, unlike [Conn.nrtx], which is an internal Karn's
// algorithm gate rather than a meaningful retransmit tally on its own.
func (c *Conn) oldestInFlightNRTX() uint8 {
	if w := c.unackedQ.peekFront(); w != nil {
		return w.nrtx
	}
	if h := c.writeQ.peekFront(); h != nil && h.sentOff > 0 {
		return h.nrtx
	}
	return 0
}

// Stats returns a snapshot of this connection's counters, locking the
// owning Stack briefly to do so.
func (c *Conn) Stats() ConnStats {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()
	return c.stats()
}

// State returns the connection's current TCP state. Safe to call with the
// stack's network lock held or not; State is read-only bookkeeping here.
func (c *Conn) State() State { return c.state }

// RemotePort returns the peer port this connection is bound to.
func (c *Conn) RemotePort() uint16 { return c.remotePort }

// RemoteAddr returns the peer IPv4 address this connection is bound to.
func (c *Conn) RemoteAddr() []byte { return c.remoteAddr[:] }

// LocalPort returns the local port this connection is bound to.
func (c *Conn) LocalPort() uint16 { return c.localPort }

// Read drains bytes the ingress state machine has already delivered into
// rcvBuf, returning (0, ErrAgain) rather than blocking when the buffer is
// empty and the connection is still open; callers that want to block poll
// on the connection's own readiness signal instead (spec.md §6 leaves read
// wakeups to the embedder's device-poll loop).
func (c *Conn) Read(b []byte) (int, error) {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()
	if c.rcvBuf.Buffered() == 0 {
		if c.state.IsClosed() {
			return 0, ErrNotConn
		}
		return 0, ErrAgain
	}
	return c.rcvBuf.Read(b)
}

// legacySndseq derives the pre-buffered-model "next byte to send" counter:
// isn + sent.
func (c *Conn) legacySndseq() Value { return Add(c.isn, Size(c.sent)) }

// legacyUnacked derives the pre-buffered-model outstanding-byte counter.
func (c *Conn) legacyUnacked() Size { return c.txUnacked }

// inqueueBytes sums unacked_q plus write_q payload bytes, the back-pressure
// threshold the producer path compares against sndbufs. Named after NuttX's
// tcp_inqueue_wrb_size, a function the distilled spec references without
// defining (see SPEC_FULL.md Supplemented features).
func (c *Conn) inqueueBytes() Size {
	return c.writeQ.bytes + c.unackedQ.bytes
}

// maxWRBSize implements tcp_max_wrb_size(conn) with cfg.MaxWRBSize in the
// place of IOB_POOL_BYTES/2: min(4*mss, MaxWRBSize), rounded down to a
// multiple of mss when that minimum exceeds mss.
func (c *Conn) maxWRBSize() Size {
	capBytes := c.cfg.MaxWRBSize
	limit := 4 * c.mss
	if capBytes < limit {
		limit = capBytes
	}
	if limit > c.mss && c.mss > 0 {
		limit = (limit / c.mss) * c.mss
	}
	if limit == 0 {
		limit = c.mss
	}
	return limit
}

// openListen initializes a connection record admitted from a SYN on a
// listening port. The caller still owes a SYN|ACK response.
func (c *Conn) openListen(localPort uint16, iss Value) {
	c.state = StateSynRcvd
	c.localPort = localPort
	c.isn = iss
	c.sent = 0
	c.txUnacked = 0
	c.sndseqMax = iss
	c.mss = c.cfg.MSS
}

// openActive initializes a connection record for a local active open,
// returning the SYN segment to transmit.
func (c *Conn) openActive(localPort, remotePort uint16, remoteAddr []byte, iss Value) Segment {
	c.state = StateSynSent
	c.localPort = localPort
	c.remotePort = remotePort
	copy(c.remoteAddr[:], remoteAddr)
	c.isn = iss
	c.sent = 1 // SYN occupies one sequence number.
	c.txUnacked = 1
	c.sndseqMax = Add(iss, 1)
	c.mss = c.cfg.MSS
	c.timer = c.rto // the SYN is outstanding the instant it's handed back to the caller.
	return Segment{SEQ: iss, Flags: FlagSYN, WND: c.rcvwnd}
}

// Abort forces the connection to CLOSED, releasing both queues and posting
// snd_sem so any blocked producer observes the failure. Grounded on the
// egress engine's disconnect-event handling (spec.md §4.4).
func (c *Conn) Abort() {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()
	c.state = StateClosed
	c.txUnacked = 0
	c.releaseAll()
}
