package tcp

import (
	"log/slog"
	"sync"
	"time"

	"github.com/soypat/tcpstack/internal"
)

// Stack owns the single global "network lock" (spec.md §5): the mutex
// serializing every mutation of connection state, both WRB queues, and
// all sequence counters across the producer, the device-poll-driven
// egress engine, and the RTO timer handler. There is no per-connection
// lock.
type Stack struct {
	mu sync.Mutex

	cfg Config
	log logger

	table     Table
	listeners map[uint16]*Listener
	rstq      RSTQueue

	seed uint32 // xorshift state seeding new ISNs.
}

// NewStack constructs a Stack with the given configuration and an optional
// logger (nil disables logging).
func NewStack(cfg Config, log *slog.Logger) *Stack {
	return &Stack{
		cfg:       cfg,
		log:       logger{log: log},
		listeners: make(map[uint16]*Listener),
		seed:      0x2545F491,
	}
}

func (s *Stack) nextISN() Value {
	s.seed = internal.Prand32(s.seed)
	return Value(s.seed)
}

// Listen binds a new [Listener] to port, admitting passively-opened
// connections for [Stack.Input] to dispatch SYNs to.
func (s *Stack) Listen(port uint16) (*Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if port == 0 {
		return nil, errZeroDstPort
	}
	if _, exists := s.listeners[port]; exists {
		return nil, errPortInUse
	}
	l := &Listener{log: s.log}
	if err := l.Reset(port); err != nil {
		return nil, err
	}
	s.listeners[port] = l
	return l, nil
}

// OpenActive begins a local active open to remoteAddr:remotePort from
// localPort, returning the new connection and the SYN segment to
// transmit. The connection is already registered in the stack's table.
func (s *Stack) OpenActive(localPort, remotePort uint16, remoteAddr []byte) (*Conn, Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := newConn(s, &s.cfg, s.log)
	seg := c.openActive(localPort, remotePort, remoteAddr, s.nextISN())
	s.table.Add(c)
	return c, seg
}

// Input is the ingress entry point (spec.md §4.2 steps 1-2; step 1's
// checksum validation is assumed already performed by the caller's
// link/IP layer, since this core does not own a pseudo-header). frm must
// be positioned at the start of the TCP header.
//
// Returns the event flags produced (for an embedder that wants to drive
// [Stack.Poll] immediately afterwards), the matched or newly admitted
// connection, and the response segment for the caller to transmit (nil if
// none). A non-RST segment that matches no connection or listener gets its
// RST queued into the stack's RST queue instead, with resp nil.
func (s *Stack) Input(remoteAddr []byte, remotePort uint16, frm Frame) (ev EventFlags, respConn *Conn, resp *Segment, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := frm.ValidateExceptCRC(); err != nil {
		return 0, nil, nil, err
	}
	localPort := frm.DestinationPort()
	_, flags := frm.OffsetAndFlags()

	c := s.table.Lookup(localPort, remotePort, remoteAddr)
	if c == nil {
		listener, isListening := s.listeners[localPort]
		if flags.HasAny(FlagSYN) && isListening {
			nc := newConn(s, &s.cfg, s.log)
			iss := s.nextISN()
			nc.openListen(localPort, iss)
			nc.remotePort = remotePort
			copy(nc.remoteAddr[:], remoteAddr)
			seg := frm.Segment(len(frm.Payload()))
			if mss := parseMSS(frm.Options()); mss > 0 && mss < nc.mss {
				nc.mss = mss
			}
			nc.rcvseq = Add(seg.SEQ, 1)
			synack := Segment{SEQ: iss, ACK: nc.rcvseq, Flags: FlagSYN | FlagACK, WND: nc.rcvwnd}
			nc.sent = 1
			nc.txUnacked = 1
			nc.timer = nc.rto // the SYN|ACK about to go out is immediately outstanding.
			s.table.Add(nc)
			listener.admit(nc)
			return EvConnected, nc, &synack, nil
		}
		if flags.HasAny(FlagRST) {
			return 0, nil, nil, nil // never respond to an RST with an RST.
		}
		seg := frm.Segment(len(frm.Payload()))
		var raddr4 [4]byte
		copy(raddr4[:], remoteAddr)
		s.log.debug("tcp:no-match", internal.SlogAddr4("raddr", &raddr4), slog.Uint64("lport", uint64(localPort)))
		s.rstq.Queue(remoteAddr, remotePort, localPort, 0, Add(seg.SEQ, seg.LEN()), FlagRST|FlagACK)
		return 0, nil, nil, nil
	}

	ev, resp, err = c.input(frm)
	if err != nil {
		return ev, c, resp, err
	}
	if ev.HasAny(EvAbort) {
		c.releaseAll()
		s.table.Remove(c)
	}
	return ev, c, resp, nil
}

// Poll drives the egress engine for c with the given trigger flags,
// writing the resulting segment (if any) into frameBuf. ackno is only
// consulted when ev carries EvACKData. Returns the number of header+
// payload bytes written, or 0 if nothing was sent this round.
func (s *Stack) Poll(c *Conn, ev EventFlags, ackno Value, newData bool, frameBuf []byte) (n int, outFlags EventFlags, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outFlags, seg, payload, ok := c.poll(ev, ackno, newData)
	if !ok {
		return 0, outFlags, nil
	}
	n, err = encodeSegment(frameBuf, c.localPort, c.remotePort, seg, c.mss, payload)
	return n, outFlags, err
}

// EncodeSegment renders a bare [Segment] returned directly by [Stack.Input]
// or [Stack.OpenActive] (the handshake path, which does not go through
// [Stack.Poll]) into frameBuf as a complete TCP datagram, attaching an MSS
// option whenever seg carries SYN.
func (s *Stack) EncodeSegment(localPort, remotePort uint16, seg Segment, frameBuf []byte) (int, error) {
	s.mu.Lock()
	mss := s.cfg.MSS
	s.mu.Unlock()
	return encodeSegment(frameBuf, localPort, remotePort, seg, mss, nil)
}

// encodeSegment renders seg (and payload, and an MSS option when seg
// carries SYN) into frameBuf as a complete TCP datagram. Shared by
// [Stack.Poll] and the handshake paths in [Stack.Input]/[Stack.OpenActive],
// which hand a bare [Segment] back to the caller without going through the
// egress engine.
func encodeSegment(frameBuf []byte, localPort, remotePort uint16, seg Segment, mss Size, payload []byte) (int, error) {
	tfrm, err := NewFrame(frameBuf)
	if err != nil {
		return 0, err
	}
	tfrm.ClearHeader()
	tfrm.SetSourcePort(localPort)
	tfrm.SetDestinationPort(remotePort)
	offset := uint8(5)
	if seg.Flags.HasAny(FlagSYN) {
		offset = 6
	}
	tfrm.SetSegment(seg, offset)
	if offset == 6 {
		appendMSSOption(tfrm.Options()[:0], uint16(mss))
	}
	n := copy(tfrm.buf[tfrm.HeaderLength():], payload)
	return tfrm.HeaderLength() + n, nil
}

// Tick drives time-based bookkeeping: RTO expiry checks and listener
// accept-queue maintenance. The core itself does not own a timer wheel
// (spec.md §1 treats timers as external); the embedder calls Tick at
// whatever cadence its platform's tick signal provides.
func (s *Stack) Tick(now time.Time, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Each(func(c *Conn) {
		if c.unackedQ.empty() && c.writeQ.empty() {
			return
		}
		c.timer -= elapsed
		if c.timer <= 0 {
			c.doRexmit()
			c.timer = c.rto
		}
	})
	for _, l := range s.listeners {
		l.maintain()
	}
}

// Table exposes the connection table for diagnostics/tcpmetrics.
func (s *Stack) Table() *Table { return &s.table }

// Snapshot returns a [ConnStats] copy for every live connection, for an
// external collector (tcpmetrics.Collector) to turn into gauges without
// reaching past the network lock.
func (s *Stack) Snapshot() []ConnStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConnStats, 0, len(s.table.conns))
	s.table.Each(func(c *Conn) {
		out = append(out, c.stats())
	})
	return out
}
