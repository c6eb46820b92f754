package tcp

import (
	"log/slog"
	"time"
)

// input is the per-connection ingress state machine (spec.md §4.2 steps
// 3-8; steps 1-2, checksum and demultiplex, happen one layer up in
// [Stack.Input] since they do not need a Conn to already exist). It runs
// with the owning Stack's network lock held and returns to completion
// without suspending, per the concurrency model (spec.md §5).
func (c *Conn) input(frm Frame) (ev EventFlags, resp *Segment, err error) {
	seg := frm.Segment(len(frm.Payload()))
	c.traceSeg("tcp:input", seg)

	// Step 3: active-connection SYN guard.
	if seg.Flags.HasAny(FlagSYN) && c.state != StateSynRcvd && c.state != StateSynSent && c.state != StateListen {
		rst := Segment{Flags: FlagRST | FlagACK, SEQ: 0, ACK: Add(seg.SEQ, seg.LEN())}
		return EvAbort, &rst, nil
	}

	// Step 4: window update.
	c.sndwnd = seg.WND

	// Step 5: RST handling.
	if seg.Flags.HasAny(FlagRST) {
		c.log.logerr(errConnAborted.Error(), slog.String("state", c.state.String()))
		c.state = StateClosed
		return EvAbort, nil, nil
	}

	// Step 6: out-of-order guard. Only meaningful once rcvseq is
	// established, i.e. past the handshake states.
	carriesData := seg.DATALEN > 0 || seg.Flags.HasAny(FlagSYN|FlagFIN)
	establishedOrLater := c.state != StateSynRcvd && c.state != StateSynSent && c.state != StateListen
	if carriesData && establishedOrLater && seg.SEQ != c.rcvseq {
		dup := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: FlagACK, WND: c.rcvwnd}
		return 0, &dup, nil
	}

	// Step 7: ACK reconciliation (legacy-unacked path; buffered queues are
	// reconciled separately by the egress engine's ACKDATA handling using
	// the same ackno).
	if seg.Flags.HasAny(FlagACK) && c.txUnacked > 0 {
		unackseq := Add(c.legacySndseq(), c.txUnacked)
		ackseq := seg.ACK
		if ackseq.LessThanEq(unackseq) {
			c.txUnacked = Sub(unackseq, ackseq)
			ev |= EvACKData
			c.updateRTO()
		} else if c.state == StateEstablished {
			c.log.logerr(errBadSegAck.Error(), slog.Uint64("seg.ack", uint64(seg.ACK)))
			c.state = StateClosed
			rst := Segment{Flags: FlagRST, SEQ: seg.ACK}
			return EvAbort, &rst, nil
		}
	}

	switch c.state {
	case StateSynRcvd:
		ev, resp = c.inputSynRcvd(seg, ev)
	case StateSynSent:
		ev, resp = c.inputSynSent(frm, seg, ev)
	case StateEstablished:
		ev, resp = c.inputEstablished(seg, frm.Payload(), ev)
	case StateFinWait1:
		ev, resp = c.inputFinWait1(seg, frm.Payload(), ev)
	case StateFinWait2:
		ev, resp = c.inputFinWait2(seg, frm.Payload(), ev)
	case StateClosing:
		if ev.HasAny(EvACKData) {
			c.state = StateTimeWait
		}
	case StateLastAck:
		if ev.HasAny(EvACKData) {
			c.state = StateClosed
			ev |= EvClose
		}
	case StateTimeWait:
		ack := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: FlagACK, WND: c.rcvwnd}
		resp = &ack
	}
	return ev, resp, nil
}

func (c *Conn) inputSynRcvd(seg Segment, ev EventFlags) (EventFlags, *Segment) {
	if seg.Flags.HasAll(FlagSYN) && !seg.Flags.HasAny(FlagACK) && seg.DATALEN == 0 {
		// Bare SYN retransmit: peer never saw our SYN|ACK.
		resp := Segment{SEQ: c.isn, ACK: c.rcvseq, Flags: FlagSYN | FlagACK, WND: c.rcvwnd}
		return ev, &resp
	}
	if ev.HasAny(EvACKData) || seg.Flags.HasAny(FlagACK) {
		c.state = StateEstablished
		ev |= EvConnected
		if seg.DATALEN > 0 {
			c.rcvseq = Add(c.rcvseq, seg.DATALEN)
			ev |= EvNewData
		}
	}
	return ev, nil
}

func (c *Conn) inputSynSent(frm Frame, seg Segment, ev EventFlags) (EventFlags, *Segment) {
	if seg.Flags.HasAll(synack) {
		if mss := parseMSS(frm.Options()); mss > 0 && mss < c.mss {
			c.mss = mss
		}
		c.irs = seg.SEQ
		c.rcvseq = Add(seg.SEQ, 1)
		c.state = StateEstablished
		c.txUnacked = 0
		ev |= EvConnected | EvNewData
		ack := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: FlagACK, WND: c.rcvwnd}
		return ev, &ack
	}
	c.log.logerr(errExpectedSYN.Error(), slog.String("seg.flags", seg.Flags.String()))
	c.state = StateClosed
	rst := Segment{Flags: FlagRST, SEQ: seg.ACK}
	return ev | EvAbort, &rst
}

// deliverPayload writes in-order data into rcvBuf for [Conn.Read] to drain,
// silently discarding what doesn't fit (the peer should never exceed our
// advertised window, but a buggy peer shouldn't jam the state machine).
func (c *Conn) deliverPayload(payload []byte) {
	if free := c.rcvBuf.Free(); len(payload) > free {
		payload = payload[:free]
	}
	if len(payload) == 0 {
		return
	}
	c.rcvBuf.Write(payload)
}

func (c *Conn) inputEstablished(seg Segment, payload []byte, ev EventFlags) (EventFlags, *Segment) {
	if seg.Flags.HasAny(FlagFIN) {
		c.deliverPayload(payload)
		c.rcvseq = Add(c.rcvseq, seg.DATALEN+1)
		ev |= EvClose
		if seg.DATALEN > 0 {
			ev |= EvNewData
		}
		c.state = StateLastAck
		c.txUnacked = 1 // our FIN occupies one sequence number, awaiting ack.
		resp := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: finack, WND: c.rcvwnd}
		return ev, &resp
	}
	if seg.DATALEN == 0 {
		return ev, nil
	}
	ev |= EvNewData
	sndack := true
	if c.callback != nil {
		out := c.callback(c, ev)
		sndack = out.HasAny(EvSndAck)
	}
	if !sndack || c.stopped {
		return ev, nil
	}
	c.deliverPayload(payload)
	c.rcvseq = Add(c.rcvseq, seg.DATALEN)
	c.rcvwnd = Size(c.rcvBuf.Free())
	resp := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: FlagACK, WND: c.rcvwnd}
	return ev, &resp
}

func (c *Conn) inputFinWait1(seg Segment, payload []byte, ev EventFlags) (EventFlags, *Segment) {
	if seg.Flags.HasAny(FlagFIN) {
		c.deliverPayload(payload)
		c.rcvseq = Add(c.rcvseq, seg.DATALEN+1)
		resp := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: FlagACK, WND: c.rcvwnd}
		if ev.HasAny(EvACKData) {
			c.state = StateTimeWait
		} else {
			c.state = StateClosing
		}
		return ev, &resp
	}
	if ev.HasAny(EvACKData) {
		c.state = StateFinWait2
	}
	return ev, nil
}

func (c *Conn) inputFinWait2(seg Segment, payload []byte, ev EventFlags) (EventFlags, *Segment) {
	if seg.Flags.HasAny(FlagFIN) {
		c.deliverPayload(payload)
		c.rcvseq = Add(c.rcvseq, seg.DATALEN+1)
		c.state = StateTimeWait
		resp := Segment{SEQ: c.legacySndseq(), ACK: c.rcvseq, Flags: FlagACK, WND: c.rcvwnd}
		return ev, &resp
	}
	return ev, nil
}

// updateRTO applies the Van Jacobson/Karels smoothing update (spec.md
// §4.2 step 7). The update is skipped while c.nrtx > 0 (a retransmission
// is outstanding, so the round-trip sample would be ambiguous per Karn's
// algorithm, grounded on original_source's tcp_input.c), and the very
// first sample seeds sa/sv directly instead of smoothing into a zero
// baseline, a detail original_source does not have.
func (c *Conn) updateRTO() {
	if c.nrtx > 0 {
		return
	}
	if c.sa == 0 && c.sv == 0 {
		// First measured round trip: seed the estimator instead of
		// smoothing a real sample into an all-zero baseline.
		r := c.rto - c.timer
		c.sa = int64(r) << 3
		c.sv = int64(r) << 1
		c.timer = c.rto
		return
	}
	m := c.rto - c.timer
	m -= time.Duration(c.sa >> 3)
	c.sa += int64(m)
	if m < 0 {
		m = -m
	}
	m -= time.Duration(c.sv >> 2)
	c.sv += int64(m)
	c.rto = time.Duration(c.sa>>3) + time.Duration(c.sv)
	if c.rto < c.cfg.MinRTO {
		c.rto = c.cfg.MinRTO
	} else if c.rto > c.cfg.MaxRTO {
		c.rto = c.cfg.MaxRTO
	}
	c.timer = c.rto
}
