package tcp

// Send is the producer path (spec.md §4.5's tcp_send): it turns user bytes
// into WRBs, coalescing into the open tail WRB where possible, enforces
// the send-buffer cap with blocking or non-blocking semantics, and leaves
// the result for the egress engine's next poll to transmit.
//
// Partial-progress rule: if any bytes were accepted before a later
// iteration fails, or in nonblocking mode would block, Send returns the
// positive byte count immediately rather than the error; the error
// resurfaces on the next call. In blocking mode Send waits for send-buffer
// room even after partial progress.
func (c *Conn) Send(b []byte, nonblock bool) (int, error) {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()

	if c.state == StateClosed {
		return 0, ErrBadFile
	}
	if c.state != StateEstablished {
		return 0, ErrNotConn
	}

	var result int
	for len(b) > 0 {
		if c.state == StateClosed {
			if result > 0 {
				return result, nil
			}
			return 0, ErrNetUnreach
		}
		if c.sndbufs > 0 && c.inqueueBytes() >= c.sndbufs {
			if nonblock {
				if result > 0 {
					return result, nil
				}
				return 0, ErrAgain
			}
			c.cond.Wait() // atomically releases stack.mu and reacquires on wake.
			continue
		}

		room := c.maxWRBSize()
		w := c.writeQ.tail
		if w == nil || w.sentOff > 0 || w.nrtx > 0 || Size(len(w.payload)) >= room || Size(len(w.payload))%c.mss == 0 {
			w = &wrb{}
			n := min(len(b), int(room))
			w.payload = append([]byte(nil), b[:n]...)
			c.writeQ.pushBack(w)
			b = b[n:]
			result += n
			continue
		}
		space := room - Size(len(w.payload))
		n := min(len(b), int(space))
		c.writeQ.bytes += Size(n)
		w.payload = append(w.payload, b[:n]...)
		b = b[n:]
		result += n
	}
	return result, nil
}

// Close issues an active close: if the connection has data in flight it is
// flushed first (the FIN WRB is appended after any already-queued data so
// byte ordering is preserved), and the connection moves into FIN_WAIT_1
// once that WRB is fully transmitted by the egress engine.
func (c *Conn) Close() error {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()
	if c.state == StateClosed || c.state.IsClosing() {
		return errAlreadyClosed
	}
	if !c.state.TxDataOpen() {
		c.state = StateClosed
		return nil
	}
	c.writeQ.pushBack(&wrb{flags: FlagFIN})
	return nil
}
