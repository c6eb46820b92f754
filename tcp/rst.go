package tcp

// RSTQueue is a small fixed-size queue of pending stateless RST responses,
// emitted by [Stack.Input] when a segment targets no known connection or
// listener (spec §4.2 step 2). It is not safe for concurrent use; the
// caller must hold the owning Stack's network lock.
type RSTQueue struct {
	buf [4]rstEntry
	len uint8
}

type rstEntry struct {
	remoteAddr [4]byte
	remotePort uint16
	localPort  uint16
	seq        Value
	ack        Value
	flags      Flags
}

// Queue enqueues a RST response. Silently drops if remoteAddr is not IPv4
// or the queue is full (a slow consumer of RSTs is not worth blocking the
// ingress path over).
func (q *RSTQueue) Queue(remoteAddr []byte, remotePort, localPort uint16, seq, ack Value, flags Flags) {
	if len(remoteAddr) == 4 && q.len < uint8(len(q.buf)) {
		entry := &q.buf[q.len]
		copy(entry.remoteAddr[:], remoteAddr)
		entry.remotePort = remotePort
		entry.localPort = localPort
		entry.seq = seq
		entry.ack = ack
		entry.flags = flags
		q.len++
	}
}

// Pending returns the number of queued RST entries.
func (q *RSTQueue) Pending() int { return int(q.len) }

// Drain pops one pending RST and writes its TCP segment into frameBuf
// (which must be at least sizeHeaderTCP bytes). It returns the remote
// address/port to route the datagram to and the number of bytes written.
// Returns (0, ...) if the queue is empty.
func (q *RSTQueue) Drain(frameBuf []byte) (n int, remoteAddr [4]byte, remotePort uint16, err error) {
	if q.len == 0 {
		return 0, remoteAddr, 0, nil
	}
	q.len--
	entry := &q.buf[q.len]
	tfrm, err := NewFrame(frameBuf)
	if err != nil {
		return 0, remoteAddr, 0, err
	}
	tfrm.ClearHeader()
	tfrm.SetSourcePort(entry.localPort)
	tfrm.SetDestinationPort(entry.remotePort)
	tfrm.SetSegment(Segment{
		SEQ:   entry.seq,
		ACK:   entry.ack,
		Flags: entry.flags,
	}, 5)
	return sizeHeaderTCP, entry.remoteAddr, entry.remotePort, nil
}
