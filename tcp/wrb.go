package tcp

// wrb is a write buffer: one contiguous run of application data queued for
// transmission, or already transmitted and awaiting acknowledgment. Queues
// of wrb are genuine singly-linked lists (next *wrb), mirroring NuttX's
// sq_entry_t-based write_q/unacked_q rather than a ring or slice, so a WRB
// can move between queues by relinking pointers instead of copying; a
// partial ack trims the WRB's payload slice in place.
type wrb struct {
	next     *wrb
	seqno    Value  // sequence number of payload[0]. Valid once seqnoSet.
	seqnoSet bool   // false until this WRB is first handed to the device.
	flags    Flags  // FIN carried by this WRB; SYN is never queued here (handled by the handshake path).
	nrtx     uint8  // number of times this WRB has been scheduled for retransmission (0 after its first transmission).
	nack     uint8  // duplicate-ACK counter, meaningful once the WRB sits at unacked_q's head.
	sentOff  Size   // bytes of payload already emitted toward the wire; only advances while on write_q.
	finSent  bool   // true once the FIN flag itself (not just payload) has been transmitted.
	payload  []byte // application bytes, FIFO order.
}

// pktlen is the total sequence-space length of the WRB: its payload plus
// one if it carries FIN (spec.md §3 WRB table, same accounting as [Segment.LEN]).
func (w *wrb) pktlen() Size {
	n := Size(len(w.payload))
	if w.flags.HasAny(FlagFIN) {
		n++
	}
	return n
}

// lastSeq returns one past the sequence number of the last octet carried by
// this WRB. Valid once seqnoSet.
func (w *wrb) lastSeq() Value { return Add(w.seqno, w.pktlen()) }

// fullySent reports whether every payload byte (and FIN, if present) has
// been handed to the device at least once.
func (w *wrb) fullySent() bool {
	return w.sentOff >= Size(len(w.payload)) && (!w.flags.HasAny(FlagFIN) || w.finSent)
}

// wrbQueue is a singly-linked FIFO of *wrb: write_q (unsent/partially-sent
// data, FIFO) and unacked_q (sent, awaiting ACK, kept in ascending-seqno
// order by [wrbQueue.insertSorted]).
type wrbQueue struct {
	head, tail *wrb
	n          int  // number of queued WRBs.
	bytes      Size // total payload bytes across the queue (FIN excluded), for back-pressure accounting.
}

// pushBack appends w to the tail of the queue. O(1).
func (q *wrbQueue) pushBack(w *wrb) {
	w.next = nil
	if q.tail == nil {
		q.head = w
	} else {
		q.tail.next = w
	}
	q.tail = w
	q.n++
	q.bytes += Size(len(w.payload))
}

// pushFront prepends w to the head of the queue. O(1).
func (q *wrbQueue) pushFront(w *wrb) {
	w.next = q.head
	q.head = w
	if q.tail == nil {
		q.tail = w
	}
	q.n++
	q.bytes += Size(len(w.payload))
}

// insertSorted inserts w into the queue keeping ascending seqno order
// (spec.md §4.3: unacked_q stays sorted under modular comparison even when
// a retransmitted WRB is re-inserted).
func (q *wrbQueue) insertSorted(w *wrb) {
	if q.head == nil || w.seqno.LessThanEq(q.head.seqno) {
		q.pushFront(w)
		return
	}
	prev := q.head
	for prev.next != nil && prev.next.seqno.LessThanEq(w.seqno) {
		prev = prev.next
	}
	w.next = prev.next
	prev.next = w
	if prev == q.tail {
		q.tail = w
	}
	q.n++
	q.bytes += Size(len(w.payload))
}

// popFront removes and returns the head of the queue, or nil if empty.
func (q *wrbQueue) popFront() *wrb {
	w := q.head
	if w == nil {
		return nil
	}
	q.head = w.next
	if q.head == nil {
		q.tail = nil
	}
	w.next = nil
	q.n--
	q.bytes -= Size(len(w.payload))
	return w
}

// popBack removes and returns the tail of the queue, or nil if empty. O(n);
// used only by the REXMIT path (spec.md §4.4 "pop every WRB from the tail
// of unacked_q"), which is inherently a full-queue walk.
func (q *wrbQueue) popBack() *wrb {
	if q.tail == nil {
		return nil
	}
	w := q.tail
	if q.head == w {
		q.head, q.tail = nil, nil
		q.n--
		q.bytes -= Size(len(w.payload))
		return w
	}
	prev := q.head
	for prev.next != w {
		prev = prev.next
	}
	prev.next = nil
	q.tail = prev
	q.n--
	q.bytes -= Size(len(w.payload))
	return w
}

// peekFront returns the head of the queue without removing it.
func (q *wrbQueue) peekFront() *wrb { return q.head }

// empty reports whether the queue holds no WRBs.
func (q *wrbQueue) empty() bool { return q.head == nil }
