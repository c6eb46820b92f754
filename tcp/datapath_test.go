package tcp_test

import (
	"testing"
	"time"

	"github.com/soypat/tcpstack/tcp"
)

// TestOutOfOrderData exercises spec.md §4.2 step 6: a segment whose sequence
// number doesn't match the next expected byte must be answered with a
// duplicate ACK rather than accepted or folded into rcvseq.
func TestOutOfOrderData(t *testing.T) {
	stack, conn := establishedPair(t)
	bad := buildSegment(4000, 80, tcp.Segment{SEQ: 5000, ACK: 1, Flags: tcp.FlagACK, WND: 4096}, []byte("gap"))
	ev, _, resp, err := stack.Input(remoteAddr, 4000, bad)
	if err != nil {
		t.Fatal(err)
	}
	if ev != 0 {
		t.Fatalf("want no events for an out-of-order segment, got %v", ev)
	}
	if resp == nil || resp.Flags != tcp.FlagACK {
		t.Fatalf("want a bare duplicate ACK, got %+v", resp)
	}
	if resp.ACK != 1001 {
		t.Fatalf("want duplicate ACK=1001 (unchanged rcvseq), got %d", resp.ACK)
	}
	if n, err := conn.Read(make([]byte, 16)); n != 0 || err != tcp.ErrAgain {
		t.Fatalf("want nothing delivered to the application, got n=%d err=%v", n, err)
	}
}

// TestInOrderDataDelivery exercises the receive path end to end: payload
// carried on an in-order segment must land in the connection's receive
// buffer for Conn.Read to drain, and the ACK returned must cover it.
func TestInOrderDataDelivery(t *testing.T) {
	stack, conn := establishedPair(t)
	payload := []byte("hello, world")
	seg := buildSegment(4000, 80, tcp.Segment{SEQ: 1001, ACK: 1, Flags: tcp.FlagACK, WND: 4096}, payload)
	ev, _, resp, err := stack.Input(remoteAddr, 4000, seg)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasAny(tcp.EvNewData) {
		t.Fatal("expected EvNewData for in-order payload")
	}
	if resp == nil || resp.ACK != 1001+tcp.Value(len(payload)) {
		t.Fatalf("want cumulative ACK past the payload, got %+v", resp)
	}

	got := make([]byte, 64)
	n, err := conn.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:n]) != string(payload) {
		t.Fatalf("want %q, got %q", payload, got[:n])
	}

	// Buffer now empty again: a second Read must report ErrAgain rather than
	// re-delivering anything.
	if n, err := conn.Read(got); n != 0 || err != tcp.ErrAgain {
		t.Fatalf("want ErrAgain once drained, got n=%d err=%v", n, err)
	}
}

// TestActiveCloseQueuesFIN exercises spec.md §4.5's active-close path: Close
// queues a FIN WRB without immediately moving the state machine, and only
// the egress engine's next poll, once it actually transmits the FIN,
// advances the connection to FIN_WAIT_1.
func TestActiveCloseQueuesFIN(t *testing.T) {
	stack, conn := establishedPair(t)
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if conn.State() != tcp.StateEstablished {
		t.Fatalf("want still ESTABLISHED before the FIN is transmitted, got %v", conn.State())
	}

	buf := make([]byte, 64)
	n, _, err := stack.Poll(conn, tcp.EvPoll, 0, false, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected the FIN segment to be transmitted")
	}
	frm, err := tcp.NewFrame(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	seg := frm.Segment(len(frm.Payload()))
	if !seg.Flags.HasAll(tcp.FlagFIN) {
		t.Fatalf("want the FIN flag on the wire, got %+v", seg.Flags)
	}
	if conn.State() != tcp.StateFinWait1 {
		t.Fatalf("want FIN_WAIT_1 once the FIN is on the wire, got %v", conn.State())
	}
}

// TestGracefulCloseFromEstablished drives a peer-initiated close: a FIN from
// ESTABLISHED must move us to LAST_ACK and answer with FIN|ACK, and the
// peer's ACK of that FIN must finish the close.
func TestGracefulCloseFromEstablished(t *testing.T) {
	stack, conn := establishedPair(t)
	fin := buildSegment(4000, 80, tcp.Segment{SEQ: 1001, Flags: tcp.FlagFIN, WND: 4096}, nil)
	ev, _, resp, err := stack.Input(remoteAddr, 4000, fin)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasAny(tcp.EvClose) {
		t.Fatal("expected EvClose on peer FIN")
	}
	if conn.State() != tcp.StateLastAck {
		t.Fatalf("want LAST_ACK, got %v", conn.State())
	}
	if resp == nil || !resp.Flags.HasAll(tcp.FlagFIN|tcp.FlagACK) {
		t.Fatalf("want FIN|ACK response, got %+v", resp)
	}

	finalAck := buildSegment(4000, 80, tcp.Segment{SEQ: 1002, ACK: resp.SEQ + 1, Flags: tcp.FlagACK, WND: 4096}, nil)
	ev2, _, _, err := stack.Input(remoteAddr, 4000, finalAck)
	if err != nil {
		t.Fatal(err)
	}
	if !ev2.HasAny(tcp.EvClose) {
		t.Fatal("expected EvClose on the ACK that finishes our LAST_ACK wait")
	}
	if conn.State() != tcp.StateClosed {
		t.Fatalf("want CLOSED, got %v", conn.State())
	}
}

// TestFastRetransmitOnTripleDupACK exercises spec.md §4.4's fast-retransmit
// rule: three duplicate ACKs against the same outstanding WRB must schedule
// a retransmission without waiting for the RTO timer.
func TestFastRetransmitOnTripleDupACK(t *testing.T) {
	stack, conn := establishedPair(t)
	if _, err := conn.Send([]byte("hello"), true); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	n, _, err := stack.Poll(conn, tcp.EvPoll, 0, false, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected the queued data to be transmitted")
	}
	frm, err := tcp.NewFrame(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	dataSeg := frm.Segment(len(frm.Payload()))

	var outFlags tcp.EventFlags
	for i := 0; i < 3; i++ {
		dup := buildSegment(4000, 80, tcp.Segment{SEQ: 1001, ACK: dataSeg.SEQ, Flags: tcp.FlagACK, WND: 4096}, nil)
		ev, _, _, err := stack.Input(remoteAddr, 4000, dup)
		if err != nil {
			t.Fatal(err)
		}
		_, outFlags, err = stack.Poll(conn, ev, dataSeg.SEQ, false, buf)
		if err != nil {
			t.Fatal(err)
		}
	}
	if !outFlags.HasAny(tcp.EvRexmit) {
		t.Fatalf("expected fast retransmit by the third duplicate ACK, got %v", outFlags)
	}
}

// TestMaxRTXExhaustion drives doRexmit past MaxRTX and checks the WRB is
// dropped and counted as expired rather than retried forever.
func TestMaxRTXExhaustion(t *testing.T) {
	cfg := tcp.DefaultConfig()
	cfg.MaxRTX = 2
	stack := tcp.NewStack(cfg, nil)
	if _, err := stack.Listen(80); err != nil {
		t.Fatal(err)
	}
	syn := buildSegment(4000, 80, tcp.Segment{SEQ: 1000, Flags: tcp.FlagSYN, WND: 4096}, nil)
	_, conn, resp, err := stack.Input(remoteAddr, 4000, syn)
	if err != nil {
		t.Fatal(err)
	}
	ack := buildSegment(4000, 80, tcp.Segment{SEQ: 1001, ACK: resp.SEQ + 1, Flags: tcp.FlagACK, WND: 4096}, nil)
	if _, _, _, err := stack.Input(remoteAddr, 4000, ack); err != nil {
		t.Fatal(err)
	}

	if _, err := conn.Send([]byte("data"), true); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	if _, _, err := stack.Poll(conn, tcp.EvPoll, 0, false, buf); err != nil {
		t.Fatal(err)
	}

	before := conn.Stats().Expired
	var now time.Time
	for i := 0; i < int(cfg.MaxRTX); i++ {
		// Each cycle: the RTO timer fires doRexmit, which moves the
		// outstanding WRB back onto write_q's front bumping its nrtx; Poll
		// then puts it back on the wire, landing it in unacked_q again for
		// the next cycle's doRexmit to find.
		stack.Tick(now, cfg.MaxRTO+time.Millisecond)
		if _, _, err := stack.Poll(conn, tcp.EvPoll, 0, false, buf); err != nil {
			t.Fatal(err)
		}
	}
	if got := conn.Stats().Expired; got <= before {
		t.Fatalf("want the WRB to be dropped as expired after %d RTO expiries, expired count stayed at %d", cfg.MaxRTX, got)
	}
}
