package tcp_test

import (
	"testing"

	"github.com/soypat/tcpstack/tcp"
)

// TestPassiveOpenNegotiatesMSS drives spec.md §8's passive-open scenario: a
// SYN carrying a smaller MSS than our default must leave the connection
// negotiated down to the peer's value, and the resulting SYN|ACK must
// acknowledge ISS+1.
func TestPassiveOpenNegotiatesMSS(t *testing.T) {
	stack := tcp.NewStack(tcp.DefaultConfig(), nil)
	if _, err := stack.Listen(80); err != nil {
		t.Fatal(err)
	}

	const clientISS tcp.Value = 100
	syn := buildSYNWithMSS(4000, 80, tcp.Segment{SEQ: clientISS, Flags: tcp.FlagSYN, WND: 4096}, 200)

	ev, conn, resp, err := stack.Input(remoteAddr, 4000, syn)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasAny(tcp.EvConnected) {
		t.Fatal("expected EvConnected on passive SYN admission")
	}
	if conn == nil || conn.State() != tcp.StateSynRcvd {
		t.Fatalf("want SYN_RCVD, got %v", conn.State())
	}
	if resp == nil || !resp.Flags.HasAll(tcp.FlagSYN|tcp.FlagACK) {
		t.Fatalf("want SYN|ACK response, got %+v", resp)
	}
	if resp.ACK != clientISS+1 {
		t.Fatalf("want ACK=%d, got %d", clientISS+1, resp.ACK)
	}
	if got := conn.Stats().MSS; got != 200 {
		t.Fatalf("want negotiated MSS=200, got %d", got)
	}

	// Client completes the handshake.
	ack := buildSegment(4000, 80, tcp.Segment{SEQ: clientISS + 1, ACK: resp.SEQ + 1, Flags: tcp.FlagACK, WND: 4096}, nil)
	ev, conn2, _, err := stack.Input(remoteAddr, 4000, ack)
	if err != nil {
		t.Fatal(err)
	}
	if conn2 != conn {
		t.Fatal("expected same connection record across handshake")
	}
	if conn.State() != tcp.StateEstablished {
		t.Fatalf("want ESTABLISHED after final ACK, got %v", conn.State())
	}
	_ = ev
}

// TestActiveOpenHandshake drives the other handshake direction: OpenActive
// emits a SYN, and the matching SYN|ACK must move the connection straight to
// ESTABLISHED.
func TestActiveOpenHandshake(t *testing.T) {
	stack := tcp.NewStack(tcp.DefaultConfig(), nil)
	conn, syn := stack.OpenActive(5000, 80, remoteAddr)
	if conn.State() != tcp.StateSynSent {
		t.Fatalf("want SYN_SENT, got %v", conn.State())
	}
	if !syn.Flags.HasAll(tcp.FlagSYN) {
		t.Fatalf("want SYN segment, got %+v", syn)
	}

	synack := buildSYNWithMSS(80, 5000, tcp.Segment{SEQ: 9000, ACK: syn.SEQ + 1, Flags: tcp.FlagSYN | tcp.FlagACK, WND: 4096}, 1200)
	ev, respConn, resp, err := stack.Input(remoteAddr, 80, synack)
	if err != nil {
		t.Fatal(err)
	}
	if respConn != conn {
		t.Fatal("expected Input to resolve back to the same Conn OpenActive returned")
	}
	if !ev.HasAny(tcp.EvConnected) {
		t.Fatal("expected EvConnected on SYN|ACK")
	}
	if conn.State() != tcp.StateEstablished {
		t.Fatalf("want ESTABLISHED, got %v", conn.State())
	}
	if resp == nil || resp.Flags != tcp.FlagACK {
		t.Fatalf("want final ACK segment, got %+v", resp)
	}
}

// TestRejectUnsolicitedSYNOnEstablished exercises spec.md §4.2 step 3: a
// stray SYN hitting an already-established connection must be met with an
// abort, not silently folded into the existing state.
func TestRejectUnsolicitedSYNOnEstablished(t *testing.T) {
	stack, conn := establishedPair(t)
	syn := buildSegment(4000, 80, tcp.Segment{SEQ: 99999, Flags: tcp.FlagSYN, WND: 4096}, nil)
	ev, _, resp, err := stack.Input(remoteAddr, 4000, syn)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasAny(tcp.EvAbort) {
		t.Fatal("expected EvAbort on unsolicited SYN")
	}
	if resp == nil || !resp.Flags.HasAll(tcp.FlagRST) {
		t.Fatalf("want RST response, got %+v", resp)
	}
	_ = conn
}
