package tcp_test

import (
	"testing"

	"github.com/soypat/tcpstack/tcp"
)

// establishedPair drives a full passive-open handshake (SYN, SYN|ACK, final
// ACK) against a fresh stack listening on port 80, returning the stack and
// the resulting ESTABLISHED connection. Shared by tests that only care about
// post-handshake behavior.
func establishedPair(t *testing.T) (*tcp.Stack, *tcp.Conn) {
	t.Helper()
	stack := tcp.NewStack(tcp.DefaultConfig(), nil)
	if _, err := stack.Listen(80); err != nil {
		t.Fatal(err)
	}

	const clientISS tcp.Value = 1000
	syn := buildSegment(4000, 80, tcp.Segment{SEQ: clientISS, Flags: tcp.FlagSYN, WND: 4096}, nil)
	ev, conn, resp, err := stack.Input(remoteAddr, 4000, syn)
	if err != nil {
		t.Fatalf("SYN: %v", err)
	}
	if !ev.HasAny(tcp.EvConnected) || conn == nil || resp == nil {
		t.Fatalf("SYN admission failed: ev=%v conn=%v resp=%v", ev, conn, resp)
	}

	ack := buildSegment(4000, 80, tcp.Segment{SEQ: clientISS + 1, ACK: resp.SEQ + 1, Flags: tcp.FlagACK, WND: 4096}, nil)
	_, _, _, err = stack.Input(remoteAddr, 4000, ack)
	if err != nil {
		t.Fatalf("final ACK: %v", err)
	}
	if conn.State() != tcp.StateEstablished {
		t.Fatalf("want ESTABLISHED, got %v", conn.State())
	}
	return stack, conn
}
