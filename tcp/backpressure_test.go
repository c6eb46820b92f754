package tcp_test

import (
	"testing"
	"time"

	"github.com/soypat/tcpstack/tcp"
)

// TestSendBackpressureWakesOnAck exercises the producer/egress handoff of
// spec.md §4.5: a blocking Send parked on a full send buffer must wake once
// an ACK frees room, not just on disconnect.
func TestSendBackpressureWakesOnAck(t *testing.T) {
	cfg := tcp.DefaultConfig()
	cfg.SendBufSize = 8
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

	if _, err := conn.Send(make([]byte, 8), true); err != nil {
		t.Fatal(err)
	}
	if n, err := conn.Send([]byte("x"), true); n != 0 || err != tcp.ErrAgain {
		t.Fatalf("want ErrAgain once the send buffer is full, got n=%d err=%v", n, err)
	}

	unblocked := make(chan error, 1)
	go func() {
		_, sendErr := conn.Send([]byte("y"), false)
		unblocked <- sendErr
	}()

	buf := make([]byte, 64)
	n, _, err := stack.Poll(conn, tcp.EvPoll, 0, false, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected the initial 8 bytes to be transmitted")
	}
	frm, err := tcp.NewFrame(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	dataSeg := frm.Segment(len(frm.Payload()))
	ackno := tcp.Add(dataSeg.SEQ, dataSeg.DATALEN)

	dataAck := buildSegment(4000, 80, tcp.Segment{SEQ: 1001, ACK: ackno, Flags: tcp.FlagACK, WND: 4096}, nil)
	ev, _, _, err := stack.Input(remoteAddr, 4000, dataAck)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := stack.Poll(conn, ev, ackno, false, buf); err != nil {
		t.Fatal(err)
	}

	select {
	case sendErr := <-unblocked:
		if sendErr != nil {
			t.Fatalf("blocked Send returned error: %v", sendErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Send never woke up after the send buffer freed room")
	}
}
