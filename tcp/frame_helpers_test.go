package tcp_test

import (
	"encoding/binary"

	"github.com/soypat/tcpstack/tcp"
)

// buildSegment renders seg plus payload into a fresh TCP frame with no
// options, mirroring what a peer without MSS negotiation sends post-handshake.
func buildSegment(srcPort, dstPort uint16, seg tcp.Segment, payload []byte) tcp.Frame {
	buf := make([]byte, 20+len(payload))
	frm, err := tcp.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	frm.ClearHeader()
	frm.SetSourcePort(srcPort)
	frm.SetDestinationPort(dstPort)
	frm.SetSegment(seg, 5)
	copy(frm.RawData()[20:], payload)
	return frm
}

// buildSYNWithMSS renders a SYN (or SYN|ACK) segment carrying an MSS option, the
// shape a real handshake packet takes.
func buildSYNWithMSS(srcPort, dstPort uint16, seg tcp.Segment, mss uint16) tcp.Frame {
	buf := make([]byte, 24)
	frm, err := tcp.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	frm.ClearHeader()
	frm.SetSourcePort(srcPort)
	frm.SetDestinationPort(dstPort)
	frm.SetSegment(seg, 6)
	opts := frm.Options()
	opts[0] = 2 // MSS option kind.
	opts[1] = 4 // option length.
	binary.BigEndian.PutUint16(opts[2:4], mss)
	return frm
}

var remoteAddr = []byte{10, 0, 0, 1}
