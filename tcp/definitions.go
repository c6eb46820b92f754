package tcp

import (
	"math/bits"
	"strconv"
	"unsafe"
)

//go:generate stringer -type=State -linecomment -output stringers.go .

// Segment represents an incoming/outgoing TCP segment in the sequence space.
// It is the parsed view `tcp_input` and the egress engine operate on; the
// wire bytes themselves live in a [Frame].
type Segment struct {
	SEQ     Value // sequence number of first octet of segment. If SYN is set it is the initial sequence number (ISN) and the first data octet is ISN+1.
	ACK     Value // acknowledgment number. If ACK is set it is sequence number of first octet the sender of the segment is expecting to receive next.
	DATALEN Size  // The number of octets occupied by the data (payload) not counting SYN and FIN.
	WND     Size  // segment window
	Flags   Flags // TCP flags.
}

// LEN returns the length of the segment in octets including SYN and FIN flags.
func (seg *Segment) LEN() Size {
	add := Size(seg.Flags>>0) & 1 // Add FIN bit.
	add += Size(seg.Flags>>1) & 1 // Add SYN bit.
	return seg.DATALEN + add
}

// Last returns the sequence number of the last octet of the segment.
func (seg *Segment) Last() Value {
	seglen := seg.LEN()
	if seglen == 0 {
		return seg.SEQ
	}
	return Add(seg.SEQ, seglen) - 1
}

// StringExchange returns a RFC9293 styled visualization of a segment exchange, i.e:
//
//	SYN-SENT     --> <SEQ=300><ACK=91>[SYN,ACK]      --> SYN-RECEIVED
func StringExchange(seg Segment, A, B State, invertDir bool) string {
	b := make([]byte, 0, 64)
	b = appendStringExchange(b, seg, A, B, invertDir)
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func appendStringExchange(buf []byte, seg Segment, A, B State, invertDir bool) []byte {
	const emptySpaces = "             "
	const fill = len(emptySpaces) - 1
	appendVal := func(buf []byte, name string, i Value) []byte {
		buf = append(buf, '<')
		buf = append(buf, name...)
		buf = append(buf, '=')
		buf = strconv.AppendInt(buf, int64(i), 10)
		buf = append(buf, '>')
		return buf
	}
	startLen := len(buf)
	dirSep := []byte(" --> ")
	if invertDir {
		dirSep = []byte(" <-- ")
	}
	astr := A.String()
	buf = append(buf, astr...)
	if len(astr) < fill {
		buf = append(buf, emptySpaces[:fill-len(astr)]...)
	}
	buf = append(buf, dirSep...)
	buf = appendVal(buf, "SEQ", seg.SEQ)
	buf = appendVal(buf, "ACK", seg.ACK)
	if seg.DATALEN > 0 {
		buf = appendVal(buf, "DATA", Value(seg.DATALEN))
	}
	buf = append(buf, '[')
	buf = seg.Flags.AppendFormat(buf)
	buf = append(buf, ']')
	if len(buf)-startLen < 48 {
		buf = append(buf, emptySpaces[:48-len(buf)]...)
	}
	buf = append(buf, dirSep...)
	buf = append(buf, B.String()...)
	return buf
}

// Flags is a TCP flags bit-masked implementation i.e: SYN, FIN, ACK.
type Flags uint16

const (
	FlagFIN Flags = 1 << iota // FlagFIN - No more data from sender.
	FlagSYN                   // FlagSYN - Synchronize sequence numbers.
	FlagRST                   // FlagRST - Reset the connection.
	FlagPSH                   // FlagPSH - Push function.
	FlagACK                   // FlagACK - Acknowledgment field significant.
	FlagURG                   // FlagURG - Urgent pointer field significant.
	FlagECE                   // FlagECE - ECN-Echo has a nonce-sum in the SYN/ACK.
	FlagCWR                   // FlagCWR - Congestion Window Reduced.
	FlagNS                    // FlagNS  - Nonce Sum flag (see RFC 3540).
)

const flagMask = 0x01ff

// The union of SYN|FIN|PSH and ACK flags is commonly found throughout the specification, so we define unexported shorthands.
const (
	synack = FlagSYN | FlagACK
	finack = FlagFIN | FlagACK
)

// HasAll checks if mask bits are all set in the receiver flags.
func (flags Flags) HasAll(mask Flags) bool { return flags&mask == mask }

// HasAny checks if one or more mask bits are set in receiver flags.
func (flags Flags) HasAny(mask Flags) bool { return flags&mask != 0 }

// Mask returns the flags with non-flag bits unset.
func (flags Flags) Mask() Flags { return flags & flagMask }

// String returns human readable flag string, i.e. "[SYN,ACK]".
// Flags are printed in order from LSB (FIN) to MSB (NS).
func (flags Flags) String() string {
	// Cover most common cases without heap allocating.
	switch flags {
	case 0:
		return "[]"
	case synack:
		return "[SYN,ACK]"
	case finack:
		return "[FIN,ACK]"
	case FlagACK:
		return "[ACK]"
	case FlagSYN:
		return "[SYN]"
	case FlagFIN:
		return "[FIN]"
	case FlagRST:
		return "[RST]"
	}
	buf := make([]byte, 0, 2+3*bits.OnesCount16(uint16(flags)))
	buf = append(buf, '[')
	buf = flags.AppendFormat(buf)
	buf = append(buf, ']')
	return string(buf)
}

// AppendFormat appends a human readable flag string to b returning the extended buffer.
func (flags Flags) AppendFormat(b []byte) []byte {
	if flags == 0 {
		return b
	}
	const flaglen = 3
	const strflags = "FINSYNRSTPSHACKURGECECWRNS "
	var addcommas bool
	for flags != 0 {
		i := bits.TrailingZeros16(uint16(flags))
		if addcommas {
			b = append(b, ',')
		} else {
			addcommas = true
		}
		b = append(b, strflags[i*flaglen:i*flaglen+flaglen]...)
		flags &= ^(1 << i)
	}
	return b
}

// State enumerates states a TCP connection progresses through during its
// lifetime. This core omits CLOSE-WAIT: a passively-closed connection moves
// straight from ESTABLISHED to LAST-ACK (spec deviation, see DESIGN.md).
type State uint8

const (
	// CLOSED represents no connection state at all. Pseudo-state pre-initialization.
	StateClosed State = iota // CLOSED
	// LISTEN represents waiting for a connection request from any remote TCP and port.
	StateListen // LISTEN
	// SYN-RECEIVED represents waiting for a confirming ACK after both receiving and sending a SYN.
	StateSynRcvd // SYN-RECEIVED
	// SYN-SENT represents waiting for a matching connection request after having sent one.
	StateSynSent // SYN-SENT
	// ESTABLISHED is the normal state for the data transfer phase of the connection.
	StateEstablished // ESTABLISHED
	// FIN-WAIT-1 represents waiting for a termination request from the remote, or
	// an ACK of the termination request previously sent.
	StateFinWait1 // FIN-WAIT-1
	// FIN-WAIT-2 represents waiting for a termination request from the remote.
	StateFinWait2 // FIN-WAIT-2
	// CLOSING represents waiting for a termination request ACK from the remote.
	StateClosing // CLOSING
	// TIME-WAIT represents waiting for 2MSL so the remote's last ACK is known received.
	StateTimeWait // TIME-WAIT
	// LAST-ACK represents waiting for an ACK of the termination request sent to the remote.
	StateLastAck // LAST-ACK
)

// IsPreestablished returns true if the connection is in a state preceding the established state.
func (s State) IsPreestablished() bool {
	return s == StateSynRcvd || s == StateSynSent || s == StateListen
}

// IsClosing returns true if the connection is in a closing state but not yet terminated.
func (s State) IsClosing() bool {
	return !(s <= StateEstablished)
}

// IsClosed returns true if the connection is closed or in TimeWait.
func (s State) IsClosed() bool {
	return s == StateClosed || s == StateTimeWait
}

// RxDataOpen returns true if new data received in this state should still be delivered to the application.
func (s State) RxDataOpen() bool {
	return s == StateEstablished || s == StateFinWait1 || s == StateFinWait2
}

// TxDataOpen returns true in the states where [Conn.Close] queues a FIN behind any pending data instead of closing outright.
func (s State) TxDataOpen() bool {
	return s == StateEstablished || s == StateSynRcvd || s == StateSynSent
}

type OptionKind uint8

const (
	OptEnd            OptionKind = iota // end of option list
	OptNop                              // no-operation
	OptMaxSegmentSize                   // maximum segment size
	OptWindowScale                      // window scale
	OptSACKPermitted                    // SACK permitted
	OptSACK                             // SACK
	OptEcho                             // echo(obsolete)
	optEchoReply                        // echo reply(obsolete)
	OptTimestamps                       // timestamps
)

const (
	OptFastOpenCookie OptionKind = 34 // fast open cookie
)

// IsDefined returns true if the option is a known unreserved option kind.
func (kind OptionKind) IsDefined() bool {
	return kind <= OptTimestamps || kind == OptFastOpenCookie
}

func (kind OptionKind) String() string {
	switch kind {
	case OptEnd:
		return "end of option list"
	case OptNop:
		return "no-operation"
	case OptMaxSegmentSize:
		return "maximum segment size"
	case OptWindowScale:
		return "window scale"
	case OptSACKPermitted:
		return "SACK permitted"
	case OptSACK:
		return "SACK"
	case OptTimestamps:
		return "timestamps"
	case OptFastOpenCookie:
		return "fast open cookie"
	default:
		return "unassigned(" + strconv.Itoa(int(kind)) + ")"
	}
}

