package tcp

import "time"

// Config bundles the tunables of the ingress/egress engines. Zero value is
// not directly usable; construct one with [DefaultConfig] and override
// individual fields.
type Config struct {
	// MSS is the maximum segment size offered/accepted absent negotiation
	// with the peer's own MSS option.
	MSS Size
	// MaxRTX bounds retransmission of a WRB (NuttX's tcp_maxrtx): once the
	// WRB's retransmit count reaches MaxRTX it is dropped and counted in the
	// connection's expired counter. The connection itself stays open.
	MaxRTX uint8
	// FastRetransmitWatermark is the number of duplicate ACKs that triggers
	// a fast retransmit of the oldest unacked WRB.
	FastRetransmitWatermark uint8
	// SendBufSize caps the total bytes resident in write_q+unacked_q for a
	// single connection (tcp_inqueue_wrb_size back-pressure threshold).
	SendBufSize Size
	// MaxWRBSize bounds how many bytes the producer path ([Conn.Send])
	// coalesces into one WRB: the per-WRB cap is min(4*MSS, MaxWRBSize),
	// rounded down to a multiple of the MSS when above it.
	MaxWRBSize Size
	// RecvBufSize sizes the per-connection receive ring backing [Conn.Read].
	// It also bounds the window ever advertised by rcvwnd.
	RecvBufSize Size
	// InitialRTO seeds conn.rto before any round trip has been measured.
	InitialRTO time.Duration
	// MinRTO floors the computed retransmission timeout.
	MinRTO time.Duration
	// MaxRTO ceils the computed retransmission timeout (exponential backoff
	// on repeated retransmission still applies beneath this ceiling).
	MaxRTO time.Duration
}

// DefaultConfig returns a Config with the values this core was validated
// against: a 536-octet MSS (RFC 9293's default absent an MSS option), a
// generous retransmit budget, and RTT bounds matching common embedded TCP/IP
// stacks (NuttX, lwIP).
func DefaultConfig() Config {
	return Config{
		MSS:                     536,
		MaxRTX:                  8,
		FastRetransmitWatermark: 3,
		SendBufSize:             16384,
		MaxWRBSize:              1460,
		RecvBufSize:             4096,
		InitialRTO:              3 * time.Second,
		MinRTO:                  200 * time.Millisecond,
		MaxRTO:                  60 * time.Second,
	}
}
