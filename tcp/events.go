package tcp

// EventFlags is the control-flow flag word passed between the ingress state
// machine, the egress engine, and the upper-layer callback (spec.md §2/§4.4/
// §6). It is distinct from the wire [Flags] (SYN/ACK/FIN/...): EventFlags
// never touches the network, it only signals intent between the pieces of
// this core.
type EventFlags uint16

const (
	EvPoll      EventFlags = 1 << iota // device poll loop offers a TX opportunity.
	EvACKData                         // an ACK arrived while sent data was outstanding (duplicate ACKs included).
	EvRexmit                          // a retransmission (RTO or fast-retransmit) was scheduled.
	EvNewData                         // new in-order payload arrived for the application.
	EvConnected                       // handshake progressed: passive SYN admitted (-> SYN_RCVD), or SYN_RCVD/SYN_SENT -> ESTABLISHED.
	EvClose                           // peer closed (FIN) or local close completed (LAST_ACK -> CLOSED).
	EvAbort                           // connection reset or otherwise fatally terminated.
	EvTimedOut                        // retransmission budget exhausted.
	EvNetDown                         // device reported down; force-close regardless of queue state.
	EvSndAck                          // upper-layer callback return value: payload consumed, advance rcvseq.
)

// DisconnEvents is the disjunction the egress engine treats as a teardown
// request (spec.md §4.4 "Disconnect events").
const DisconnEvents = EvAbort | EvTimedOut | EvNetDown

// HasAny reports whether any bit of mask is set in flags.
func (flags EventFlags) HasAny(mask EventFlags) bool { return flags&mask != 0 }

// HasAll reports whether every bit of mask is set in flags.
func (flags EventFlags) HasAll(mask EventFlags) bool { return flags&mask == mask }
