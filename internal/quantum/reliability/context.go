package reliability

import "github.com/aetherflow/quantumcore/internal/quantum/seqnum"

// Context is a sequence-buffer context, one held for the send
// direction and one for the receive direction (spec.md §3).
//
// NullEntry (-1) for the initial "no sequence seen yet" receive state
// is represented as seqnum.ID(0xFFFF): wraparound arithmetic on the ID
// type already treats 0xFFFF+1 as 0, so a fresh receive context
// naturally accepts sequence 0 as the first "greater than current"
// packet without any special-casing at the call sites.
type Context struct {
	// Sequence is, for the sent context, the next seq to assign; for
	// the received context, the highest seq observed so far.
	Sequence seqnum.ID

	// Acked is, for the sent context, the last seq the remote peer has
	// acknowledged; for the received context, the last seq for which
	// we ourselves emitted an ack.
	Acked seqnum.ID

	// AckMask is the 64-bit cumulative ack bitmap anchored at Acked.
	AckMask uint64

	// LastAckMask is the value of AckMask when we last emitted an ack.
	// Only meaningful on the received context.
	LastAckMask uint64
}

// NewSentContext returns a fresh send-side context: the first packet
// to go out will be assigned sequence 0.
func NewSentContext() Context {
	return Context{}
}

// NewReceivedContext returns a fresh receive-side context: no packet
// has been seen, so Sequence sits one behind 0 (see type doc).
func NewReceivedContext() Context {
	return Context{
		Sequence: seqnum.ID(0xFFFF),
		Acked:    seqnum.ID(0xFFFF),
	}
}
