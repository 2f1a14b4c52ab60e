package reliability

import (
	"github.com/aetherflow/quantumcore/internal/quantum/protocol"
	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

// Classification is the outcome of classifying an inbound header
// against the receive-side context (spec.md §4.4).
type Classification int

const (
	// ClassProcessed means the packet advanced or filled the receive
	// context and its sequence number should be handed to the driver
	// for delivery-order handling.
	ClassProcessed Classification = iota

	// ClassDuplicate means the packet's piggy-backed ack was folded in
	// but the packet itself carries nothing new.
	ClassDuplicate

	// ClassStale means the packet is older than the window can still
	// accept; it is dropped outright.
	ClassStale
)

// Statistics is the read-only snapshot exposed to callers (spec.md §6).
type Statistics struct {
	PacketsSent      uint64
	PacketsReceived  uint64
	PacketsDropped   uint64
	PacketsOutOfOrder uint64
	PacketsDuplicated uint64
	PacketsStale     uint64
	PacketsResent    uint64
}

// Engine is the ack engine: it owns both sequence-buffer contexts and
// the timer table, and implements the classification, folding,
// release, and standalone-ack-decision algorithms of spec.md §4.4.
type Engine struct {
	windowSize uint32

	Sent     Context
	Received Context
	Timers   *Timers

	DuplicatesSinceLastAck int

	Stats *Statistics
}

// NewEngine constructs an ack engine for the given window size and
// resend-time bounds, sharing stats with the caller (normally the
// pipeline driver) so both layers accumulate into one Statistics
// snapshot.
func NewEngine(windowSize uint32, minResend, maxResend int, stats *Statistics) *Engine {
	return &Engine{
		windowSize: windowSize,
		Sent:       NewSentContext(),
		Received:   NewReceivedContext(),
		Timers:     NewTimers(windowSize, minResend, maxResend),
		Stats:      stats,
	}
}

// PrepareSend builds the header for a freshly assigned outbound
// sequence number, piggy-backing the current receive-side ack state,
// and advances Sent.Sequence for the next call (spec.md §4.4 "On
// send").
func (e *Engine) PrepareSend(now int64) protocol.Header {
	seq := e.Sent.Sequence
	h := protocol.Header{
		Type:            protocol.TypePayload,
		SequenceId:      seq,
		AckedSequenceId: e.Received.Sequence,
		AckMask:         e.Received.AckMask,
		ProcessingTime:  e.Timers.ProcessingTimeFor(e.Received.Sequence, now),
	}

	e.Sent.Sequence = seq + 1
	e.Received.Acked = e.Received.Sequence
	e.Received.LastAckMask = e.Received.AckMask
	e.DuplicatesSinceLastAck = 0

	return h
}

// PrepareAck builds a standalone-ack header without consuming a send
// sequence number (spec.md §4.5 "Update (ack emission)").
func (e *Engine) PrepareAck(now int64) protocol.Header {
	h := protocol.Header{
		Type:            protocol.TypeAck,
		AckedSequenceId: e.Received.Sequence,
		AckMask:         e.Received.AckMask,
		ProcessingTime:  e.Timers.ProcessingTimeFor(e.Received.Sequence, now),
	}

	e.Received.Acked = e.Received.Sequence
	e.Received.LastAckMask = e.Received.AckMask
	e.DuplicatesSinceLastAck = 0

	return h
}

// RefreshAck rebuilds the piggy-backed ack fields a resend carries,
// against the ack state as of now, without consuming a send sequence
// number (spec.md §4.5 "Update (resend scan)" requires a resent
// packet's ack fields to be rewritten to current values, not frozen at
// first-send time). Performs the same ack-sent bookkeeping PrepareSend
// and PrepareAck do, since the resent datagram carries a fresh ack.
func (e *Engine) RefreshAck(now int64) (ackedSeq seqnum.ID, ackMask uint64, processingTime uint16) {
	ackedSeq = e.Received.Sequence
	ackMask = e.Received.AckMask
	processingTime = e.Timers.ProcessingTimeFor(e.Received.Sequence, now)

	e.Received.Acked = e.Received.Sequence
	e.Received.LastAckMask = e.Received.AckMask
	e.DuplicatesSinceLastAck = 0

	return ackedSeq, ackMask, processingTime
}

// Classify processes an inbound header against the receive-side
// context, implementing the three-way branch of spec.md §4.4 "On
// receive". It updates Received/Sent contexts and folds the remote
// ack as a side effect; the returned Classification tells the driver
// what to do with the packet.
func (e *Engine) Classify(h *protocol.Header, now int64) Classification {
	if seqnum.Stale(h.SequenceId, e.Received.Sequence+1, e.windowSize) {
		e.Stats.PacketsStale++
		return ClassStale
	}

	if seqnum.GreaterThan(h.SequenceId, e.Received.Sequence) {
		d := seqnum.AbsDistance(h.SequenceId, e.Received.Sequence)
		if d > e.windowSize-1 {
			e.Stats.PacketsDropped += uint64(d - 1)
			e.Received.AckMask = 1
		} else {
			e.Received.AckMask <<= d
			e.Received.AckMask |= 1
			limit := d
			if limit > e.windowSize-1 {
				limit = e.windowSize - 1
			}
			for i := uint32(0); i < limit; i++ {
				if e.Received.AckMask&(1<<i) == 0 {
					e.Stats.PacketsDropped++
				}
			}
		}
		e.Received.Sequence = h.SequenceId

		e.Timers.RecordReceive(h.SequenceId, now)
		e.foldRemoteAck(h, now)
		return ClassProcessed
	}

	d := seqnum.AbsDistance(e.Received.Sequence, h.SequenceId)
	if d >= 0xFFFF-e.windowSize {
		// Wrap-repair: when the backward distance from the current
		// high-water mark is at least 0xFFFF - windowSize, d is
		// recomputed as the 16-bit difference Sequence - SequenceId.
		// See spec.md §9's open question; preserved exactly.
		d = uint32(e.Received.Sequence - h.SequenceId)
	}
	bit := uint64(1) << d

	if bit&e.Received.AckMask != 0 {
		e.foldRemoteAck(h, now)
		e.Stats.PacketsDuplicated++
		e.DuplicatesSinceLastAck++
		return ClassDuplicate
	}

	e.Stats.PacketsOutOfOrder++
	e.Received.AckMask |= bit

	e.Timers.RecordReceive(h.SequenceId, now)
	e.foldRemoteAck(h, now)
	return ClassProcessed
}

// foldRemoteAck folds the peer's piggy-backed ack into our sent-side
// context and feeds the RTT estimator (spec.md §4.4 "Folding remote
// ack into sent context").
func (e *Engine) foldRemoteAck(h *protocol.Header, now int64) {
	switch {
	case seqnum.GreaterThan(e.Sent.Acked, h.AckedSequenceId):
		// Stale report from the peer; ignore.
	case e.Sent.Acked == h.AckedSequenceId:
		e.Sent.AckMask |= h.AckMask
	default:
		e.Sent.Acked = h.AckedSequenceId
		e.Sent.AckMask = h.AckMask
	}

	e.Timers.OnAck(h.AckedSequenceId, h.ProcessingTime, now)
}

// ReleaseAcked scans the send ring for slots the peer has now
// acknowledged and releases them, returning the sequence numbers
// freed (spec.md §4.4 "Acked-packet release").
//
// The ring's capacity equals WindowSize, so the "WindowSize
// consecutive slots starting at a wrap-safe anchor" spec.md describes
// is, in this array-backed implementation, simply every slot in the
// ring — each slot already records its own occupying sequence number,
// so there is no need to recompute one from an anchor index.
func (e *Engine) ReleaseAcked(sendRing *Ring) []seqnum.ID {
	var released []seqnum.ID

	for i := uint32(0); i < sendRing.Capacity(); i++ {
		slot := sendRing.SlotByIndex(i)
		if slot.SequenceId < 0 {
			continue
		}
		seq := seqnum.ID(uint32(slot.SequenceId))

		d := seqnum.AbsDistance(e.Sent.Acked, seq)
		if d >= e.windowSize {
			continue
		}
		bit := uint64(1) << d
		if bit&e.Sent.AckMask != 0 {
			sendRing.Release(seq)
			released = append(released, seq)
		}
	}

	return released
}

// ShouldSendAck decides whether a standalone ack packet must be
// emitted this tick (spec.md §4.4 "Deciding to emit a standalone
// ack").
func (e *Engine) ShouldSendAck(lastSentTime, previousTimestamp int64) bool {
	if lastSentTime >= previousTimestamp {
		return false
	}
	if e.Received.Acked != e.Received.Sequence {
		return true
	}
	if e.Received.AckMask != e.Received.LastAckMask {
		return true
	}
	if e.DuplicatesSinceLastAck >= 3 {
		return true
	}
	return false
}
