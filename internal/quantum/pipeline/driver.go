package pipeline

import (
	"github.com/aetherflow/quantumcore/internal/quantum/protocol"
	"github.com/aetherflow/quantumcore/internal/quantum/reliability"
	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

// Driver ties the ack engine to a pair of sequence rings: sendRing
// holds packets awaiting acknowledgement, recvRing buffers payloads
// that arrived out of order until the gap ahead of them fills. Callers
// serialize all four entry points per connection (spec.md §5) — Driver
// keeps no internal lock.
type Driver struct {
	Engine *reliability.Engine

	windowSize uint32
	wireSize   int

	sendRing *reliability.Ring
	recvRing *reliability.Ring

	// DeliverCursor is the next sequence number Receive/ResumeReceive
	// will hand to the caller, once it arrives.
	DeliverCursor seqnum.ID

	// NeedsResume is set when a Receive call buffered a packet behind a
	// gap instead of delivering it immediately; callers should retry
	// ResumeReceive once they suspect the gap has since filled (e.g.
	// after processing a resend).
	NeedsResume bool

	PreviousTimestamp int64
	LastSentTime      int64
}

// NewDriver constructs a driver for the given window size, resend
// bounds, and maximum application payload size, sharing stats with the
// caller's Statistics snapshot.
func NewDriver(windowSize uint32, minResendMs, maxResendMs int, maxPayloadSize int, stats *reliability.Statistics) *Driver {
	wireSize := protocol.WireSize(int(windowSize))
	return &Driver{
		Engine:     reliability.NewEngine(windowSize, minResendMs, maxResendMs, stats),
		windowSize: windowSize,
		wireSize:   wireSize,
		sendRing:   reliability.NewRing(windowSize, wireSize+maxPayloadSize),
		recvRing:   reliability.NewRing(windowSize, maxPayloadSize),
	}
}

// Send stages payload in the next free send slot and returns the
// marshalled packet ready for the transport to put on the wire.
func (d *Driver) Send(payload []byte, now int64) ([]byte, error) {
	seq := d.Engine.Sent.Sequence

	if !d.sendRing.TryAcquire(seq) {
		return nil, ErrOutgoingQueueFull
	}

	h := d.Engine.PrepareSend(now)
	headerBytes, err := h.Marshal(int(d.windowSize))
	if err != nil {
		d.sendRing.Release(seq)
		return nil, err
	}

	if err := d.sendRing.SetHeaderAndPacket(seq, headerBytes, payload, now); err != nil {
		d.sendRing.Release(seq)
		return nil, ErrInsufficientMemory
	}

	d.Engine.Timers.RecordSend(seq, now)
	d.Engine.Stats.PacketsSent++
	d.LastSentTime = now

	slot, _ := d.sendRing.Get(seq)
	return append([]byte(nil), slot.Packet()...), nil
}

// Receive classifies an inbound datagram, folds its piggy-backed ack,
// releases whatever it newly acknowledges, and returns any application
// payloads that are now deliverable in sequence order. A stale or
// duplicate packet yields the matching sentinel error and no payloads.
func (d *Driver) Receive(data []byte, now int64) ([][]byte, []seqnum.ID, error) {
	var h protocol.Header
	if err := h.Unmarshal(data, int(d.windowSize)); err != nil {
		return nil, nil, err
	}

	class := d.Engine.Classify(&h, now)
	released := d.Engine.ReleaseAcked(d.sendRing)

	switch class {
	case reliability.ClassStale:
		return nil, released, ErrStalePacket
	case reliability.ClassDuplicate:
		return nil, released, ErrDuplicatePacket
	}

	d.Engine.Stats.PacketsReceived++

	if h.Type != protocol.TypePayload {
		return nil, released, nil
	}

	payload := data[d.wireSize:]
	if !d.recvRing.TryAcquire(h.SequenceId) {
		d.recvRing.Release(h.SequenceId)
		d.recvRing.TryAcquire(h.SequenceId)
	}
	if err := d.recvRing.SetPacket(h.SequenceId, payload); err != nil {
		return nil, released, ErrInsufficientMemory
	}

	delivered := d.drainDeliverable()
	if len(delivered) == 0 {
		d.NeedsResume = true
	} else {
		d.NeedsResume = false
	}
	return delivered, released, nil
}

// ResumeReceive retries delivery from DeliverCursor without requiring a
// fresh inbound packet — used after a resend is expected to have
// filled the gap a prior Receive call buffered behind.
func (d *Driver) ResumeReceive() [][]byte {
	delivered := d.drainDeliverable()
	if len(delivered) > 0 {
		d.NeedsResume = false
	}
	return delivered
}

func (d *Driver) drainDeliverable() [][]byte {
	var out [][]byte
	for {
		slot, ok := d.recvRing.Get(d.DeliverCursor)
		if !ok {
			break
		}
		out = append(out, append([]byte(nil), slot.Payload()...))
		d.recvRing.Release(d.DeliverCursor)
		d.DeliverCursor++
	}
	return out
}

// Update performs one tick's bookkeeping: it scans the send ring for
// slots past their current resend timeout (oldest candidates first,
// starting at the slot the next assigned sequence number maps to) and
// returns their packets for retransmission, then
// decides whether a standalone ack must be emitted this tick.
func (d *Driver) Update(now int64) [][]byte {
	var toSend [][]byte

	resendTimeout := int64(d.Engine.Timers.CurrentResendTime())
	capacity := d.sendRing.Capacity()
	start := uint32(d.Engine.Sent.Sequence) % capacity
	for i := uint32(0); i < capacity; i++ {
		slot := d.sendRing.SlotByIndex((start + i) % capacity)
		if slot.SequenceId < 0 || slot.SendTime < 0 {
			continue
		}
		if now-slot.SendTime >= resendTimeout {
			ackedSeq, ackMask, processingTime := d.Engine.RefreshAck(now)
			h := protocol.Header{
				Type:            protocol.TypePayload,
				SequenceId:      seqnum.ID(uint32(slot.SequenceId)),
				AckedSequenceId: ackedSeq,
				AckMask:         ackMask,
				ProcessingTime:  processingTime,
			}
			if headerBytes, err := h.Marshal(int(d.windowSize)); err == nil && len(headerBytes) == slot.HeaderSize {
				copy(slot.Buffer[:slot.HeaderSize], headerBytes)
			}

			slot.SendTime = now
			d.Engine.Stats.PacketsResent++
			d.LastSentTime = now
			toSend = append(toSend, append([]byte(nil), slot.Packet()...))
		}
	}

	if d.Engine.ShouldSendAck(d.LastSentTime, d.PreviousTimestamp) {
		h := d.Engine.PrepareAck(now)
		if headerBytes, err := h.Marshal(int(d.windowSize)); err == nil {
			toSend = append(toSend, headerBytes)
			d.LastSentTime = now
		}
	}

	d.PreviousTimestamp = now
	return toSend
}
