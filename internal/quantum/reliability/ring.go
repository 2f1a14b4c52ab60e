// Package reliability implements the sliding-window ARQ core: the
// sequence-indexed ring stores, the RTT-adaptive timer table, and the
// cumulative-ack engine that ties them together.
package reliability

import (
	"fmt"

	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

// NullEntry marks a ring slot as unoccupied. Stored widened to int32
// since a seqnum.ID cannot itself represent "no sequence".
const NullEntry int32 = -1

// Slot holds one pending packet: its header-plus-payload bytes, the
// split between the two, and the time it was last (re)sent. Slots are
// values, not references — the ring owns their storage outright.
type Slot struct {
	SequenceId int32
	HeaderSize int
	DataSize   int
	SendTime   int64
	Buffer     []byte
}

// Occupied reports whether the slot currently holds a live packet.
func (s *Slot) Occupied() bool {
	return s.SequenceId != NullEntry
}

// Payload returns the slice of Buffer holding the packet payload
// (everything after the header).
func (s *Slot) Payload() []byte {
	return s.Buffer[s.HeaderSize : s.HeaderSize+s.DataSize]
}

// Packet returns the full header+payload slice currently staged in
// the slot.
func (s *Slot) Packet() []byte {
	return s.Buffer[:s.HeaderSize+s.DataSize]
}

// Ring is a fixed-capacity, sequence-indexed slot array. It backs both
// the send side (pending-ack packets) and the receive side (buffered
// out-of-order packets); slot index is always seq mod capacity.
type Ring struct {
	capacity   uint32
	maxPacket  int
	slots      []Slot
}

// NewRing allocates a ring of the given window capacity, sized to hold
// up to maxPacketSize bytes (header + MTU payload) per slot.
func NewRing(capacity uint32, maxPacketSize int) *Ring {
	r := &Ring{
		capacity:  capacity,
		maxPacket: maxPacketSize,
		slots:     make([]Slot, capacity),
	}
	for i := range r.slots {
		r.slots[i].SequenceId = NullEntry
		r.slots[i].SendTime = -1
		r.slots[i].Buffer = make([]byte, maxPacketSize)
	}
	return r
}

func (r *Ring) index(seq seqnum.ID) uint32 {
	return uint32(seq) % r.capacity
}

// TryAcquire stakes the slot for seq iff it is currently free.
func (r *Ring) TryAcquire(seq seqnum.ID) bool {
	slot := &r.slots[r.index(seq)]
	if slot.Occupied() {
		return false
	}
	slot.SequenceId = int32(seq)
	return true
}

// SetHeaderAndPacket writes header and payload bytes into the slot
// previously staked by TryAcquire(seq), stamping its send time.
func (r *Ring) SetHeaderAndPacket(seq seqnum.ID, header, payload []byte, timestamp int64) error {
	slot := &r.slots[r.index(seq)]
	if int32(seq) != slot.SequenceId {
		return fmt.Errorf("reliability: slot for seq %d is not staked (holds %d)", seq, slot.SequenceId)
	}
	total := len(header) + len(payload)
	if total > len(slot.Buffer) {
		return fmt.Errorf("reliability: packet of %d bytes overflows %d-byte slot for seq %d", total, len(slot.Buffer), seq)
	}
	copy(slot.Buffer, header)
	copy(slot.Buffer[len(header):], payload)
	slot.HeaderSize = len(header)
	slot.DataSize = len(payload)
	slot.SendTime = timestamp
	return nil
}

// SetPacket writes payload-only bytes (no header) into the slot
// previously staked by TryAcquire(seq); used by the receive-resume
// buffer, which never re-sends what it holds.
func (r *Ring) SetPacket(seq seqnum.ID, payload []byte) error {
	slot := &r.slots[r.index(seq)]
	if int32(seq) != slot.SequenceId {
		return fmt.Errorf("reliability: slot for seq %d is not staked (holds %d)", seq, slot.SequenceId)
	}
	if len(payload) > len(slot.Buffer) {
		return fmt.Errorf("reliability: payload of %d bytes overflows %d-byte slot for seq %d", len(payload), len(slot.Buffer), seq)
	}
	copy(slot.Buffer, payload)
	slot.HeaderSize = 0
	slot.DataSize = len(payload)
	return nil
}

// Get returns the slot at seq's index along with whether it is
// currently occupied by that exact sequence number.
func (r *Ring) Get(seq seqnum.ID) (Slot, bool) {
	slot := r.slots[r.index(seq)]
	return slot, slot.SequenceId == int32(seq)
}

// At returns a mutable pointer to the slot at seq's index, regardless
// of whether it currently matches seq, so an in-flight header can be
// rewritten without a full copy. (The driver's resend scan reaches
// slots through SlotByIndex instead.)
func (r *Ring) At(seq seqnum.ID) *Slot {
	return &r.slots[r.index(seq)]
}

// Release frees the slot unconditionally, matching seq or not.
func (r *Ring) Release(seq seqnum.ID) {
	slot := &r.slots[r.index(seq)]
	slot.SequenceId = NullEntry
	slot.SendTime = -1
}

// ReleaseRange frees count consecutive slots starting at seqStart.
func (r *Ring) ReleaseRange(seqStart seqnum.ID, count uint32) {
	for i := uint32(0); i < count; i++ {
		r.Release(seqStart + seqnum.ID(i))
	}
}

// SlotByIndex returns a mutable pointer to the raw ring slot at the
// given array index (0 <= i < Capacity()), independent of any
// particular sequence number. Used by the ack engine's release scan,
// which walks every slot in the ring rather than computing indices
// from sequence numbers.
func (r *Ring) SlotByIndex(i uint32) *Slot {
	return &r.slots[i]
}

// Capacity returns the ring's configured window size.
func (r *Ring) Capacity() uint32 {
	return r.capacity
}

// OccupiedCount returns the number of currently occupied slots —
// used to verify the window-bound invariant (spec.md P4) in tests.
func (r *Ring) OccupiedCount() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].Occupied() {
			n++
		}
	}
	return n
}
