// Package protocol defines the on-wire packet header for the
// reliable-sequenced pipeline stage.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

// Type distinguishes a payload-carrying packet from a bare
// acknowledgement.
type Type uint16

const (
	// TypePayload carries application data plus a piggy-backed ack.
	TypePayload Type = 0

	// TypeAck is a standalone acknowledgement with no payload.
	TypeAck Type = 1
)

func (t Type) String() string {
	if t == TypeAck {
		return "ACK"
	}
	return "PAYLOAD"
}

const (
	// HeaderFixedSize is the size, in bytes, of the fields that precede
	// the ack mask: Type + ProcessingTime + SequenceId + AckedSequenceId.
	HeaderFixedSize = 8

	// AckMaskSizeSmall is the wire size of the ack mask when
	// WindowSize <= 32.
	AckMaskSizeSmall = 4

	// AckMaskSizeLarge is the wire size of the ack mask when
	// WindowSize is in [33, 64].
	AckMaskSizeLarge = 8

	// SmallWindowThreshold is the largest window size that still fits
	// in a 32-bit ack mask.
	SmallWindowThreshold = 32
)

// Header is the in-memory representation of a packet header. It is
// always sized for the 64-bit ack mask for alignment; WireSize and
// Marshal/Unmarshal apply the width implied by the configured window.
type Header struct {
	Type            Type
	ProcessingTime  uint16
	SequenceId      seqnum.ID
	AckedSequenceId seqnum.ID
	AckMask         uint64
}

// WireSize returns the on-wire size of a header for the given window
// size: 12 bytes when windowSize <= 32, 16 bytes otherwise.
func WireSize(windowSize int) int {
	if windowSize <= SmallWindowThreshold {
		return HeaderFixedSize + AckMaskSizeSmall
	}
	return HeaderFixedSize + AckMaskSizeLarge
}

// Marshal serialises the header to its wire representation for the
// given window size, little-endian as spec.md §6 requires.
func (h *Header) Marshal(windowSize int) ([]byte, error) {
	size := WireSize(windowSize)
	buf := make([]byte, size)

	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Type))
	binary.LittleEndian.PutUint16(buf[2:4], h.ProcessingTime)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(h.SequenceId))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.AckedSequenceId))

	if size == HeaderFixedSize+AckMaskSizeSmall {
		if h.AckMask > 0xFFFFFFFF {
			return nil, fmt.Errorf("protocol: ack mask %#x does not fit in 32 bits for window size %d", h.AckMask, windowSize)
		}
		binary.LittleEndian.PutUint32(buf[8:12], uint32(h.AckMask))
	} else {
		binary.LittleEndian.PutUint64(buf[8:16], h.AckMask)
	}

	return buf, nil
}

// Unmarshal parses a wire-format header for the given window size.
func (h *Header) Unmarshal(data []byte, windowSize int) error {
	size := WireSize(windowSize)
	if len(data) < size {
		return fmt.Errorf("protocol: short header: need %d bytes, got %d", size, len(data))
	}

	h.Type = Type(binary.LittleEndian.Uint16(data[0:2]))
	h.ProcessingTime = binary.LittleEndian.Uint16(data[2:4])
	h.SequenceId = seqnum.ID(binary.LittleEndian.Uint16(data[4:6]))
	h.AckedSequenceId = seqnum.ID(binary.LittleEndian.Uint16(data[6:8]))

	if size == HeaderFixedSize+AckMaskSizeSmall {
		h.AckMask = uint64(binary.LittleEndian.Uint32(data[8:12]))
	} else {
		h.AckMask = binary.LittleEndian.Uint64(data[8:16])
	}

	return nil
}

// String returns a compact human-readable representation, used by
// connection-level debug logging.
func (h *Header) String() string {
	return fmt.Sprintf("%s{seq=%d acked=%d mask=%#x proc=%dms}",
		h.Type, h.SequenceId, h.AckedSequenceId, h.AckMask, h.ProcessingTime)
}
