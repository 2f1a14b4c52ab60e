package protocol

import (
	"testing"

	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

func TestHeaderMarshalUnmarshalSmallWindow(t *testing.T) {
	original := &Header{
		Type:            TypePayload,
		ProcessingTime:  1234,
		SequenceId:      seqnum.ID(100),
		AckedSequenceId: seqnum.ID(50),
		AckMask:         0xDEADBEEF,
	}

	data, err := original.Marshal(32)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if len(data) != 12 {
		t.Fatalf("expected 12-byte wire header for window 32, got %d", len(data))
	}

	parsed := &Header{}
	if err := parsed.Unmarshal(data, 32); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if *parsed != *original {
		t.Errorf("round-trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestHeaderMarshalUnmarshalLargeWindow(t *testing.T) {
	original := &Header{
		Type:            TypeAck,
		ProcessingTime:  0,
		SequenceId:      seqnum.ID(0xFFFE),
		AckedSequenceId: seqnum.ID(0xFFFF),
		AckMask:         0xFFFFFFFFFFFFFFFF,
	}

	data, err := original.Marshal(64)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("expected 16-byte wire header for window 64, got %d", len(data))
	}

	parsed := &Header{}
	if err := parsed.Unmarshal(data, 64); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if *parsed != *original {
		t.Errorf("round-trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestMarshalRejectsOversizedMaskForSmallWindow(t *testing.T) {
	h := &Header{AckMask: 0x1_0000_0001}
	if _, err := h.Marshal(32); err == nil {
		t.Error("expected an error marshalling a >32-bit mask into a small-window header")
	}
}

func TestWireSize(t *testing.T) {
	cases := []struct {
		window int
		want   int
	}{
		{1, 12}, {32, 12}, {33, 16}, {64, 16},
	}
	for _, c := range cases {
		if got := WireSize(c.window); got != c.want {
			t.Errorf("WireSize(%d) = %d, want %d", c.window, got, c.want)
		}
	}
}

func TestUnmarshalShortHeader(t *testing.T) {
	h := &Header{}
	if err := h.Unmarshal([]byte{1, 2, 3}, 32); err == nil {
		t.Error("expected an error unmarshalling a truncated header")
	}
}
