package reliability

import (
	"testing"

	"github.com/aetherflow/quantumcore/internal/quantum/seqnum"
)

func TestRingTryAcquireAndRelease(t *testing.T) {
	r := NewRing(4, 64)

	if !r.TryAcquire(0) {
		t.Fatal("expected TryAcquire(0) to succeed on a fresh ring")
	}
	if r.TryAcquire(4) {
		t.Fatal("expected TryAcquire(4) to fail: shares slot 0 with seq 0")
	}

	r.Release(0)
	if !r.TryAcquire(4) {
		t.Fatal("expected TryAcquire(4) to succeed once slot 0 is released")
	}
}

func TestRingReleaseIsIdempotent(t *testing.T) {
	// P8: releasing an already-free slot is a no-op.
	r := NewRing(4, 64)
	r.Release(7)
	r.Release(7)

	if !r.TryAcquire(7) {
		t.Fatal("slot should still be free after repeated release")
	}
}

func TestRingSetHeaderAndPacketRoundTrip(t *testing.T) {
	r := NewRing(4, 32)
	if !r.TryAcquire(1) {
		t.Fatal("TryAcquire failed")
	}

	header := []byte{0xAA, 0xBB}
	payload := []byte("hello")
	if err := r.SetHeaderAndPacket(1, header, payload, 1000); err != nil {
		t.Fatalf("SetHeaderAndPacket failed: %v", err)
	}

	slot, ok := r.Get(1)
	if !ok {
		t.Fatal("expected slot to be occupied by seq 1")
	}
	if string(slot.Payload()) != "hello" {
		t.Errorf("payload mismatch: got %q", slot.Payload())
	}
	if slot.SendTime != 1000 {
		t.Errorf("SendTime mismatch: got %d", slot.SendTime)
	}
}

func TestRingOverflowRejected(t *testing.T) {
	r := NewRing(4, 4)
	r.TryAcquire(0)
	if err := r.SetHeaderAndPacket(0, []byte{1, 2}, []byte{3, 4, 5}, 0); err == nil {
		t.Error("expected an overflow error when header+payload exceeds slot capacity")
	}
}

func TestRingWindowBound(t *testing.T) {
	// P4: occupied slots never exceed WindowSize.
	const window = 4
	r := NewRing(window, 16)
	for i := seqnum.ID(0); i < 10; i++ {
		r.TryAcquire(i)
		if r.OccupiedCount() > window {
			t.Fatalf("occupied count %d exceeds window %d", r.OccupiedCount(), window)
		}
	}
}

func TestRingReleaseRange(t *testing.T) {
	r := NewRing(8, 16)
	for i := seqnum.ID(0); i < 4; i++ {
		r.TryAcquire(i)
	}
	r.ReleaseRange(0, 4)
	if r.OccupiedCount() != 0 {
		t.Errorf("expected all 4 slots released, got %d occupied", r.OccupiedCount())
	}
}
