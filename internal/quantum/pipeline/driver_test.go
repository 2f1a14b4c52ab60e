package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aetherflow/quantumcore/internal/quantum/reliability"
)

func newTestDriver() *Driver {
	return NewDriver(4, 50, 200, 64, &reliability.Statistics{})
}

func TestDriverInOrderRoundTrip(t *testing.T) {
	sender := newTestDriver()
	receiver := newTestDriver()

	packet, err := sender.Send([]byte("hello"), 0)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	delivered, _, err := receiver.Receive(packet, 1)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(delivered) != 1 || !bytes.Equal(delivered[0], []byte("hello")) {
		t.Fatalf("expected [\"hello\"], got %v", delivered)
	}
}

func TestDriverOutOfOrderBuffering(t *testing.T) {
	sender := newTestDriver()
	receiver := newTestDriver()

	p0, _ := sender.Send([]byte("p0"), 0)
	p1, _ := sender.Send([]byte("p1"), 1)
	p2, _ := sender.Send([]byte("p2"), 2)

	delivered, _, err := receiver.Receive(p1, 10)
	if err != nil {
		t.Fatalf("Receive(p1) failed: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected nothing deliverable before the gap fills, got %v", delivered)
	}
	if !receiver.NeedsResume {
		t.Error("expected NeedsResume after buffering an out-of-order packet")
	}

	delivered, _, err = receiver.Receive(p0, 11)
	if err != nil {
		t.Fatalf("Receive(p0) failed: %v", err)
	}
	if len(delivered) != 2 || !bytes.Equal(delivered[0], []byte("p0")) || !bytes.Equal(delivered[1], []byte("p1")) {
		t.Fatalf("expected [p0, p1] once the gap fills, got %v", delivered)
	}
	if receiver.NeedsResume {
		t.Error("expected NeedsResume cleared once the gap filled")
	}

	delivered, _, err = receiver.Receive(p2, 12)
	if err != nil {
		t.Fatalf("Receive(p2) failed: %v", err)
	}
	if len(delivered) != 1 || !bytes.Equal(delivered[0], []byte("p2")) {
		t.Fatalf("expected [p2], got %v", delivered)
	}
}

func TestDriverDuplicateDetection(t *testing.T) {
	sender := newTestDriver()
	receiver := newTestDriver()

	p0, _ := sender.Send([]byte("p0"), 0)
	if _, _, err := receiver.Receive(p0, 0); err != nil {
		t.Fatalf("first receive: %v", err)
	}
	if _, _, err := receiver.Receive(p0, 1); !errors.Is(err, ErrDuplicatePacket) {
		t.Fatalf("expected ErrDuplicatePacket on replay, got %v", err)
	}
}

func TestDriverOutgoingQueueFull(t *testing.T) {
	sender := newTestDriver() // window 4

	for i := 0; i < 4; i++ {
		if _, err := sender.Send([]byte("x"), int64(i)); err != nil {
			t.Fatalf("Send %d: unexpected error %v", i, err)
		}
	}

	if _, err := sender.Send([]byte("overflow"), 4); !errors.Is(err, ErrOutgoingQueueFull) {
		t.Fatalf("expected ErrOutgoingQueueFull once the window is saturated, got %v", err)
	}
}

func TestDriverResendOnUpdate(t *testing.T) {
	sender := newTestDriver()
	packet, _ := sender.Send([]byte("p0"), 0)

	// Before the resend timeout elapses, nothing should go out.
	if toSend := sender.Update(10); len(toSend) != 0 {
		t.Fatalf("expected no resend before the timeout, got %d packets", len(toSend))
	}

	// Past the default resend timeout (50ms), the packet is resent.
	toSend := sender.Update(1000)
	if len(toSend) != 1 || !bytes.Equal(toSend[0], packet) {
		t.Fatalf("expected the original packet resent once past the timeout, got %v", toSend)
	}
	if sender.Engine.Stats.PacketsResent != 1 {
		t.Errorf("expected PacketsResent == 1, got %d", sender.Engine.Stats.PacketsResent)
	}
}
