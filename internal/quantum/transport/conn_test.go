package transport

import (
	"context"
	"testing"
	"time"
)

func TestConnLoopback(t *testing.T) {
	server, err := Listen("udp", "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer server.Close()

	client, err := Dial("udp", server.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if err := client.Send([]byte("hello"), nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pkt, err := server.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(pkt.Data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", pkt.Data)
	}

	stats := client.Statistics()
	if stats.PacketsSent != 1 {
		t.Errorf("expected 1 packet sent, got %d", stats.PacketsSent)
	}
}

func TestConnCloseIsIdempotent(t *testing.T) {
	c, err := Listen("udp", "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if !c.IsClosed() {
		t.Error("expected IsClosed to report true after Close")
	}
}

func TestPacketPoolResetsState(t *testing.T) {
	pool := NewPacketPool()
	pkt := pool.Get()
	pkt.Data = append(pkt.Data, "leftover"...)
	pool.Put(pkt)

	reused := pool.Get()
	if len(reused.Data) != 0 {
		t.Errorf("expected a reset packet from the pool, got %d leftover bytes", len(reused.Data))
	}
}
