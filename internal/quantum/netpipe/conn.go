// Package netpipe wires the pipeline driver to a UDP transport and
// structured logging — the connection-level object a caller actually
// Dials or Listens on.
package netpipe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aetherflow/quantumcore/internal/quantum/config"
	"github.com/aetherflow/quantumcore/internal/quantum/pipeline"
	"github.com/aetherflow/quantumcore/internal/quantum/reliability"
	"github.com/aetherflow/quantumcore/internal/quantum/transport"
)

const (
	// MaxApplicationPayload is the largest payload Send will accept.
	MaxApplicationPayload = 1200

	// tickInterval drives the pipeline's Update call: resend scans and
	// standalone ack emission.
	tickInterval = 10 * time.Millisecond

	queueDepth = 1024
)

// Conn is one reliable-sequenced connection: a unique identity, a UDP
// transport, and the pipeline driver those datagrams feed.
type Conn struct {
	id uuid.UUID

	transport *transport.Conn
	driver    *pipeline.Driver
	driverMu  sync.Mutex
	stats     *reliability.Statistics
	logger    *zap.Logger

	sendQueue   chan []byte
	recvQueue   chan []byte
	closeSignal chan struct{}
	wg          sync.WaitGroup

	startTime time.Time
}

// Dial opens a client-side connection to address.
func Dial(network, address string, cfg *config.Config, logger *zap.Logger) (*Conn, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	t, err := transport.Dial(network, address, transport.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("netpipe: dial failed: %w", err)
	}
	return newConn(t, cfg, logger)
}

// Listen opens a server-side connection bound to address. The peer
// address is learned from the first datagram received.
func Listen(network, address string, cfg *config.Config, logger *zap.Logger) (*Conn, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	t, err := transport.Listen(network, address, transport.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("netpipe: listen failed: %w", err)
	}
	return newConn(t, cfg, logger)
}

func newConn(t *transport.Conn, cfg *config.Config, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		t.Close()
		return nil, fmt.Errorf("netpipe: invalid config: %w", err)
	}

	stats := &reliability.Statistics{}
	c := &Conn{
		id:          uuid.New(),
		transport:   t,
		driver:      pipeline.NewDriver(cfg.WindowSize, cfg.MinimumResendTime, cfg.MaximumResendTime, MaxApplicationPayload, stats),
		stats:       stats,
		logger:      logger.With(zap.String("conn_id", "")),
		sendQueue:   make(chan []byte, queueDepth),
		recvQueue:   make(chan []byte, queueDepth),
		closeSignal: make(chan struct{}),
		startTime:   time.Now(),
	}
	c.logger = c.logger.With(zap.String("conn_id", c.id.String()))

	c.wg.Add(3)
	go c.sendLoop()
	go c.recvLoop()
	go c.tickLoop()

	return c, nil
}

func (c *Conn) now() int64 {
	return time.Since(c.startTime).Milliseconds()
}

// Send queues data for reliable delivery.
func (c *Conn) Send(data []byte) error {
	select {
	case c.sendQueue <- data:
		return nil
	case <-c.closeSignal:
		return fmt.Errorf("netpipe: connection closed")
	}
}

// Receive blocks until the next in-order application payload is
// available, or the connection closes.
func (c *Conn) Receive() ([]byte, error) {
	select {
	case data := <-c.recvQueue:
		return data, nil
	case <-c.closeSignal:
		return nil, fmt.Errorf("netpipe: connection closed")
	}
}

func (c *Conn) sendLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeSignal:
			return
		case data := <-c.sendQueue:
			c.driverMu.Lock()
			packet, err := c.driver.Send(data, c.now())
			c.driverMu.Unlock()
			if err != nil {
				c.logger.Warn("send rejected by pipeline window", zap.Error(err))
				continue
			}
			if err := c.transport.Send(packet, nil); err != nil {
				c.logger.Warn("transport send failed", zap.Error(err))
			}
		}
	}
}

func (c *Conn) recvLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeSignal:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		pkt, err := c.transport.Receive(ctx)
		cancel()
		if err != nil {
			continue
		}

		if c.transport.RemoteAddr() == nil {
			c.transport.SetRemoteAddr(pkt.Addr)
		}

		c.driverMu.Lock()
		delivered, _, err := c.driver.Receive(pkt.Data, c.now())
		c.driverMu.Unlock()
		if err != nil {
			c.logger.Debug("inbound packet not processed", zap.Error(err))
		}
		for _, payload := range delivered {
			select {
			case c.recvQueue <- payload:
			default:
				c.logger.Warn("receive queue full, dropping delivered payload")
			}
		}
	}
}

func (c *Conn) tickLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeSignal:
			return
		case <-ticker.C:
			c.driverMu.Lock()
			duplicatesBefore := c.driver.Engine.DuplicatesSinceLastAck
			toSend := c.driver.Update(c.now())
			suppressing := duplicatesBefore >= 3
			c.driverMu.Unlock()
			if suppressing {
				c.logger.Debug("ack-storm suppression engaging")
			}
			for _, packet := range toSend {
				if err := c.transport.Send(packet, nil); err != nil {
					c.logger.Warn("transport resend/ack send failed", zap.Error(err))
				}
			}
		}
	}
}

// Statistics returns a snapshot of the pipeline's protocol-level
// counters.
func (c *Conn) Statistics() reliability.Statistics {
	c.driverMu.Lock()
	defer c.driverMu.Unlock()
	return *c.stats
}

// RTTInfo returns the current round-trip-time estimate driving the
// adaptive resend timeout.
func (c *Conn) RTTInfo() reliability.RTTInfo {
	c.driverMu.Lock()
	defer c.driverMu.Unlock()
	return c.driver.Engine.Timers.RTTInfo()
}

// ID returns this connection's random identity, attached to its log
// lines as conn_id.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Close stops all goroutines and releases the underlying socket.
func (c *Conn) Close() error {
	select {
	case <-c.closeSignal:
		return nil
	default:
	}
	close(c.closeSignal)
	c.wg.Wait()
	return c.transport.Close()
}
