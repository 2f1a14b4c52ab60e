// Package transport provides the opaque UDP datagram socket the
// reliable-sequenced delivery pipeline is driven over. It knows
// nothing about sequence numbers or acks — it only moves raw
// datagrams, mirroring spec.md §1's treatment of the transport as an
// external collaborator.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	// DefaultReadBufferSize is the default size for the UDP read buffer.
	DefaultReadBufferSize = 2 * 1024 * 1024

	// DefaultWriteBufferSize is the default size for the UDP write buffer.
	DefaultWriteBufferSize = 2 * 1024 * 1024

	// DefaultReadTimeout bounds how long Receive blocks with a
	// background context.
	DefaultReadTimeout = 30 * time.Second

	// MaxDatagramSize is the largest datagram this shim will read,
	// generous enough for any WireSize(64) header plus a full MTU
	// payload.
	MaxDatagramSize = 2048
)

// Packet is one datagram, in or out, with its remote address.
type Packet struct {
	Data []byte
	Addr *net.UDPAddr
}

// Config configures a Conn's socket buffers and default read timeout.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	ReadTimeout     time.Duration
}

// DefaultConfig returns sane defaults for Config.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
		ReadTimeout:     DefaultReadTimeout,
	}
}

// Conn is a UDP socket shim. It may be driven concurrently from a send
// goroutine and a receive goroutine, so — unlike the lock-free pipeline
// types above it — it guards its own mutable state with a mutex, the
// same split the teacher draws between its connection-level objects
// and its algorithmic packages.
type Conn struct {
	udpConn    *net.UDPConn
	localAddr  *net.UDPAddr
	remoteAddr *net.UDPAddr
	readBuf    []byte

	mu     sync.RWMutex
	closed bool
	stats  Statistics
}

// Statistics holds raw socket-level counters, distinct from the
// pipeline's protocol-level Statistics.
type Statistics struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	Errors          uint64
}

// Listen opens a UDP socket bound to address, for a server that learns
// its peer's address from the first datagram it receives.
func Listen(network, address string, config *Config) (*Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to resolve %s: %w", address, err)
	}

	udpConn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to listen on %s: %w", address, err)
	}

	return newConn(udpConn, udpConn.LocalAddr().(*net.UDPAddr), nil, config)
}

// Dial opens a UDP socket connected to a fixed remote address.
func Dial(network, address string, config *Config) (*Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to resolve %s: %w", address, err)
	}

	udpConn, err := net.DialUDP(network, nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to dial %s: %w", address, err)
	}

	return newConn(udpConn, udpConn.LocalAddr().(*net.UDPAddr), addr, config)
}

func newConn(udpConn *net.UDPConn, local, remote *net.UDPAddr, config *Config) (*Conn, error) {
	if err := udpConn.SetReadBuffer(config.ReadBufferSize); err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("transport: failed to set read buffer: %w", err)
	}
	if err := udpConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("transport: failed to set write buffer: %w", err)
	}

	return &Conn{
		udpConn:    udpConn,
		localAddr:  local,
		remoteAddr: remote,
		readBuf:    make([]byte, MaxDatagramSize),
	}, nil
}

// Send writes data to addr, or to the connection's fixed remote
// address if addr is nil.
func (c *Conn) Send(data []byte, addr *net.UDPAddr) error {
	c.mu.RLock()
	closed := c.closed
	remote := c.remoteAddr
	c.mu.RUnlock()

	if closed {
		return fmt.Errorf("transport: connection closed")
	}

	var (
		n   int
		err error
	)
	switch {
	case addr != nil:
		n, err = c.udpConn.WriteToUDP(data, addr)
	case remote != nil && c.udpConn.RemoteAddr() != nil:
		// A Dial-side socket is connected and rejects WriteTo.
		n, err = c.udpConn.Write(data)
	case remote != nil:
		n, err = c.udpConn.WriteToUDP(data, remote)
	default:
		return fmt.Errorf("transport: no remote address specified")
	}
	if err != nil {
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
		return fmt.Errorf("transport: send failed: %w", err)
	}

	c.mu.Lock()
	c.stats.PacketsSent++
	c.stats.BytesSent += uint64(n)
	c.mu.Unlock()

	return nil
}

// Receive blocks for one datagram, honoring ctx's deadline if set.
func (c *Conn) Receive(ctx context.Context) (*Packet, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("transport: connection closed")
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.udpConn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("transport: failed to set read deadline: %w", err)
		}
	} else {
		c.udpConn.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
	}

	n, addr, err := c.udpConn.ReadFromUDP(c.readBuf)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			c.mu.Lock()
			c.stats.Errors++
			c.mu.Unlock()
			return nil, fmt.Errorf("transport: read failed: %w", err)
		}
	}

	data := make([]byte, n)
	copy(data, c.readBuf[:n])

	c.mu.Lock()
	c.stats.PacketsReceived++
	c.stats.BytesReceived += uint64(n)
	c.mu.Unlock()

	return &Packet{Data: data, Addr: addr}, nil
}

// LocalAddr returns the socket's local address.
func (c *Conn) LocalAddr() *net.UDPAddr { return c.localAddr }

// RemoteAddr returns the socket's fixed remote address, if any.
func (c *Conn) RemoteAddr() *net.UDPAddr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteAddr
}

// SetRemoteAddr fixes the remote address for connected-style sends,
// used by a Listen-side socket once it has learned its peer.
func (c *Conn) SetRemoteAddr(addr *net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteAddr = addr
}

// Statistics returns a copy of the socket-level counters.
func (c *Conn) Statistics() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.udpConn.Close()
}

// IsClosed reports whether Close has already run.
func (c *Conn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
