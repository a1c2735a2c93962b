// Package client implements the outbound side of the protocol:
// discovery ping, padded MTU negotiation, the
// OpenConnectionRequest2 exchange, and the connected stream once the
// handshake completes. The flow mirrors the server's listener in
// reverse and reuses the same stream engine for the connected phase.
package client

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"raknet-core/binary"
	"raknet-core/events"
	"raknet-core/message"
	"raknet-core/protocol"
	"raknet-core/stream"
)

// handshakeReadTimeout bounds each unconnected read during the
// handshake; an expired deadline during MTU discovery means the
// padded request was too large for the path and the padding shrinks
// by protocol.ClientPaddingDecrease.
const handshakeReadTimeout = time.Second

// Client is one outbound connection to a remote listener.
type Client struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	guid   uint64
	bus    *events.Bus
	log    *logrus.Logger

	mu      sync.RWMutex
	stream  *stream.Stream
	running bool
}

// Dial binds a local UDP socket, runs the full unconnected handshake
// against addr, and returns a Client whose connected stream has
// already sent its ConnectionRequest. Callers must start Serve to
// drive the connected phase.
func Dial(addr string, bus *events.Bus, log *logrus.Logger) (*Client, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: resolving %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("client: bind failed: %w", err)
	}

	c := &Client{
		conn:   conn,
		remote: remote,
		guid:   rand.Uint64(),
		bus:    bus,
		log:    log,
	}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// handshake runs ping → MTU discovery → request2 → connected
// ConnectionRequest, in that order.
func (c *Client) handshake() error {
	if err := c.writeUnconnected(message.UnconnectedPing{
		SendTimestamp: time.Now().UnixMilli(),
		ClientGUID:    int64(c.guid),
	}); err != nil {
		return err
	}
	reply, err := c.readUnconnected()
	if err != nil {
		return fmt.Errorf("client: waiting for pong: %w", err)
	}
	pong, ok := reply.(message.UnconnectedPong)
	if !ok {
		return fmt.Errorf("client: expected UnconnectedPong, got %T", reply)
	}
	c.log.WithField("status", string(pong.Data)).Debug("client: server answered ping")

	if err := c.negotiateMTU(); err != nil {
		return err
	}

	reply, err = c.readUnconnected()
	if err != nil {
		return fmt.Errorf("client: waiting for reply 2: %w", err)
	}
	r2, ok := reply.(message.OpenConnectionReply2)
	if !ok {
		return fmt.Errorf("client: expected OpenConnectionReply2, got %T", reply)
	}

	c.conn.SetReadDeadline(time.Time{})
	c.stream = stream.New(c.remote, r2.MTUSize, c.guid, c.conn, c.bus, 0)
	c.log.WithField("mtu", r2.MTUSize).Info("client: handshake complete")

	if err := c.stream.Send(message.ConnectionRequest{
		ClientGUID:       int64(c.guid),
		RequestTimestamp: time.Now().UnixMilli(),
	}, protocol.ReliableOrdered); err != nil {
		return err
	}
	return c.stream.DatagramFlush()
}

// negotiateMTU probes downward from MaxMTUSize with zero-padded
// OpenConnectionRequest1 messages until the server answers, then
// sends OpenConnectionRequest2 echoing the server's figure. The
// padding length leaves room for the UDP header, the message id, the
// magic, and the protocol byte within the probed size.
func (c *Client) negotiateMTU() error {
	for size := protocol.MaxMTUSize; size >= protocol.MinHandshakeMTUSize; size -= protocol.ClientPaddingDecrease {
		padding := size - protocol.UDPHeaderSize - len(binary.Magic) - 2
		if err := c.writeUnconnected(message.OpenConnectionRequest1{
			ProtocolVersion: protocol.ProtocolVersion,
			PaddingLength:   padding,
		}); err != nil {
			return err
		}

		reply, err := c.readUnconnected()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		switch r := reply.(type) {
		case message.OpenConnectionReply1:
			return c.writeUnconnected(message.OpenConnectionRequest2{
				ServerAddress: c.remote,
				ClientMTU:     r.ServerMTU,
				ClientGUID:    int64(c.guid),
			})
		case message.IncompatibleProtocolVersion:
			c.bus.Publish(events.Event{Kind: events.IncompatibleProtocol, ServerProtocol: r.ServerProtocol})
			return fmt.Errorf("client: server speaks protocol %d, we speak %d", r.ServerProtocol, protocol.ProtocolVersion)
		}
	}
	return fmt.Errorf("client: no OpenConnectionReply1 before padding floor")
}

func (c *Client) writeUnconnected(m message.Message) error {
	_, err := c.conn.WriteToUDP(message.Encode(m), c.remote)
	return err
}

// readUnconnected reads the next datagram from the remote peer,
// skipping stray traffic from other sources.
func (c *Client) readUnconnected() (message.Message, error) {
	buf := make([]byte, protocol.MaxMTUSize)
	c.conn.SetReadDeadline(time.Now().Add(handshakeReadTimeout))
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			return nil, err
		}
		if !addr.IP.Equal(c.remote.IP) || addr.Port != c.remote.Port {
			continue
		}
		return message.Decode(buf[:n])
	}
}

// Serve runs the connected read loop and the periodic ack/datagram
// flush drivers until Close. It blocks; run it in its own goroutine.
func (c *Client) Serve() error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	go c.flushLoop()

	buf := make([]byte, protocol.MaxMTUSize)
	for c.isRunning() {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if c.isRunning() {
				c.log.WithError(err).Debug("client: read error")
			}
			continue
		}
		if !addr.IP.Equal(c.remote.IP) || addr.Port != c.remote.Port {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		if err := c.stream.Receive(data); err != nil {
			c.log.WithError(err).Debug("client: decode error")
		}
	}
	return nil
}

func (c *Client) flushLoop() {
	ticker := time.NewTicker(protocol.RaknetTPS)
	defer ticker.Stop()
	for c.isRunning() {
		<-ticker.C
		if err := c.stream.AckFlush(); err != nil {
			c.log.WithError(err).Debug("client: ack flush error")
		}
		if err := c.stream.DatagramFlush(); err != nil {
			c.log.WithError(err).Debug("client: datagram flush error")
		}
	}
}

func (c *Client) isRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Send queues payload as a GamePacket under ReliableOrdered; it goes
// out on the next datagram flush.
func (c *Client) Send(payload []byte) error {
	return c.stream.Send(message.GamePacket{Data: payload}, protocol.ReliableOrdered)
}

// Disconnect notifies the server and closes the socket.
func (c *Client) Disconnect() error {
	if err := c.stream.GracefulDisconnect(); err != nil {
		return err
	}
	return c.Close()
}

// Close stops Serve and releases the socket without notifying the
// peer.
func (c *Client) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return c.conn.Close()
}

// GUID returns the random identifier this client advertised during
// the handshake.
func (c *Client) GUID() uint64 { return c.guid }

// Ping sends one UnconnectedPing to addr and returns the status
// string from the pong, without establishing a connection.
func Ping(addr string, timeout time.Duration) (string, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return "", err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return "", err
	}
	defer conn.Close()

	ping := message.UnconnectedPing{SendTimestamp: time.Now().UnixMilli(), ClientGUID: int64(rand.Uint64())}
	if _, err := conn.WriteToUDP(message.Encode(ping), remote); err != nil {
		return "", err
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, protocol.MaxMTUSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return "", err
	}
	reply, err := message.Decode(buf[:n])
	if err != nil {
		return "", err
	}
	pong, ok := reply.(message.UnconnectedPong)
	if !ok {
		return "", fmt.Errorf("client: expected UnconnectedPong, got %T", reply)
	}
	return string(pong.Data), nil
}
