package listener

import (
	"net"

	"raknet-core/events"
	"raknet-core/message"
	"raknet-core/protocol"
	"raknet-core/stream"
)

// handleUnconnected decodes and dispatches one offline message:
// pings get an UnconnectedPong with the cached
// status bytes, OpenConnectionRequest1/2 drive the three-step MTU
// handshake and, on success, install a new Stream in the connection
// table.
func (l *Listener) handleUnconnected(data []byte, addr *net.UDPAddr) error {
	msg, err := message.Decode(data)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case message.UnconnectedPing:
		return l.writeTo(addr, message.UnconnectedPong{
			SendTimestamp: m.SendTimestamp,
			ServerGUID:    int64(l.guid),
			Data:          l.statusBytes(),
		})

	case message.UnconnectedPingOpenConnections:
		return l.writeTo(addr, message.UnconnectedPong{
			SendTimestamp: m.SendTimestamp,
			ServerGUID:    int64(l.guid),
			Data:          l.statusBytes(),
		})

	case message.OpenConnectionRequest1:
		return l.handleOpenConnectionRequest1(m, len(data), addr)

	case message.OpenConnectionRequest2:
		return l.handleOpenConnectionRequest2(m, addr)
	}
	return nil
}

func (l *Listener) statusBytes() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status.Bytes()
}

func (l *Listener) handleOpenConnectionRequest1(m message.OpenConnectionRequest1, rawLen int, addr *net.UDPAddr) error {
	serverMTU := rawLen + protocol.UDPHeaderSize
	if serverMTU > protocol.MaxMTUSize {
		serverMTU = protocol.MaxMTUSize
	}
	if serverMTU < protocol.MinHandshakeMTUSize {
		serverMTU = protocol.MinHandshakeMTUSize
	}

	if m.ProtocolVersion != protocol.ProtocolVersion {
		return l.writeTo(addr, message.IncompatibleProtocolVersion{
			ServerProtocol: protocol.ProtocolVersion,
			ServerGUID:     int64(l.guid),
		})
	}

	if err := l.writeTo(addr, message.OpenConnectionReply1{
		ServerGUID: int64(l.guid),
		Secure:     false,
		ServerMTU:  uint16(serverMTU),
	}); err != nil {
		return err
	}

	l.bus.Publish(events.Event{Kind: events.ConnectionRequest, Addr: addr})
	return nil
}

func (l *Listener) handleOpenConnectionRequest2(m message.OpenConnectionRequest2, addr *net.UDPAddr) error {
	mtu := m.ClientMTU
	if mtu > protocol.MaxMTUSize {
		mtu = protocol.MaxMTUSize
	}
	if mtu < protocol.MinHandshakeMTUSize {
		mtu = protocol.MinHandshakeMTUSize
	}

	if err := l.writeTo(addr, message.OpenConnectionReply2{
		ServerGUID:    int64(l.guid),
		ClientAddress: addr,
		MTUSize:       mtu,
		Secure:        false,
	}); err != nil {
		return err
	}

	key := addr.String()

	l.mu.Lock()
	handle := l.nextHandle
	l.nextHandle++
	s := stream.New(addr, mtu, uint64(m.ClientGUID), l.conn, l.bus, handle)
	s.OnRetransmit = l.metric.Retransmits.Inc
	l.connections[key] = s
	l.handles[handle] = s
	l.mu.Unlock()

	l.metric.ConnectionsActive.Inc()
	l.metric.ConnectionsTotal.Inc()
	l.log.WithField("addr", key).WithField("handle", handle).Info("listener: connection established")
	return nil
}

func (l *Listener) writeTo(addr *net.UDPAddr, m message.Message) error {
	_, err := l.conn.WriteToUDP(message.Encode(m), addr)
	return err
}
