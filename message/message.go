package message

import (
	"fmt"
	"net"

	"raknet-core/binary"
)

// Message is any of the offline or online RakNet messages this core
// understands. Its Encode method writes only the message's fields; the
// package-level Encode prepends the ID byte. Neither writes a length
// prefix, since the frame/datagram layer already knows the payload
// length.
type Message interface {
	ID() ID
	Encode(w *binary.Writer)
}

// Encode serializes m into a freshly allocated buffer.
func Encode(m Message) []byte {
	w := binary.NewWriter()
	w.U8(uint8(m.ID()))
	m.Encode(w)
	return w.Bytes()
}

// Decode reads the ID byte off buf and dispatches to the matching
// message's decoder. It returns an error for unknown IDs rather than
// silently dropping the message, so callers can log and count them
// toward the invalid-message rate limit.
func Decode(buf []byte) (Message, error) {
	r := binary.NewReader(buf)
	id, err := r.U8()
	if err != nil {
		return nil, err
	}

	decode, ok := decoders[ID(id)]
	if !ok {
		return nil, fmt.Errorf("message: unknown id 0x%02x", id)
	}
	return decode(r)
}

var decoders = map[ID]func(*binary.Reader) (Message, error){
	IDConnectedPing:               decodeConnectedPing,
	IDUnconnectedPing:             decodeUnconnectedPing,
	IDUnconnectedPingOpenConns:    decodeUnconnectedPingOpenConnections,
	IDConnectedPong:               decodeConnectedPong,
	IDDetectLostConnections:       decodeDetectLostConnections,
	IDOpenConnectionRequest1:      decodeOpenConnectionRequest1,
	IDOpenConnectionReply1:        decodeOpenConnectionReply1,
	IDOpenConnectionRequest2:      decodeOpenConnectionRequest2,
	IDOpenConnectionReply2:        decodeOpenConnectionReply2,
	IDConnectionRequest:           decodeConnectionRequest,
	IDConnectionRequestAccepted:   decodeConnectionRequestAccepted,
	IDNewIncomingConnection:       decodeNewIncomingConnection,
	IDDisconnectNotification:      decodeDisconnectNotification,
	IDIncompatibleProtocolVersion: decodeIncompatibleProtocolVersion,
	IDUnconnectedPong:             decodeUnconnectedPong,
	IDGamePacket:                  decodeGamePacket,
}

// UnconnectedPing is the client's broadcast discovery probe.
type UnconnectedPing struct {
	SendTimestamp int64
	ClientGUID    int64
}

func (UnconnectedPing) ID() ID { return IDUnconnectedPing }

func (m UnconnectedPing) Encode(w *binary.Writer) {
	w.I64(m.SendTimestamp)
	w.Magic()
	w.I64(m.ClientGUID)
}

func decodeUnconnectedPing(r *binary.Reader) (Message, error) {
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	if err := r.Magic(); err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	return UnconnectedPing{SendTimestamp: ts, ClientGUID: guid}, nil
}

// UnconnectedPingOpenConnections is identical on the wire to
// UnconnectedPing; RakNet keeps it a distinct ID so servers can choose
// to answer pings only while still accepting connections.
type UnconnectedPingOpenConnections struct {
	SendTimestamp int64
	ClientGUID    int64
}

func (UnconnectedPingOpenConnections) ID() ID { return IDUnconnectedPingOpenConns }

func (m UnconnectedPingOpenConnections) Encode(w *binary.Writer) {
	w.I64(m.SendTimestamp)
	w.Magic()
	w.I64(m.ClientGUID)
}

func decodeUnconnectedPingOpenConnections(r *binary.Reader) (Message, error) {
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	if err := r.Magic(); err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	return UnconnectedPingOpenConnections{SendTimestamp: ts, ClientGUID: guid}, nil
}

// UnconnectedPong answers a ping with the server's GUID and its
// length-prefixed MOTD string (the status package's output, opaque to
// this package).
type UnconnectedPong struct {
	SendTimestamp int64
	ServerGUID    int64
	Data          []byte
}

func (UnconnectedPong) ID() ID { return IDUnconnectedPong }

func (m UnconnectedPong) Encode(w *binary.Writer) {
	w.I64(m.SendTimestamp)
	w.I64(m.ServerGUID)
	w.Magic()
	w.String(string(m.Data))
}

func decodeUnconnectedPong(r *binary.Reader) (Message, error) {
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	if err := r.Magic(); err != nil {
		return nil, err
	}
	data, err := r.String()
	if err != nil {
		return nil, err
	}
	return UnconnectedPong{SendTimestamp: ts, ServerGUID: guid, Data: []byte(data)}, nil
}

// OpenConnectionRequest1 carries the client's probed protocol version
// and a padding buffer whose length drives MTU discovery: the client
// shrinks it on each retry until it gets a reply.
type OpenConnectionRequest1 struct {
	ProtocolVersion uint8
	PaddingLength   int
}

func (OpenConnectionRequest1) ID() ID { return IDOpenConnectionRequest1 }

func (m OpenConnectionRequest1) Encode(w *binary.Writer) {
	w.Magic()
	w.U8(m.ProtocolVersion)
	w.Raw(make([]byte, m.PaddingLength))
}

func decodeOpenConnectionRequest1(r *binary.Reader) (Message, error) {
	if err := r.Magic(); err != nil {
		return nil, err
	}
	proto, err := r.U8()
	if err != nil {
		return nil, err
	}
	return OpenConnectionRequest1{ProtocolVersion: proto, PaddingLength: r.Remaining()}, nil
}

// OpenConnectionReply1 answers with the server's GUID and the MTU it
// is willing to negotiate to.
type OpenConnectionReply1 struct {
	ServerGUID int64
	Secure     bool
	ServerMTU  uint16
}

func (OpenConnectionReply1) ID() ID { return IDOpenConnectionReply1 }

func (m OpenConnectionReply1) Encode(w *binary.Writer) {
	w.Magic()
	w.I64(m.ServerGUID)
	w.Bool(m.Secure)
	w.U16(m.ServerMTU)
}

func decodeOpenConnectionReply1(r *binary.Reader) (Message, error) {
	if err := r.Magic(); err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	secure, err := r.Bool()
	if err != nil {
		return nil, err
	}
	mtu, err := r.U16()
	if err != nil {
		return nil, err
	}
	return OpenConnectionReply1{ServerGUID: guid, Secure: secure, ServerMTU: mtu}, nil
}

// OpenConnectionRequest2 finalizes the handshake's address/MTU
// negotiation and carries the client's 64-bit GUID.
type OpenConnectionRequest2 struct {
	ServerAddress *net.UDPAddr
	ClientMTU     uint16
	ClientGUID    int64
}

func (OpenConnectionRequest2) ID() ID { return IDOpenConnectionRequest2 }

func (m OpenConnectionRequest2) Encode(w *binary.Writer) {
	w.Magic()
	w.Address(m.ServerAddress)
	w.U16(m.ClientMTU)
	w.I64(m.ClientGUID)
}

func decodeOpenConnectionRequest2(r *binary.Reader) (Message, error) {
	if err := r.Magic(); err != nil {
		return nil, err
	}
	addr, err := r.Address()
	if err != nil {
		return nil, err
	}
	mtu, err := r.U16()
	if err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	return OpenConnectionRequest2{ServerAddress: addr, ClientMTU: mtu, ClientGUID: guid}, nil
}

// OpenConnectionReply2 confirms the negotiated MTU and echoes the
// client's observed address; after this the client is considered
// connected and switches to the datagram/frame codec.
type OpenConnectionReply2 struct {
	ServerGUID    int64
	ClientAddress *net.UDPAddr
	MTUSize       uint16
	Secure        bool
}

func (OpenConnectionReply2) ID() ID { return IDOpenConnectionReply2 }

func (m OpenConnectionReply2) Encode(w *binary.Writer) {
	w.Magic()
	w.I64(m.ServerGUID)
	w.Address(m.ClientAddress)
	w.U16(m.MTUSize)
	w.Bool(m.Secure)
}

func decodeOpenConnectionReply2(r *binary.Reader) (Message, error) {
	if err := r.Magic(); err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	addr, err := r.Address()
	if err != nil {
		return nil, err
	}
	mtu, err := r.U16()
	if err != nil {
		return nil, err
	}
	secure, err := r.Bool()
	if err != nil {
		return nil, err
	}
	return OpenConnectionReply2{ServerGUID: guid, ClientAddress: addr, MTUSize: mtu, Secure: secure}, nil
}

// IncompatibleProtocolVersion rejects a handshake whose
// OpenConnectionRequest1.ProtocolVersion this server doesn't speak.
type IncompatibleProtocolVersion struct {
	ServerProtocol uint8
	ServerGUID     int64
}

func (IncompatibleProtocolVersion) ID() ID { return IDIncompatibleProtocolVersion }

func (m IncompatibleProtocolVersion) Encode(w *binary.Writer) {
	w.U8(m.ServerProtocol)
	w.Magic()
	w.I64(m.ServerGUID)
}

func decodeIncompatibleProtocolVersion(r *binary.Reader) (Message, error) {
	proto, err := r.U8()
	if err != nil {
		return nil, err
	}
	if err := r.Magic(); err != nil {
		return nil, err
	}
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	return IncompatibleProtocolVersion{ServerProtocol: proto, ServerGUID: guid}, nil
}

// ConnectedPing is the online keep-alive probe, sent periodically over
// an established connection (distinct from the offline
// UnconnectedPing used for discovery).
type ConnectedPing struct {
	ClientTimestamp int64
}

func (ConnectedPing) ID() ID { return IDConnectedPing }

func (m ConnectedPing) Encode(w *binary.Writer) { w.I64(m.ClientTimestamp) }

func decodeConnectedPing(r *binary.Reader) (Message, error) {
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	return ConnectedPing{ClientTimestamp: ts}, nil
}

// ConnectedPong answers ConnectedPing, echoing the client's timestamp
// alongside the server's own; the stream package turns their
// difference into a Ping event's latency.
type ConnectedPong struct {
	ClientTimestamp int64
	ServerTimestamp int64
}

func (ConnectedPong) ID() ID { return IDConnectedPong }

func (m ConnectedPong) Encode(w *binary.Writer) {
	w.I64(m.ClientTimestamp)
	w.I64(m.ServerTimestamp)
}

func decodeConnectedPong(r *binary.Reader) (Message, error) {
	ct, err := r.I64()
	if err != nil {
		return nil, err
	}
	st, err := r.I64()
	if err != nil {
		return nil, err
	}
	return ConnectedPong{ClientTimestamp: ct, ServerTimestamp: st}, nil
}

// ConnectionRequest opens the online handshake once the client has an
// established RakStream (after OpenConnectionReply2).
type ConnectionRequest struct {
	ClientGUID       int64
	RequestTimestamp int64
	Secure           bool
}

func (ConnectionRequest) ID() ID { return IDConnectionRequest }

func (m ConnectionRequest) Encode(w *binary.Writer) {
	w.I64(m.ClientGUID)
	w.I64(m.RequestTimestamp)
	w.Bool(m.Secure)
}

func decodeConnectionRequest(r *binary.Reader) (Message, error) {
	guid, err := r.I64()
	if err != nil {
		return nil, err
	}
	ts, err := r.I64()
	if err != nil {
		return nil, err
	}
	secure, err := r.Bool()
	if err != nil {
		return nil, err
	}
	return ConnectionRequest{ClientGUID: guid, RequestTimestamp: ts, Secure: secure}, nil
}

// ConnectionRequestAccepted completes the server side of the online
// handshake.
type ConnectionRequestAccepted struct {
	ClientAddress    *net.UDPAddr
	RequestTimestamp int64
	AcceptTimestamp  int64
}

func (ConnectionRequestAccepted) ID() ID { return IDConnectionRequestAccepted }

func (m ConnectionRequestAccepted) Encode(w *binary.Writer) {
	w.Address(m.ClientAddress)
	w.SystemAddresses()
	w.I64(m.RequestTimestamp)
	w.I64(m.AcceptTimestamp)
}

func decodeConnectionRequestAccepted(r *binary.Reader) (Message, error) {
	addr, err := r.Address()
	if err != nil {
		return nil, err
	}
	if err := r.SkipSystemAddresses(); err != nil {
		return nil, err
	}
	reqTS, err := r.I64()
	if err != nil {
		return nil, err
	}
	acceptTS, err := r.I64()
	if err != nil {
		return nil, err
	}
	return ConnectionRequestAccepted{ClientAddress: addr, RequestTimestamp: reqTS, AcceptTimestamp: acceptTS}, nil
}

// NewIncomingConnection is the client's acknowledgement of
// ConnectionRequestAccepted; the connection is usable by both sides
// once the server receives it.
type NewIncomingConnection struct {
	ServerAddress    *net.UDPAddr
	RequestTimestamp int64
	AcceptTimestamp  int64
}

func (NewIncomingConnection) ID() ID { return IDNewIncomingConnection }

func (m NewIncomingConnection) Encode(w *binary.Writer) {
	w.Address(m.ServerAddress)
	w.SystemAddresses()
	w.I64(m.RequestTimestamp)
	w.I64(m.AcceptTimestamp)
}

func decodeNewIncomingConnection(r *binary.Reader) (Message, error) {
	addr, err := r.Address()
	if err != nil {
		return nil, err
	}
	if err := r.SkipSystemAddresses(); err != nil {
		return nil, err
	}
	reqTS, err := r.I64()
	if err != nil {
		return nil, err
	}
	acceptTS, err := r.I64()
	if err != nil {
		return nil, err
	}
	return NewIncomingConnection{ServerAddress: addr, RequestTimestamp: reqTS, AcceptTimestamp: acceptTS}, nil
}

// DetectLostConnections is an empty-body keep-alive, sent instead of
// ConnectedPing by peers that don't need the RTT sample.
type DetectLostConnections struct{}

func (DetectLostConnections) ID() ID { return IDDetectLostConnections }
func (DetectLostConnections) Encode(*binary.Writer) {}

func decodeDetectLostConnections(*binary.Reader) (Message, error) {
	return DetectLostConnections{}, nil
}

// DisconnectNotification is an empty-body message telling the peer
// the connection is being torn down immediately, without waiting for
// the idle timeout.
type DisconnectNotification struct{}

func (DisconnectNotification) ID() ID { return IDDisconnectNotification }
func (DisconnectNotification) Encode(*binary.Writer) {}

func decodeDisconnectNotification(*binary.Reader) (Message, error) {
	return DisconnectNotification{}, nil
}

// GamePacket wraps an opaque application payload. This core never
// interprets Data; it only moves it reliably.
type GamePacket struct {
	Data []byte
}

func (GamePacket) ID() ID { return IDGamePacket }

func (m GamePacket) Encode(w *binary.Writer) { w.Raw(m.Data) }

func decodeGamePacket(r *binary.Reader) (Message, error) {
	return GamePacket{Data: r.Tail()}, nil
}
