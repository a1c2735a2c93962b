// Package events carries the typed notifications the reliability core
// emits to its host and the commands the host sends back, fanned out
// through a register/trigger bus keyed by event kind.
package events

import (
	"net"
	"time"
)

// Kind identifies which event variant an Event carries.
type Kind int

const (
	ConnectionRequest Kind = iota
	ConnectionEstablished
	IncomingBatch
	Disconnect
	Blocked
	Ping
	Latency
	IncompatibleProtocol
)

func (k Kind) String() string {
	switch k {
	case ConnectionRequest:
		return "ConnectionRequest"
	case ConnectionEstablished:
		return "ConnectionEstablished"
	case IncomingBatch:
		return "IncomingBatch"
	case Disconnect:
		return "Disconnect"
	case Blocked:
		return "Blocked"
	case Ping:
		return "Ping"
	case Latency:
		return "Latency"
	case IncompatibleProtocol:
		return "IncompatibleProtocol"
	default:
		return "Unknown"
	}
}

// DisconnectReason explains why a connection was or is being torn
// down.
type DisconnectReason int

const (
	IncompatibleProtocolVersion DisconnectReason = iota
	ClientDisconnect
	ServerDisconnect
	ClientTimeout
	ServerShutdown
	DuplicateLogin
)

func (r DisconnectReason) String() string {
	switch r {
	case IncompatibleProtocolVersion:
		return "IncompatibleProtocol"
	case ClientDisconnect:
		return "ClientDisconnect"
	case ServerDisconnect:
		return "ServerDisconnect"
	case ClientTimeout:
		return "ClientTimeout"
	case ServerShutdown:
		return "ServerShutdown"
	case DuplicateLogin:
		return "DuplicateLogin"
	default:
		return "Unknown"
	}
}

// BlockReason explains why an address was added to the listener's
// blocklist.
type BlockReason int

const (
	PacketSpam BlockReason = iota
	MalformedPackets
)

func (r BlockReason) String() string {
	if r == PacketSpam {
		return "PacketSpam"
	}
	return "MalformedPackets"
}

// Handle identifies a connection to event consumers without exposing
// the stream package's internal state.
type Handle uint64

// Event is one notification emitted to the host. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind Kind

	Addr   *net.UDPAddr
	Handle Handle

	Payload         []byte
	DisconnectCause DisconnectReason
	BlockCause      BlockReason
	BlockDuration   time.Duration
	Latency         time.Duration
	ServerProtocol  uint8
}

// Handler receives events published through a Bus.
type Handler func(Event)

// Bus fans published events out to every registered handler for that
// event's Kind.
type Bus struct {
	handlers map[Kind][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers handler to be called for every future event of
// kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish delivers ev synchronously to every handler subscribed to
// its Kind.
func (b *Bus) Publish(ev Event) {
	for _, h := range b.handlers[ev.Kind] {
		h(ev)
	}
}
