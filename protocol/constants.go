// Package protocol carries the constants and the reliability class
// enum shared by every other package in the core: wire sizes, window
// sizes, rate-limit thresholds and timer periods.
package protocol

import "time"

const (
	ProtocolVersion = 11

	MaxMTUSize          = 1500
	MinHandshakeMTUSize = 576 // smallest MTU a handshake is negotiated down to
	UDPHeaderSize        = 28
	DatagramHeaderSize   = 4
	FrameHeaderSize      = 10
	FrameAdditionalSize  = 10

	WindowSize        = 2048
	MaxSplitPackets   = 250
	MaxBatchedPackets = 100

	MaxMsgsPerSec   = 100
	MaxInvalidMsgs  = 20

	SystemAddressCount = 20

	// ClientPaddingDecrease is the step the client-side MTU discovery
	// loop subtracts from its padding size after every unanswered
	// OpenConnectionRequest1.
	ClientPaddingDecrease = 128
)

const (
	RaknetBlockDur     = 10 * time.Second
	RaknetTPS          = 100 * time.Millisecond
	RaknetCheckTimeout = 100 * time.Millisecond

	// RaknetTimeout is the default connection idle timeout. It is
	// configurable through the config package; the tick-sized 100ms
	// figure some servers use is unworkable over a real WAN.
	RaknetTimeout = 10 * time.Second
)

// InternalAddressString is the fixed placeholder address/port RakNet/MCPE
// embeds in SystemAddresses.
const InternalAddressString = "255.255.255.255:19132"
