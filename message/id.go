// Package message implements the offline (unconnected) and online
// (connected) RakNet messages carried as the payload of a frame or of
// a raw unconnected datagram.
package message

// ID is the single byte every message opens with.
type ID uint8

const (
	IDConnectedPing               ID = 0x00
	IDUnconnectedPing             ID = 0x01
	IDUnconnectedPingOpenConns    ID = 0x02
	IDConnectedPong               ID = 0x03
	IDDetectLostConnections       ID = 0x04
	IDOpenConnectionRequest1      ID = 0x05
	IDOpenConnectionReply1        ID = 0x06
	IDOpenConnectionRequest2      ID = 0x07
	IDOpenConnectionReply2        ID = 0x08
	IDConnectionRequest           ID = 0x09
	IDConnectionRequestAccepted   ID = 0x10
	IDNewIncomingConnection       ID = 0x13
	IDDisconnectNotification      ID = 0x15
	IDIncompatibleProtocolVersion ID = 0x19
	IDUnconnectedPong             ID = 0x1c
	IDGamePacket                  ID = 0xfe
)
