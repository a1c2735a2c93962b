package message

import (
	"bytes"
	"net"
	"testing"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	got, err := Decode(Encode(m))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return got
}

func TestUnconnectedPingRoundTrip(t *testing.T) {
	want := UnconnectedPing{SendTimestamp: 123456, ClientGUID: 987654321}
	got, ok := roundTrip(t, want).(UnconnectedPing)
	if !ok {
		t.Fatalf("Decode() returned %T, want UnconnectedPing", got)
	}
	if got != want {
		t.Errorf("roundtrip = %+v, want %+v", got, want)
	}
}

func TestOpenConnectionRequest1RoundTrip(t *testing.T) {
	want := OpenConnectionRequest1{ProtocolVersion: 11, PaddingLength: 20}
	got, ok := roundTrip(t, want).(OpenConnectionRequest1)
	if !ok {
		t.Fatalf("Decode() returned %T, want OpenConnectionRequest1", got)
	}
	if got.ProtocolVersion != want.ProtocolVersion {
		t.Errorf("ProtocolVersion = %d, want %d", got.ProtocolVersion, want.ProtocolVersion)
	}
	if got.PaddingLength != want.PaddingLength {
		t.Errorf("PaddingLength = %d, want %d", got.PaddingLength, want.PaddingLength)
	}
}

func TestOpenConnectionRequest2RoundTripIPv4(t *testing.T) {
	want := OpenConnectionRequest2{
		ServerAddress: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19132},
		ClientMTU:     1400,
		ClientGUID:    42,
	}
	got, ok := roundTrip(t, want).(OpenConnectionRequest2)
	if !ok {
		t.Fatalf("Decode() returned %T, want OpenConnectionRequest2", got)
	}
	if !got.ServerAddress.IP.Equal(want.ServerAddress.IP) || got.ServerAddress.Port != want.ServerAddress.Port {
		t.Errorf("ServerAddress = %v, want %v", got.ServerAddress, want.ServerAddress)
	}
	if got.ClientMTU != want.ClientMTU || got.ClientGUID != want.ClientGUID {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestConnectionRequestAcceptedRoundTrip(t *testing.T) {
	want := ConnectionRequestAccepted{
		ClientAddress:    &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 7000},
		RequestTimestamp: 111,
		AcceptTimestamp:  222,
	}
	got, ok := roundTrip(t, want).(ConnectionRequestAccepted)
	if !ok {
		t.Fatalf("Decode() returned %T, want ConnectionRequestAccepted", got)
	}
	if got.RequestTimestamp != want.RequestTimestamp || got.AcceptTimestamp != want.AcceptTimestamp {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestDisconnectNotificationRoundTrip(t *testing.T) {
	got, ok := roundTrip(t, DisconnectNotification{}).(DisconnectNotification)
	if !ok {
		t.Fatalf("Decode() returned %T, want DisconnectNotification", got)
	}
	_ = got
}

func TestGamePacketRoundTrip(t *testing.T) {
	want := GamePacket{Data: []byte{1, 2, 3, 4}}
	got, ok := roundTrip(t, want).(GamePacket)
	if !ok {
		t.Fatalf("Decode() returned %T, want GamePacket", got)
	}
	if string(got.Data) != string(want.Data) {
		t.Errorf("Data = %v, want %v", got.Data, want.Data)
	}
}

func TestDecodeUnknownIDFails(t *testing.T) {
	if _, err := Decode([]byte{0x7c}); err == nil {
		t.Error("expected error decoding unknown id, got nil")
	}
}

func TestUnconnectedPongWireLayout(t *testing.T) {
	m := UnconnectedPong{SendTimestamp: 42, ServerGUID: 0x1111, Data: []byte("MCPE;x;")}
	got := Encode(m)

	want := []byte{0x1c,
		0, 0, 0, 0, 0, 0, 0, 42,
		0, 0, 0, 0, 0, 0, 0x11, 0x11,
		0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
		0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
		0, 7, 'M', 'C', 'P', 'E', ';', 'x', ';',
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestUnconnectedPongRoundTrip(t *testing.T) {
	want := UnconnectedPong{SendTimestamp: 7, ServerGUID: 9, Data: []byte("MCPE;motd;")}
	got, ok := roundTrip(t, want).(UnconnectedPong)
	if !ok {
		t.Fatalf("Decode() returned %T, want UnconnectedPong", got)
	}
	if got.SendTimestamp != want.SendTimestamp || got.ServerGUID != want.ServerGUID || string(got.Data) != string(want.Data) {
		t.Errorf("roundtrip = %+v, want %+v", got, want)
	}
}
