package listener

import (
	"net"
	"testing"
	"time"

	"raknet-core/config"
	"raknet-core/events"
	"raknet-core/logging"
	"raknet-core/message"
	"raknet-core/metrics"
	"raknet-core/protocol"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestListener(t *testing.T) (*Listener, *net.UDPConn) {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	l, err := New(cfg, events.NewBus(), logging.New("error"), metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	client, err := net.DialUDP("udp", nil, l.LocalAddr())
	if err != nil {
		t.Fatalf("DialUDP() error: %v", err)
	}
	return l, client
}

func roundTrip(t *testing.T, client *net.UDPConn, msg message.Message) message.Message {
	t.Helper()
	if _, err := client.Write(message.Encode(msg)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, protocol.MaxMTUSize)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	reply, err := message.Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return reply
}

func TestUnconnectedPingGetsPong(t *testing.T) {
	l, client := newTestListener(t)
	defer l.Close()
	defer client.Close()
	go l.Serve()
	time.Sleep(10 * time.Millisecond)

	reply := roundTrip(t, client, message.UnconnectedPing{SendTimestamp: 42, ClientGUID: 7})
	pong, ok := reply.(message.UnconnectedPong)
	if !ok {
		t.Fatalf("reply = %T, want UnconnectedPong", reply)
	}
	if pong.SendTimestamp != 42 {
		t.Errorf("SendTimestamp = %d, want 42", pong.SendTimestamp)
	}
	if pong.ServerGUID != int64(l.GUID()) {
		t.Errorf("ServerGUID = %d, want %d", pong.ServerGUID, l.GUID())
	}
}

func TestOpenConnectionHandshakeEstablishesConnection(t *testing.T) {
	l, client := newTestListener(t)
	defer l.Close()
	defer client.Close()
	go l.Serve()
	time.Sleep(10 * time.Millisecond)

	reply1 := roundTrip(t, client, message.OpenConnectionRequest1{
		ProtocolVersion: protocol.ProtocolVersion,
		PaddingLength:   100,
	})
	r1, ok := reply1.(message.OpenConnectionReply1)
	if !ok {
		t.Fatalf("reply1 = %T, want OpenConnectionReply1", reply1)
	}

	reply2 := roundTrip(t, client, message.OpenConnectionRequest2{
		ServerAddress: l.LocalAddr(),
		ClientMTU:     r1.ServerMTU,
		ClientGUID:    99,
	})
	if _, ok := reply2.(message.OpenConnectionReply2); !ok {
		t.Fatalf("reply2 = %T, want OpenConnectionReply2", reply2)
	}

	if n := len(l.snapshotStreams()); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}
}

func TestIncompatibleProtocolVersionIsRejected(t *testing.T) {
	l, client := newTestListener(t)
	defer l.Close()
	defer client.Close()
	go l.Serve()
	time.Sleep(10 * time.Millisecond)

	reply := roundTrip(t, client, message.OpenConnectionRequest1{
		ProtocolVersion: protocol.ProtocolVersion + 1,
		PaddingLength:   10,
	})
	if _, ok := reply.(message.IncompatibleProtocolVersion); !ok {
		t.Fatalf("reply = %T, want IncompatibleProtocolVersion", reply)
	}
}

func TestPacketSpamBlocksAddress(t *testing.T) {
	l, client := newTestListener(t)
	defer l.Close()
	defer client.Close()
	go l.Serve()
	time.Sleep(10 * time.Millisecond)

	var blocked events.Event
	got := false
	l.bus.Subscribe(events.Blocked, func(e events.Event) { blocked = e; got = true })

	for i := 0; i < protocol.MaxMsgsPerSec+1; i++ {
		client.Write(message.Encode(message.UnconnectedPing{SendTimestamp: int64(i), ClientGUID: 1}))
	}
	time.Sleep(50 * time.Millisecond)

	if !got {
		t.Fatal("expected a Blocked event after exceeding the per-second rate limit")
	}
	if blocked.BlockCause != events.PacketSpam {
		t.Errorf("BlockCause = %v, want PacketSpam", blocked.BlockCause)
	}
}
