package stream

import (
	"bytes"
	"net"
	"testing"

	"raknet-core/events"
	"raknet-core/frame"
	"raknet-core/message"
	"raknet-core/protocol"
)

type fakeSocket struct {
	sent [][]byte
}

func (f *fakeSocket) WriteToUDP(b []byte, _ *net.UDPAddr) (int, error) {
	f.sent = append(f.sent, append([]byte(nil), b...))
	return len(b), nil
}

func newTestStream(sock Socket, bus *events.Bus) *Stream {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19132}
	return New(addr, protocol.MaxMTUSize, 1, sock, bus, events.Handle(1))
}

func TestSendUnreliableFlushesImmediately(t *testing.T) {
	sock := &fakeSocket{}
	s := newTestStream(sock, events.NewBus())

	if err := s.Send(message.GamePacket{Data: []byte("hi")}, protocol.Unreliable); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(sock.sent) != 1 {
		t.Fatalf("sent %d datagrams, want 1", len(sock.sent))
	}
}

func TestSendReliableOrderedBatchesUntilDatagramFlush(t *testing.T) {
	sock := &fakeSocket{}
	s := newTestStream(sock, events.NewBus())

	if err := s.Send(message.GamePacket{Data: []byte("a")}, protocol.ReliableOrdered); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(sock.sent) != 0 {
		t.Fatalf("sent %d datagrams before flush, want 0", len(sock.sent))
	}
	if err := s.DatagramFlush(); err != nil {
		t.Fatalf("DatagramFlush() error: %v", err)
	}
	if len(sock.sent) != 1 {
		t.Fatalf("sent %d datagrams after flush, want 1", len(sock.sent))
	}
}

func TestReceiveGamePacketEmitsIncomingBatch(t *testing.T) {
	senderSock := &fakeSocket{}
	sender := newTestStream(senderSock, events.NewBus())
	if err := sender.Send(message.GamePacket{Data: []byte("payload")}, protocol.Unreliable); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	bus := events.NewBus()
	var got events.Event
	bus.Subscribe(events.IncomingBatch, func(e events.Event) { got = e })
	receiver := newTestStream(&fakeSocket{}, bus)

	if err := receiver.Receive(senderSock.sent[0]); err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if string(got.Payload) != "payload" {
		t.Errorf("IncomingBatch payload = %q, want %q", got.Payload, "payload")
	}
}

func TestReceiveFragmentedMessageReassemblesIntoOneBatch(t *testing.T) {
	senderSock := &fakeSocket{}
	sender := newTestStream(senderSock, events.NewBus())
	sender.MTU = protocol.MinHandshakeMTUSize

	big := make([]byte, 5000)
	for i := range big {
		big[i] = byte(i % 256)
	}
	if err := sender.Send(message.GamePacket{Data: big}, protocol.ReliableOrdered); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if err := sender.DatagramFlush(); err != nil {
		t.Fatalf("DatagramFlush() error: %v", err)
	}
	if len(senderSock.sent) < 2 {
		t.Fatalf("sent %d datagrams, want multiple fragments", len(senderSock.sent))
	}

	bus := events.NewBus()
	batches := 0
	var lastPayload []byte
	bus.Subscribe(events.IncomingBatch, func(e events.Event) {
		batches++
		lastPayload = e.Payload
	})
	receiver := newTestStream(&fakeSocket{}, bus)

	for _, datagram := range senderSock.sent {
		if err := receiver.Receive(datagram); err != nil {
			t.Fatalf("Receive() error: %v", err)
		}
	}

	if batches != 1 {
		t.Fatalf("IncomingBatch fired %d times, want exactly 1", batches)
	}
	if len(lastPayload) != len(big) {
		t.Errorf("reassembled payload len = %d, want %d", len(lastPayload), len(big))
	}
}

func TestAckFlushAcknowledgesRecoveryWindow(t *testing.T) {
	senderSock := &fakeSocket{}
	sender := newTestStream(senderSock, events.NewBus())
	if err := sender.Send(message.GamePacket{Data: []byte("x")}, protocol.Reliable); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(senderSock.sent) != 1 {
		t.Fatalf("sent %d datagrams, want 1", len(senderSock.sent))
	}

	receiverSock := &fakeSocket{}
	receiver := newTestStream(receiverSock, events.NewBus())
	if err := receiver.Receive(senderSock.sent[0]); err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if err := receiver.AckFlush(); err != nil {
		t.Fatalf("AckFlush() error: %v", err)
	}
	if len(receiverSock.sent) != 1 {
		t.Fatalf("receiver sent %d receipts, want 1 ACK", len(receiverSock.sent))
	}

	if err := sender.Receive(receiverSock.sent[0]); err != nil {
		t.Fatalf("sender.Receive(ack) error: %v", err)
	}
	if _, ok := sender.recovery.Retransmit(0); ok {
		t.Error("sequence 0 still in recovery window after ack, want acknowledged")
	}
}

func TestNackRetransmitsUnderNewSequenceNumber(t *testing.T) {
	senderSock := &fakeSocket{}
	sender := newTestStream(senderSock, events.NewBus())
	retransmits := 0
	sender.OnRetransmit = func() { retransmits++ }

	if err := sender.Send(message.GamePacket{Data: []byte("lost")}, protocol.Reliable); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(senderSock.sent) != 1 {
		t.Fatalf("sent %d datagrams, want 1", len(senderSock.sent))
	}
	original := senderSock.sent[0]

	if err := sender.Receive(frame.EncodeNack([]uint32{0})); err != nil {
		t.Fatalf("Receive(nack) error: %v", err)
	}
	if len(senderSock.sent) != 2 {
		t.Fatalf("sent %d datagrams after nack, want 2", len(senderSock.sent))
	}
	resent := senderSock.sent[1]

	if got := uint32(resent[1]) | uint32(resent[2])<<8 | uint32(resent[3])<<16; got != 1 {
		t.Errorf("retransmit sequence = %d, want 1", got)
	}
	if !bytes.Equal(resent[4:], original[4:]) {
		t.Error("retransmit body differs from the original frames")
	}
	if retransmits != 1 {
		t.Errorf("OnRetransmit fired %d times, want 1", retransmits)
	}
}
