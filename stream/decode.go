package stream

import (
	"fmt"
	"time"

	"raknet-core/binary"
	"raknet-core/events"
	"raknet-core/frame"
	"raknet-core/message"
	"raknet-core/protocol"
	"raknet-core/window"
)

// Receive processes one ingress UDP payload already routed to this
// connection.
func (s *Stream) Receive(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flag, err := frame.PeekFlag(buf)
	if err != nil {
		return err
	}
	if flag&frame.FlagDatagram == 0 {
		return fmt.Errorf("stream: datagram bit not set")
	}
	s.lastActivity = time.Now()

	switch {
	case flag&frame.FlagAck != 0:
		return s.handleAck(buf)
	case flag&frame.FlagNack != 0:
		return s.handleNack(buf)
	default:
		return s.handleDatagram(buf)
	}
}

func (s *Stream) handleAck(buf []byte) error {
	r := binary.NewReader(buf[1:])
	list, err := frame.DecodeReceiptList(r)
	if err != nil {
		return err
	}
	for _, seq := range list.Sequences {
		s.recovery.Acknowledge(seq)
	}
	s.bus.Publish(events.Event{Kind: events.Latency, Handle: s.handle, Latency: s.recovery.RTT()})
	return nil
}

func (s *Stream) handleNack(buf []byte) error {
	r := binary.NewReader(buf[1:])
	list, err := frame.DecodeReceiptList(r)
	if err != nil {
		return err
	}
	for _, seq := range list.Sequences {
		data, ok := s.recovery.Retransmit(seq)
		if !ok {
			continue
		}
		newSeq := s.sequenceNumber
		s.sequenceNumber++

		patched := patchSequence(data, newSeq)
		if _, err := s.socket.WriteToUDP(patched, s.Addr); err != nil {
			return fmt.Errorf("stream: retransmit failed: %w", err)
		}
		s.recovery.Add(newSeq, patched)
		if s.OnRetransmit != nil {
			s.OnRetransmit()
		}
	}
	return nil
}

// patchSequence rewrites the little-endian 24-bit sequence number at
// bytes[1:4] of an already-encoded datagram, letting a retransmit
// reuse its payload under a fresh sequence number.
func patchSequence(data []byte, seq uint32) []byte {
	out := append([]byte(nil), data...)
	out[1] = byte(seq)
	out[2] = byte(seq >> 8)
	out[3] = byte(seq >> 16)
	return out
}

func (s *Stream) handleDatagram(buf []byte) error {
	r := binary.NewReader(buf[1:])
	seq, err := r.U24()
	if err != nil {
		return err
	}
	if !s.seqWindow.Receive(seq) {
		return nil
	}

	for count := 0; r.Remaining() > 0; count++ {
		if count >= protocol.MaxBatchedPackets {
			return fmt.Errorf("stream: datagram exceeds %d frames", protocol.MaxBatchedPackets)
		}
		f, err := frame.DecodeFrame(r)
		if err != nil {
			return err
		}
		if err := s.handleFrame(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) handleFrame(f *frame.Frame) error {
	if f.Reliability.Reliable() {
		if !s.msgWindow.Receive(f.MessageIndex) {
			return nil
		}
	}

	if !f.Fragmented {
		return s.dispatch(f.Content)
	}

	sw, ok := s.splitWindows[f.SplitID]
	if !ok {
		if f.SplitCount > protocol.MaxSplitPackets {
			return fmt.Errorf("stream: split count %d exceeds max %d", f.SplitCount, protocol.MaxSplitPackets)
		}
		sw = window.NewSplitWindow(f.SplitCount)
		s.splitWindows[f.SplitID] = sw
	} else if sw.Count != f.SplitCount {
		return fmt.Errorf("stream: split count mismatch for split id %d", f.SplitID)
	}

	payload := sw.Receive(f.SplitIndex, f.Content)
	if payload == nil {
		return nil
	}
	delete(s.splitWindows, f.SplitID)
	return s.dispatch(payload)
}

func (s *Stream) dispatch(payload []byte) error {
	msg, err := message.Decode(payload)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case message.ConnectedPing:
		return s.send(message.ConnectedPong{ClientTimestamp: m.ClientTimestamp, ServerTimestamp: nowMillis()}, protocol.Unreliable)

	case message.ConnectedPong:
		latency := time.Duration(m.ServerTimestamp-m.ClientTimestamp) * time.Millisecond
		s.bus.Publish(events.Event{Kind: events.Ping, Handle: s.handle, Latency: latency})

	case message.ConnectionRequest:
		return s.send(message.ConnectionRequestAccepted{
			ClientAddress:    s.Addr,
			RequestTimestamp: m.RequestTimestamp,
			AcceptTimestamp:  nowMillis(),
		}, protocol.ReliableOrdered)

	case message.ConnectionRequestAccepted:
		if err := s.send(message.NewIncomingConnection{
			ServerAddress:    s.Addr,
			RequestTimestamp: m.RequestTimestamp,
			AcceptTimestamp:  m.AcceptTimestamp,
		}, protocol.ReliableOrdered); err != nil {
			return err
		}
		s.bus.Publish(events.Event{Kind: events.ConnectionEstablished, Handle: s.handle, Addr: s.Addr})

	case message.NewIncomingConnection:
		s.bus.Publish(events.Event{Kind: events.ConnectionEstablished, Handle: s.handle, Addr: s.Addr})

	case message.GamePacket:
		s.bus.Publish(events.Event{Kind: events.IncomingBatch, Handle: s.handle, Payload: m.Data})

	case message.DisconnectNotification:
		s.bus.Publish(events.Event{Kind: events.Disconnect, Handle: s.handle, DisconnectCause: events.ClientDisconnect})

	case message.DetectLostConnections:
		return s.send(message.ConnectedPing{ClientTimestamp: nowMillis()}, protocol.Unreliable)

	case message.IncompatibleProtocolVersion:
		s.bus.Publish(events.Event{Kind: events.IncompatibleProtocol, Handle: s.handle, ServerProtocol: m.ServerProtocol})
	}
	return nil
}
