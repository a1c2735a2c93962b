// Package stream implements the reliability engine: the per-connection
// encode/decode pipeline that turns outgoing messages into frames and
// datagrams, and turns incoming datagrams back into messages, acks,
// and host-facing events. It is a focused engine built on the window
// package's windows rather than a single combined session struct.
package stream

import (
	"fmt"
	"net"
	"sync"
	"time"

	"raknet-core/binary"
	"raknet-core/events"
	"raknet-core/frame"
	"raknet-core/message"
	"raknet-core/protocol"
	"raknet-core/window"
)

// Socket is the subset of *net.UDPConn the engine needs to send.
// Sharing this interface (rather than the listener handing over
// exclusive ownership of the conn) is what lets both the listener and
// every Stream send from the same underlying socket.
type Socket interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// Stream is one established connection's reliability state.
type Stream struct {
	Addr *net.UDPAddr
	MTU  uint16
	GUID uint64

	// OnRetransmit, when set, is called once per datagram resent in
	// response to a NACK.
	OnRetransmit func()

	socket Socket
	bus    *events.Bus
	handle events.Handle

	// mu protects all mutable state below. The listener's read loop,
	// its flush/sweep tickers, and host command dispatch all reach
	// this stream from different goroutines.
	mu sync.Mutex

	messageIndex   uint32
	sequenceNumber uint32
	sequenceIndex  uint32
	orderIndex     uint32
	splitID        uint16

	buffer     []*frame.Frame
	bufferSize int

	recovery     *window.RecoveryWindow
	seqWindow    *window.SequenceWindow
	msgWindow    *window.MessageWindow
	splitWindows map[uint16]*window.SplitWindow

	lastActivity time.Time
}

// New constructs a Stream for a freshly handshaked connection.
func New(addr *net.UDPAddr, mtu uint16, guid uint64, socket Socket, bus *events.Bus, handle events.Handle) *Stream {
	return &Stream{
		Addr:         addr,
		MTU:          mtu,
		GUID:         guid,
		socket:       socket,
		bus:          bus,
		handle:       handle,
		recovery:     window.NewRecoveryWindow(),
		seqWindow:    window.NewSequenceWindow(),
		msgWindow:    window.NewMessageWindow(),
		splitWindows: make(map[uint16]*window.SplitWindow),
		lastActivity: time.Now(),
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (s *Stream) maxFragmentSize() int {
	return int(s.MTU) - protocol.UDPHeaderSize - protocol.DatagramHeaderSize - protocol.FrameHeaderSize
}

func (s *Stream) maxDatagramBody() int {
	return int(s.MTU) - protocol.UDPHeaderSize - protocol.DatagramHeaderSize
}

// Send encodes msg under reliability, splitting into fragments if
// needed, and appends the resulting frames to the outgoing buffer.
func (s *Stream) Send(msg message.Message, reliability protocol.Reliability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(msg, reliability)
}

// send is Send without the lock, for use on paths that already hold
// mu (replies issued from inside Receive).
func (s *Stream) send(msg message.Message, reliability protocol.Reliability) error {
	payload := message.Encode(msg)

	max := s.maxFragmentSize()
	var fragments [][]byte
	if len(payload) > max {
		max -= protocol.FrameAdditionalSize
		fragments = splitPayload(payload, max)
	} else {
		fragments = [][]byte{payload}
	}

	orderIndex := s.orderIndex
	s.orderIndex++

	var splitID uint16
	fragmented := len(fragments) > 1
	if fragmented {
		splitID = s.splitID
		s.splitID++
	}

	for i, content := range fragments {
		f := &frame.Frame{
			Reliability:  reliability,
			Content:      content,
			OrderIndex:   orderIndex,
			OrderChannel: 0,
		}
		if reliability.Reliable() {
			f.MessageIndex = s.messageIndex
			s.messageIndex++
		}
		if reliability.Sequenced() {
			f.SequenceIndex = s.sequenceIndex
			s.sequenceIndex++
		}
		if fragmented {
			f.Fragmented = true
			f.SplitCount = uint32(len(fragments))
			f.SplitID = splitID
			f.SplitIndex = uint32(i)
		}
		if err := s.appendFrame(f, reliability); err != nil {
			return err
		}
	}
	return nil
}

func splitPayload(payload []byte, chunk int) [][]byte {
	var out [][]byte
	for len(payload) > 0 {
		n := chunk
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}

func (s *Stream) appendFrame(f *frame.Frame, reliability protocol.Reliability) error {
	if s.bufferSize+f.Size() > s.maxDatagramBody() {
		if err := s.flush(); err != nil {
			return err
		}
	}
	s.buffer = append(s.buffer, f)
	s.bufferSize += f.Size()

	if reliability != protocol.ReliableOrdered {
		return s.flush()
	}
	return nil
}

// flush sends the current buffer as one datagram under a freshly
// allocated sequence number and registers it with the recovery window.
func (s *Stream) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	seq := s.sequenceNumber
	s.sequenceNumber++

	d := &frame.Datagram{SequenceNumber: seq, Frames: s.buffer}
	w := binary.NewWriter()
	d.Encode(w)
	encoded := w.Bytes()

	s.recovery.Add(seq, encoded)
	if _, err := s.socket.WriteToUDP(encoded, s.Addr); err != nil {
		return fmt.Errorf("stream: send failed: %w", err)
	}

	s.buffer = nil
	s.bufferSize = 0
	return nil
}

// DatagramFlush is the periodic datagram-flush driver:
// it sends whatever is buffered even if nothing forced an immediate
// flush.
func (s *Stream) DatagramFlush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// AckFlush is the periodic ack-flush driver: it advances the sequence
// window and sends one ACK and/or one NACK receipt covering the
// current tick's activity.
func (s *Stream) AckFlush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqWindow.Shift()

	if acks := s.seqWindow.Acks(); len(acks) > 0 {
		if _, err := s.socket.WriteToUDP(frame.EncodeAck(acks), s.Addr); err != nil {
			return fmt.Errorf("stream: ack send failed: %w", err)
		}
	}
	if nacks := s.seqWindow.Nacks(); len(nacks) > 0 {
		if _, err := s.socket.WriteToUDP(frame.EncodeNack(nacks), s.Addr); err != nil {
			return fmt.Errorf("stream: nack send failed: %w", err)
		}
	}

	s.seqWindow.Clear()
	return nil
}

// TimedOut reports whether this connection has been silent for longer
// than timeout.
func (s *Stream) TimedOut(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > timeout
}

// GracefulDisconnect sends DisconnectNotification and flushes
// immediately, bypassing the usual batching so the peer is notified
// before this connection is torn down.
func (s *Stream) GracefulDisconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(message.DisconnectNotification{}, protocol.ReliableOrdered); err != nil {
		return err
	}
	return s.flush()
}
