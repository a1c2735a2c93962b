// Package frame implements the datagram and frame wire codec: the
// layer between raw UDP payloads and the message package's control
// messages.
package frame

import (
	"fmt"

	"raknet-core/binary"
	"raknet-core/protocol"
)

const fragmentedBit = 0x10

// Frame is one reliability-tagged unit inside a datagram. Which of
// MessageIndex, SequenceIndex, OrderIndex are meaningful depends on
// Reliability; Encode/Decode only read and write the fields the
// reliability class requires.
type Frame struct {
	Reliability protocol.Reliability
	Content     []byte

	MessageIndex  uint32
	SequenceIndex uint32
	OrderIndex    uint32
	OrderChannel  uint8

	Fragmented bool
	SplitCount uint32
	SplitID    uint16
	SplitIndex uint32
}

// Encode appends the frame's header and content to w.
func (f *Frame) Encode(w *binary.Writer) {
	header := uint8(f.Reliability) << 5
	if f.Fragmented {
		header |= fragmentedBit
	}
	w.U8(header)
	w.U16(uint16(len(f.Content)) << 3)

	if f.Reliability.Reliable() {
		w.U24(f.MessageIndex)
	}
	if f.Reliability.Sequenced() {
		w.U24(f.SequenceIndex)
	}
	if f.Reliability.SequencedOrOrdered() {
		w.U24(f.OrderIndex)
		w.U8(f.OrderChannel)
	}
	if f.Fragmented {
		w.U32(f.SplitCount)
		w.U16(f.SplitID)
		w.U32(f.SplitIndex)
	}
	w.Raw(f.Content)
}

// Size returns the number of bytes Encode would write for f, used by
// the reliability engine to decide whether a frame still fits in the
// current datagram buffer.
func (f *Frame) Size() int {
	size := 3 // header byte + 16-bit length
	if f.Reliability.Reliable() {
		size += 3
	}
	if f.Reliability.Sequenced() {
		size += 3
	}
	if f.Reliability.SequencedOrOrdered() {
		size += 4
	}
	if f.Fragmented {
		size += 10
	}
	return size + len(f.Content)
}

// DecodeFrame reads one frame off r. It returns an error if the
// encoded content length is zero.
func DecodeFrame(r *binary.Reader) (*Frame, error) {
	header, err := r.U8()
	if err != nil {
		return nil, err
	}

	f := &Frame{
		Reliability: protocol.Reliability(header >> 5),
		Fragmented:  header&fragmentedBit != 0,
	}
	if _, err := protocol.ParseReliability(uint8(f.Reliability)); err != nil {
		return nil, err
	}

	bitLen, err := r.U16()
	if err != nil {
		return nil, err
	}
	if bitLen == 0 {
		return nil, fmt.Errorf("frame: zero-length content")
	}
	byteLen := int(bitLen >> 3)

	if f.Reliability.Reliable() {
		if f.MessageIndex, err = r.U24(); err != nil {
			return nil, err
		}
	}
	if f.Reliability.Sequenced() {
		if f.SequenceIndex, err = r.U24(); err != nil {
			return nil, err
		}
	}
	if f.Reliability.SequencedOrOrdered() {
		if f.OrderIndex, err = r.U24(); err != nil {
			return nil, err
		}
		if f.OrderChannel, err = r.U8(); err != nil {
			return nil, err
		}
	}
	if f.Fragmented {
		if f.SplitCount, err = r.U32(); err != nil {
			return nil, err
		}
		if f.SplitID, err = r.U16(); err != nil {
			return nil, err
		}
		if f.SplitIndex, err = r.U32(); err != nil {
			return nil, err
		}
	}

	content, err := r.Bytes(byteLen)
	if err != nil {
		return nil, err
	}
	f.Content = content
	return f, nil
}
