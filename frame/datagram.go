package frame

import (
	"fmt"

	"raknet-core/binary"
	"raknet-core/protocol"
)

// Datagram flag bits, packed into the first byte of every outbound
// UDP payload.
const (
	FlagDatagram    = 0x80
	FlagAck         = 0x40
	FlagNack        = 0x20
	FlagNeedsBAndAS = 0x04
)

// Datagram is a sequence-numbered batch of frames.
type Datagram struct {
	SequenceNumber uint32
	Frames         []*Frame
}

// Encode writes the 4-byte datagram prefix followed by each frame.
func (d *Datagram) Encode(w *binary.Writer) {
	w.U8(FlagDatagram | FlagNeedsBAndAS)
	w.U24(d.SequenceNumber)
	for _, f := range d.Frames {
		f.Encode(w)
	}
}

// DecodeDatagram reads a data-carrying datagram off r. Callers must
// have already checked the flag byte isn't an ACK/NACK receipt — use
// PeekFlag for that.
func DecodeDatagram(r *binary.Reader) (*Datagram, error) {
	flag, err := r.U8()
	if err != nil {
		return nil, err
	}
	if flag&FlagDatagram == 0 {
		return nil, fmt.Errorf("frame: datagram bit not set")
	}
	if flag&(FlagAck|FlagNack) != 0 {
		return nil, fmt.Errorf("frame: expected data datagram, got receipt")
	}

	seq, err := r.U24()
	if err != nil {
		return nil, err
	}

	d := &Datagram{SequenceNumber: seq}
	for count := 0; r.Remaining() > 0; count++ {
		if count >= protocol.MaxBatchedPackets {
			return nil, fmt.Errorf("frame: datagram exceeds %d frames", protocol.MaxBatchedPackets)
		}
		f, err := DecodeFrame(r)
		if err != nil {
			return nil, err
		}
		d.Frames = append(d.Frames, f)
	}
	return d, nil
}

// PeekFlag returns the first byte of buf without consuming it, so
// the decode path can branch on ACK/NACK/data before choosing a
// decoder.
func PeekFlag(buf []byte) (uint8, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("frame: empty datagram")
	}
	return buf[0], nil
}
