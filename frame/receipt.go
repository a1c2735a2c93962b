package frame

import (
	"fmt"
	"sort"

	"raknet-core/binary"
)

const (
	recordRange  = 0
	recordSingle = 1
)

// ReceiptList is the ACK or NACK payload: a set of datagram sequence
// numbers the sender run-length encodes as ranges where possible.
type ReceiptList struct {
	Sequences []uint32
}

// Encode sorts Sequences ascending and writes them as a minimal set of
// single/range records.
func (l *ReceiptList) Encode(w *binary.Writer) {
	seqs := append([]uint32(nil), l.Sequences...)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	type record struct {
		start, end uint32
	}
	var records []record
	for _, s := range seqs {
		if n := len(records); n > 0 && records[n-1].end+1 == s {
			records[n-1].end = s
			continue
		}
		records = append(records, record{start: s, end: s})
	}

	w.U16(uint16(len(records)))
	for _, rec := range records {
		if rec.start == rec.end {
			w.U8(recordSingle)
			w.U24(rec.start)
		} else {
			w.U8(recordRange)
			w.U24(rec.start)
			w.U24(rec.end)
		}
	}
}

// DecodeReceiptList reads an ACK/NACK record list off r.
func DecodeReceiptList(r *binary.Reader) (*ReceiptList, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}

	l := &ReceiptList{}
	for i := uint16(0); i < count; i++ {
		kind, err := r.U8()
		if err != nil {
			return nil, err
		}
		switch kind {
		case recordSingle:
			seq, err := r.U24()
			if err != nil {
				return nil, err
			}
			l.Sequences = append(l.Sequences, seq)
		case recordRange:
			start, err := r.U24()
			if err != nil {
				return nil, err
			}
			end, err := r.U24()
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("frame: receipt range end %d before start %d", end, start)
			}
			for seq := start; seq <= end; seq++ {
				l.Sequences = append(l.Sequences, seq)
			}
		default:
			return nil, fmt.Errorf("frame: unknown receipt record type %d", kind)
		}
	}
	return l, nil
}

// EncodeAck writes a standalone ACK datagram for seqs.
func EncodeAck(seqs []uint32) []byte {
	w := binary.NewWriter()
	w.U8(FlagDatagram | FlagAck)
	(&ReceiptList{Sequences: seqs}).Encode(w)
	return w.Bytes()
}

// EncodeNack writes a standalone NACK datagram for seqs.
func EncodeNack(seqs []uint32) []byte {
	w := binary.NewWriter()
	w.U8(FlagDatagram | FlagNack)
	(&ReceiptList{Sequences: seqs}).Encode(w)
	return w.Bytes()
}
