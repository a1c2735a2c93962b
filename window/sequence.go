// Package window implements the per-connection receive and recovery
// windows the reliability engine consults on every datagram: the
// sequence/message de-dup windows, the split reassembly window, and
// the recovery window backing retransmission and RTT estimation.
package window

import (
	"github.com/bits-and-blooms/bitset"

	"raknet-core/protocol"
)

// SequenceWindow tracks which datagram sequence numbers have been
// seen, accumulating ack/nack sets until the ack-flush timer drains
// them.
type SequenceWindow struct {
	Start, End, Highest uint32

	acks  *bitset.BitSet
	nacks *bitset.BitSet
}

func NewSequenceWindow() *SequenceWindow {
	return &SequenceWindow{
		End:   protocol.WindowSize,
		acks:  &bitset.BitSet{},
		nacks: &bitset.BitSet{},
	}
}

// Receive records seq as acknowledged, sliding the window forward
// over any run of consecutive acked indices starting at Start. It
// returns false for sequences outside [Start, End) or already acked.
func (w *SequenceWindow) Receive(seq uint32) bool {
	if seq < w.Start || seq >= w.End || w.acks.Test(uint(seq)) {
		return false
	}

	w.nacks.Clear(uint(seq))
	w.acks.Set(uint(seq))

	if seq > w.Highest {
		w.Highest = seq
	}

	if seq == w.Start {
		for i := w.Start; i < w.End; i++ {
			if !w.acks.Test(uint(i)) {
				break
			}
			w.Start++
			w.End++
		}
	} else {
		for i := w.Start; i < seq; i++ {
			if !w.acks.Test(uint(i)) {
				w.nacks.Set(uint(i))
			}
		}
	}

	return true
}

// Shift advances the window past Highest, closing out the current
// ack epoch. Called once per ack-flush tick, before the tick's
// acks/nacks are read out and cleared. A tick with no activity leaves
// the window where it is.
func (w *SequenceWindow) Shift() {
	if w.acks.Count() == 0 && w.nacks.Count() == 0 {
		return
	}
	if next := w.Highest + 1; next > w.Start {
		w.Start = next
		w.End = w.Start + protocol.WindowSize
	}
}

// Acks returns the currently accumulated acknowledged sequence
// numbers in ascending order.
func (w *SequenceWindow) Acks() []uint32 {
	return setBits(w.acks)
}

// Nacks returns the currently accumulated missing sequence numbers in
// ascending order.
func (w *SequenceWindow) Nacks() []uint32 {
	return setBits(w.nacks)
}

// Clear drops the accumulated ack/nack sets, called at the end of
// every ack-flush tick once their receipts have been sent.
func (w *SequenceWindow) Clear() {
	w.acks.ClearAll()
	w.nacks.ClearAll()
}

// setBits returns the indices of every set bit in ascending order,
// which NextSet already yields.
func setBits(b *bitset.BitSet) []uint32 {
	out := make([]uint32, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		out = append(out, uint32(i))
	}
	return out
}
