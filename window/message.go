package window

import (
	"github.com/bits-and-blooms/bitset"

	"raknet-core/protocol"
)

// MessageWindow de-duplicates reliable message indices, delivering
// each at most once regardless of how many times it's retransmitted.
type MessageWindow struct {
	Start, End uint32

	received *bitset.BitSet
}

func NewMessageWindow() *MessageWindow {
	return &MessageWindow{End: protocol.WindowSize, received: &bitset.BitSet{}}
}

// Receive reports whether index is new. Unlike SequenceWindow, it has
// no ack output of its own — it just gates delivery.
func (w *MessageWindow) Receive(index uint32) bool {
	if index < w.Start || index >= w.End || w.received.Test(uint(index)) {
		return false
	}

	w.received.Set(uint(index))

	if index == w.Start {
		for i := w.Start; i < w.End; i++ {
			if !w.received.Test(uint(i)) {
				break
			}
			w.received.Clear(uint(i))
			w.Start++
			w.End++
		}
	}

	return true
}
