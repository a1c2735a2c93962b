package window

// SplitWindow reassembles the fragments of one split message. Count
// is the total fragment count advertised by the first fragment seen;
// the listener/stream layer rejects a later fragment whose advertised
// count disagrees.
type SplitWindow struct {
	Count     uint32
	fragments map[uint32][]byte
}

func NewSplitWindow(count uint32) *SplitWindow {
	return &SplitWindow{Count: count, fragments: make(map[uint32][]byte, count)}
}

// Receive stores fragment at index and, once all Count fragments have
// arrived, returns the reassembled payload in ascending index order.
// An index outside [0, Count) is ignored.
func (w *SplitWindow) Receive(index uint32, fragment []byte) []byte {
	if index >= w.Count {
		return nil
	}
	w.fragments[index] = fragment
	if uint32(len(w.fragments)) != w.Count {
		return nil
	}

	buf := make([]byte, 0)
	for i := uint32(0); i < w.Count; i++ {
		buf = append(buf, w.fragments[i]...)
	}
	return buf
}
