package protocol

import "fmt"

// Reliability is the 3-bit delivery-guarantee tag carried in the top
// bits of every frame header byte.
type Reliability uint8

const (
	Unreliable Reliability = iota
	UnreliableSequenced
	Reliable
	ReliableOrdered
	ReliableSequenced
)

func (r Reliability) String() string {
	switch r {
	case Unreliable:
		return "Unreliable"
	case UnreliableSequenced:
		return "UnreliableSequenced"
	case Reliable:
		return "Reliable"
	case ReliableOrdered:
		return "ReliableOrdered"
	case ReliableSequenced:
		return "ReliableSequenced"
	default:
		return fmt.Sprintf("Reliability(%d)", uint8(r))
	}
}

// ParseReliability validates a 3-bit reliability value read off the
// wire.
func ParseReliability(v uint8) (Reliability, error) {
	if v > uint8(ReliableSequenced) {
		return 0, fmt.Errorf("protocol: invalid reliability %d", v)
	}
	return Reliability(v), nil
}

// Reliable reports whether messages of this class are retransmitted on
// loss and deduplicated by message index.
func (r Reliability) Reliable() bool {
	switch r {
	case Reliable, ReliableOrdered, ReliableSequenced:
		return true
	default:
		return false
	}
}

// Sequenced reports whether this class carries a sequence index and
// discards stale frames in favor of newer ones.
func (r Reliability) Sequenced() bool {
	switch r {
	case UnreliableSequenced, ReliableSequenced:
		return true
	default:
		return false
	}
}

// SequencedOrOrdered reports whether this class carries an order index
// and channel byte on the wire.
func (r Reliability) SequencedOrOrdered() bool {
	switch r {
	case UnreliableSequenced, ReliableOrdered, ReliableSequenced:
		return true
	default:
		return false
	}
}
