package frame

import (
	"testing"

	"raknet-core/binary"
	"raknet-core/protocol"
)

func TestFrameRoundTripReliableOrdered(t *testing.T) {
	want := &Frame{
		Reliability:  protocol.ReliableOrdered,
		Content:      []byte("hello"),
		MessageIndex: 7,
		OrderIndex:   3,
		OrderChannel: 0,
	}
	w := binary.NewWriter()
	want.Encode(w)

	got, err := DecodeFrame(binary.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("DecodeFrame() error: %v", err)
	}
	if got.MessageIndex != want.MessageIndex || got.OrderIndex != want.OrderIndex {
		t.Errorf("got = %+v, want %+v", got, want)
	}
	if string(got.Content) != string(want.Content) {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
}

func TestFrameRoundTripFragmented(t *testing.T) {
	want := &Frame{
		Reliability:  protocol.Reliable,
		Content:      []byte("fragment"),
		MessageIndex: 99,
		Fragmented:   true,
		SplitCount:   4,
		SplitID:      12,
		SplitIndex:   2,
	}
	w := binary.NewWriter()
	want.Encode(w)

	got, err := DecodeFrame(binary.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("DecodeFrame() error: %v", err)
	}
	if got.SplitCount != want.SplitCount || got.SplitID != want.SplitID || got.SplitIndex != want.SplitIndex {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestDecodeFrameRejectsZeroLength(t *testing.T) {
	w := binary.NewWriter()
	w.U8(uint8(protocol.Unreliable) << 5)
	w.U16(0)
	if _, err := DecodeFrame(binary.NewReader(w.Bytes())); err == nil {
		t.Error("expected error for zero-length frame, got nil")
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	d := &Datagram{
		SequenceNumber: 42,
		Frames: []*Frame{
			{Reliability: protocol.Unreliable, Content: []byte("a")},
			{Reliability: protocol.Reliable, Content: []byte("bb"), MessageIndex: 1},
		},
	}
	w := binary.NewWriter()
	d.Encode(w)

	got, err := DecodeDatagram(binary.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("DecodeDatagram() error: %v", err)
	}
	if got.SequenceNumber != d.SequenceNumber {
		t.Errorf("SequenceNumber = %d, want %d", got.SequenceNumber, d.SequenceNumber)
	}
	if len(got.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(got.Frames))
	}
	if string(got.Frames[1].Content) != "bb" {
		t.Errorf("Frames[1].Content = %q, want %q", got.Frames[1].Content, "bb")
	}
}
