package binary

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.U8(0x42)
	w.U16(1234)
	w.U32(567890)
	w.U64(123456789012)
	w.U24(0xabcdef)
	w.String("Hello World")

	r := NewReader(w.Bytes())

	if b, _ := r.U8(); b != 0x42 {
		t.Errorf("U8 = 0x%02X, want 0x42", b)
	}
	if v, _ := r.U16(); v != 1234 {
		t.Errorf("U16 = %d, want 1234", v)
	}
	if v, _ := r.U32(); v != 567890 {
		t.Errorf("U32 = %d, want 567890", v)
	}
	if v, _ := r.U64(); v != 123456789012 {
		t.Errorf("U64 = %d, want 123456789012", v)
	}
	if v, _ := r.U24(); v != 0xabcdef {
		t.Errorf("U24 = 0x%06X, want 0xabcdef", v)
	}
	if s, _ := r.String(); s != "Hello World" {
		t.Errorf("String = %q, want %q", s, "Hello World")
	}
}

func TestU24IsLittleEndian(t *testing.T) {
	w := NewWriter()
	w.U24(0x010203)

	want := []byte{0x03, 0x02, 0x01}
	if got := w.Bytes(); string(got) != string(want) {
		t.Errorf("U24 bytes = %x, want %x", got, want)
	}
}

func TestReaderShortReadFails(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.U32(); err == nil {
		t.Error("expected short-read error, got nil")
	}
}

func TestMagicRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Magic()

	if got := w.Bytes(); string(got) != string(Magic[:]) {
		t.Errorf("Magic() = %x, want %x", got, Magic[:])
	}

	r := NewReader(w.Bytes())
	if err := r.Magic(); err != nil {
		t.Errorf("Magic() round-trip failed: %v", err)
	}
}

func TestMagicMismatchFails(t *testing.T) {
	bad := make([]byte, 16)
	r := NewReader(bad)
	if err := r.Magic(); err == nil {
		t.Error("expected magic mismatch error, got nil")
	}
}
