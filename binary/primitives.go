// Package binary implements the wire primitives the RakNet core is built
// on: fixed-width integer codecs, length-prefixed strings, the unsized
// byte tail that carries game-packet payloads, and the 16-byte magic
// sentinel that guards every unconnected message.
package binary

import (
	"encoding/binary"
	"fmt"
)

// Reader walks a byte slice left to right, failing loudly on underrun
// instead of panicking. It intentionally does not allocate beyond the
// slices it hands back.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, fmt.Errorf("binary: short read: need %d, have %d", n, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.U8()
	return b != 0, err
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) U16LE() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) I32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) I64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// U24 reads a little-endian 24-bit unsigned integer, the width RakNet
// uses for sequence numbers, message indices, sequence indices and
// order indices (split ids are big-endian 16-bit, see U16).
func (r *Reader) U24() (uint32, error) {
	b, err := r.take(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

// String reads a 16-bit big-endian length prefix followed by that many
// bytes.
func (r *Reader) String() (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

// Tail returns every remaining byte without consuming a length prefix;
// used for fields the wire format leaves unsized (game-packet
// payloads).
func (r *Reader) Tail() []byte {
	b := r.data[r.off:]
	r.off = len(r.data)
	return b
}

// Writer accumulates a wire-format message. The zero value is ready to
// use.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *Writer) U16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

func (w *Writer) U16LE(v uint16) {
	w.buf = append(w.buf, byte(v), byte(v>>8))
}

func (w *Writer) I32(v int32) {
	w.U32(uint32(v))
}

func (w *Writer) U32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (w *Writer) I64(v int64) {
	w.U64(uint64(v))
}

func (w *Writer) U64(v uint64) {
	w.buf = append(w.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// U24 writes a little-endian 24-bit unsigned integer. The top byte of v
// is discarded, matching the wire width.
func (w *Writer) U24(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
}

func (w *Writer) String(s string) {
	w.U16(uint16(len(s)))
	w.buf = append(w.buf, []byte(s)...)
}

// Raw appends b verbatim, with no length prefix.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}
