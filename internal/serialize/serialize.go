// Package serialize implements the binary save-state format shared by the
// clock, bus, CPUs, PPUs, APUs and mappers: little-endian, size-prefixed,
// every top-level component leads with a uint32 version tag.
package serialize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned by a component's Deserialize when it
// encounters a version tag newer than it knows how to read.
var ErrUnsupportedVersion = errors.New("serialize: unsupported version")

// ErrTruncated is returned when a Reader runs out of bytes mid-value.
var ErrTruncated = errors.New("serialize: truncated stream")

// Writer accumulates a binary save-state buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Version writes the version tag that must lead every top-level component.
func (w *Writer) Version(v uint32) { w.PutUint32(v) }

// PutBool writes a single byte: 1 for true, 0 for false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// PutUint8 writes one byte.
func (w *Writer) PutUint8(v uint8) { w.buf.WriteByte(v) }

// PutUint16 writes v little-endian.
func (w *Writer) PutUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf.Write(tmp[:])
}

// PutUint32 writes v little-endian.
func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

// PutInt32 writes v little-endian.
func (w *Writer) PutInt32(v int32) { w.PutUint32(uint32(v)) }

// PutUint64 writes v little-endian.
func (w *Writer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

// PutBytes writes a u32 length prefix followed by b.
func (w *Writer) PutBytes(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.buf.Write(b)
}

// PutCount writes a u32 element count ahead of a caller-driven loop over a
// nested collection.
func (w *Writer) PutCount(n int) { w.PutUint32(uint32(n)) }

// Reader consumes a binary save-state buffer produced by Writer.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader wraps data for sequential reads.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Err reports the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Version reads the leading version tag and fails if it exceeds max.
func (r *Reader) Version(max uint32) uint32 {
	v := r.Uint32()
	if r.err == nil && v > max {
		r.err = fmt.Errorf("%w: got %d, max %d", ErrUnsupportedVersion, v, max)
	}
	return v
}

// Bool reads one byte as a boolean.
func (r *Reader) Bool() bool {
	b := r.take(1)
	return len(b) == 1 && b[0] != 0
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if len(b) != 1 {
		return 0
	}
	return b[0]
}

// Uint16 reads two little-endian bytes.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if len(b) != 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads four little-endian bytes.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if len(b) != 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Int32 reads four little-endian bytes as a signed value.
func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

// Uint64 reads eight little-endian bytes.
func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if len(b) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Bytes reads a u32 length prefix followed by that many bytes.
func (r *Reader) Bytes() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	b := r.take(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Count reads a u32 element count for a caller-driven collection loop.
func (r *Reader) Count() int { return int(r.Uint32()) }
