// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cursor implements the primitive value codec used by asset
// containers: fixed-width little-endian integers, length-prefixed bytes and
// strings, and alignment padding measured from a base position.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/bpowers/assets/internal/zero"
)

// ErrTruncated is returned when a read would run past the end of the input.
var ErrTruncated = errors.New("truncated input")

// Reader decodes values from an in-memory byte slice.  Positions reported by
// Pos and used by AlignTo are relative to base, so a Reader over a slice
// taken from the middle of a file can still align the way the file does.
type Reader struct {
	buf  []byte
	off  int
	base int64
}

// NewReader returns a Reader over buf whose first byte is at position 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// NewReaderAt returns a Reader over buf whose first byte is at position base.
func NewReaderAt(buf []byte, base int64) *Reader {
	return &Reader{buf: buf, base: base}
}

// Pos returns the current position, including the base.
func (r *Reader) Pos() int64 {
	return r.base + int64(r.off)
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Seek moves to the absolute position pos (including the base).
func (r *Reader) Seek(pos int64) error {
	off := pos - r.base
	if off < 0 || off > int64(len(r.buf)) {
		return fmt.Errorf("seek to %d outside [%d, %d]: %w", pos, r.base, r.base+int64(len(r.buf)), ErrTruncated)
	}
	r.off = int(off)
	return nil
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("read of %d bytes at %d with %d remaining: %w", n, r.Pos(), r.Len(), ErrTruncated)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.next(n)
	return err
}

// AlignTo skips forward to the next multiple of n.  Values of n below 2
// are a no-op.
func (r *Reader) AlignTo(n int) error {
	return r.Skip(zero.PadLen(r.Pos(), n))
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadBool reads a single byte, treating any non-zero value as true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadN returns a copy of the next n bytes.
func (r *Reader) ReadN(n int) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadBytes reads a 4-byte length followed by that many bytes.  The result
// is a copy and never aliases the input.
func (r *Reader) ReadBytes() ([]byte, error) {
	start := r.off
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Len()) {
		r.off = start
		return nil, fmt.Errorf("length prefix %d at %d with %d remaining: %w", n, r.Pos(), r.Len(), ErrTruncated)
	}
	return r.ReadN(int(n))
}

// ReadString reads a 4-byte length followed by that many bytes of UTF-8.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadAlignedString reads a string and then aligns to 4 bytes, the way
// serialized object fields store names.
func (r *Reader) ReadAlignedString() (string, error) {
	s, err := r.ReadString()
	if err != nil {
		return "", err
	}
	if err := r.AlignTo(4); err != nil {
		return "", err
	}
	return s, nil
}

// ReadRest returns a copy of every unread byte and leaves the reader empty.
func (r *Reader) ReadRest() []byte {
	out, _ := r.ReadN(r.Len())
	return out
}

// ReadArray reads an int32 element count followed by that many elements
// decoded by fn.
func ReadArray[T any](r *Reader, fn func(r *Reader) (T, error)) ([]T, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	// every element takes at least one byte
	if n < 0 || int(n) > r.Len() {
		return nil, fmt.Errorf("array count %d at %d with %d remaining: %w", n, r.Pos(), r.Len(), ErrTruncated)
	}
	out := make([]T, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := fn(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
