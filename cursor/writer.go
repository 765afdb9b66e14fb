// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cursor

import (
	"encoding/binary"
	"math"

	"github.com/bpowers/assets/internal/zero"
)

// Writer encodes values into a growing in-memory buffer.  Writes never fail;
// the buffer is handed to an io.Writer in one piece once every size is known.
type Writer struct {
	buf  []byte
	base int64
}

// NewWriter returns a Writer whose first byte will be at position base.
func NewWriter(base int64) *Writer {
	return &Writer{base: base}
}

// Pos returns the position of the next byte written, including the base.
func (w *Writer) Pos() int64 {
	return w.base + int64(len(w.buf))
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the written bytes.  The slice aliases the Writer's buffer
// until the next write.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// AlignTo zero-fills up to the next multiple of n.  Values of n below 2 are
// a no-op.
func (w *Writer) AlignTo(n int) {
	w.buf = zero.Pad(w.buf, zero.PadLen(w.Pos(), n))
}

// Write appends p verbatim, implementing io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteInt8(v int8) {
	w.WriteUint8(uint8(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteBytes writes a 4-byte length followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString writes a 4-byte length followed by the bytes of s.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteAlignedString writes s and then aligns to 4 bytes.
func (w *Writer) WriteAlignedString(s string) {
	w.WriteString(s)
	w.AlignTo(4)
}

// WriteArray writes an int32 element count followed by every element
// encoded by fn.
func WriteArray[T any](w *Writer, items []T, fn func(w *Writer, item T) error) error {
	w.WriteInt32(int32(len(items)))
	for _, item := range items {
		if err := fn(w, item); err != nil {
			return err
		}
	}
	return nil
}
