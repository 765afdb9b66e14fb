// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"

	"github.com/bpowers/assets/cursor"
)

const (
	// MinHeaderSize is the size of the fixed header fields.
	MinHeaderSize = 4 + 4 + 4 + 4 + 4 + 1 + 3

	// DefaultFormatVersion is the version written into new containers.
	DefaultFormatVersion = 17

	littleEndian = 0
)

// Header is the fixed preamble of a container.  The size and offset fields
// describe the file as it was last read or written; Container recomputes
// them from the encoded metadata and objects on every save.
type Header struct {
	HeaderSize       uint32
	MetadataSize     uint32
	FileSize         uint32
	Version          uint32
	ObjectDataOffset uint32
	Endianness       uint8
	Reserved         [3]byte
	// Extra holds any header bytes past MinHeaderSize, written back as-is.
	Extra []byte
}

func newHeader() Header {
	return Header{
		HeaderSize: MinHeaderSize,
		Version:    DefaultFormatVersion,
		Endianness: littleEndian,
	}
}

// ParseHeader reads a Header from the start of r.
func ParseHeader(r *cursor.Reader) (Header, error) {
	var h Header
	var err error

	if h.HeaderSize, err = r.ReadUint32(); err != nil {
		return Header{}, fmt.Errorf("header size: %w", err)
	}
	if h.HeaderSize < MinHeaderSize {
		return Header{}, fmt.Errorf("%w: header size %d < %d", ErrMalformedHeader, h.HeaderSize, MinHeaderSize)
	}
	if h.MetadataSize, err = r.ReadUint32(); err != nil {
		return Header{}, fmt.Errorf("metadata size: %w", err)
	}
	if h.FileSize, err = r.ReadUint32(); err != nil {
		return Header{}, fmt.Errorf("file size: %w", err)
	}
	if h.Version, err = r.ReadUint32(); err != nil {
		return Header{}, fmt.Errorf("version: %w", err)
	}
	if h.ObjectDataOffset, err = r.ReadUint32(); err != nil {
		return Header{}, fmt.Errorf("object data offset: %w", err)
	}
	if h.Endianness, err = r.ReadUint8(); err != nil {
		return Header{}, fmt.Errorf("endianness: %w", err)
	}
	if h.Endianness != littleEndian {
		return Header{}, fmt.Errorf("%w: unsupported endianness marker %d", ErrMalformedHeader, h.Endianness)
	}
	reserved, err := r.ReadN(len(h.Reserved))
	if err != nil {
		return Header{}, fmt.Errorf("reserved: %w", err)
	}
	copy(h.Reserved[:], reserved)
	if extra := int(h.HeaderSize - MinHeaderSize); extra > 0 {
		if h.Extra, err = r.ReadN(extra); err != nil {
			return Header{}, fmt.Errorf("extra header bytes: %w", err)
		}
	}

	if uint64(h.ObjectDataOffset) < uint64(h.HeaderSize)+uint64(h.MetadataSize) {
		return Header{}, fmt.Errorf("%w: object data offset %d inside header+metadata (%d+%d)",
			ErrMalformedHeader, h.ObjectDataOffset, h.HeaderSize, h.MetadataSize)
	}
	if h.FileSize < h.ObjectDataOffset {
		return Header{}, fmt.Errorf("%w: file size %d < object data offset %d", ErrMalformedHeader, h.FileSize, h.ObjectDataOffset)
	}

	return h, nil
}

// Encode writes the header fields in order.  Extra is truncated or
// zero-padded to fill HeaderSize.
func (h *Header) Encode(w *cursor.Writer) {
	start := w.Len()
	w.WriteUint32(h.HeaderSize)
	w.WriteUint32(h.MetadataSize)
	w.WriteUint32(h.FileSize)
	w.WriteUint32(h.Version)
	w.WriteUint32(h.ObjectDataOffset)
	w.WriteUint8(h.Endianness)
	_, _ = w.Write(h.Reserved[:])

	extra := int(h.HeaderSize) - MinHeaderSize
	if extra <= 0 {
		return
	}
	if len(h.Extra) >= extra {
		_, _ = w.Write(h.Extra[:extra])
	} else {
		_, _ = w.Write(h.Extra)
	}
	for w.Len()-start < int(h.HeaderSize) {
		w.WriteUint8(0)
	}
}
