// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package zero provides helpers for zero-filled padding.
package zero

var block [64]byte

// Pad appends n zero bytes to dst and returns the extended slice.
func Pad(dst []byte, n int) []byte {
	for n > 0 {
		chunk := n
		if chunk > len(block) {
			chunk = len(block)
		}
		dst = append(dst, block[:chunk]...)
		n -= chunk
	}
	return dst
}

// PadLen returns the number of bytes needed to move pos up to the next
// multiple of align.
func PadLen(pos int64, align int) int {
	if align <= 1 {
		return 0
	}
	a := int64(align)
	return int((a - pos%a) % a)
}
