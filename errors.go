// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"errors"

	"github.com/bpowers/assets/cursor"
)

var (
	// ErrTruncatedInput is returned when a read runs past the end of the
	// available bytes.
	ErrTruncatedInput = cursor.ErrTruncated
	// ErrMalformedHeader is returned when the header fields are
	// self-inconsistent.
	ErrMalformedHeader = errors.New("malformed container header")
	// ErrLayoutMismatch is returned when the metadata does not line up with
	// the object data the header describes.  It means the file is corrupt
	// or is a format variant this package doesn't understand.
	ErrLayoutMismatch = errors.New("container layout mismatch")
	// ErrInvalidObject is returned by graph mutations given an object that
	// can't be added or removed.
	ErrInvalidObject = errors.New("invalid object")
	// ErrTypeMismatch is returned when a typed lookup finds an object of a
	// different representation.
	ErrTypeMismatch = errors.New("object type mismatch")
	// ErrReferenceUnresolved is returned when a pointer names an object
	// that isn't loaded.  Callers should treat it as "absent".
	ErrReferenceUnresolved = errors.New("reference unresolved")
)
