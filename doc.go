// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package assets reads, edits and writes Unity-style asset containers: a
// header, a metadata section describing types, external files and objects,
// and the serialized objects themselves.
//
// A container file looks like:
//
//	┌──────────────────────────┐
//	│ header                   │ HeaderSize bytes
//	├──────────────────────────┤
//	│ type table               │ int32 count + records
//	│ external file table      │ int32 count + records
//	│ object directory         │ int32 count + records
//	│ padding to 4             │
//	│ reserved int32           │
//	│ padding to 16            │
//	├──────────────────────────┤ ObjectDataOffset
//	│ object 0                 │
//	│ padding to 8             │
//	│ object 1                 │
//	│ ...                      │
//	└──────────────────────────┘ FileSize
//
// Every value is little-endian.  The header is 24 bytes:
//
//	 0    1    2    3    4    5    6    7
//	+----+----+----+----+----+----+----+----+
//	| header size       | metadata size     |
//	+----+----+----+----+----+----+----+----+
//	| file size         | format version    |
//	+----+----+----+----+----+----+----+----+
//	| object data offset|end.| reserved     |
//	+----+----+----+----+----+----+----+----+
//
// Object directory entries are 20 bytes: an int64 object identifier, an
// int32 index into the type table, and the uint32 offset (from
// ObjectDataOffset) and size of the object's payload.
//
// Objects refer to each other with a Pointer, a file index and an object
// identifier.  File index 0 is the container itself; file index i is entry
// i-1 of the external file table.  Load decodes each object with the
// representation registered for its type in a Registry, falling back to
// MonoBehaviourObject for unregistered scripts and OpaqueObject for
// everything else, so unknown types never prevent a container from loading.
//
// Saving recomputes every offset and size: objects are encoded first, then
// the metadata that records where they landed, then the header.
package assets
