// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"
	"path"
	"weak"

	"github.com/google/uuid"

	"github.com/bpowers/assets/cursor"
)

// Well-known class identifiers.
const (
	ClassGameObject    int32 = 1
	ClassTexture2D     int32 = 28
	ClassAudioClip     int32 = 83
	ClassMonoBehaviour int32 = 114
	ClassMonoScript    int32 = 115
	ClassSprite        int32 = 213
)

// TypeDescriptor is one entry of the type table.  ScriptHash is only stored
// for ClassMonoBehaviour types; it identifies the script whose fields follow
// the common MonoBehaviour header.
type TypeDescriptor struct {
	ClassID     int32
	Stripped    uint8
	ScriptIndex int16
	ScriptHash  uuid.UUID
	TypeHash    uuid.UUID
}

// IsScript reports whether objects of this type are script-backed.
func (t TypeDescriptor) IsScript() bool {
	return t.ClassID == ClassMonoBehaviour
}

// ExternalFile is one entry of the external file table.  Its position i in
// the table is file index i+1; file index 0 is the container itself.
type ExternalFile struct {
	AssetName string
	GUID      uuid.UUID
	Type      int32
	FileName  string
}

// ObjectInfo is an object directory entry.  DataOffset is relative to the
// start of the object data region; DataOffset and DataSize are rewritten by
// every save.
type ObjectInfo struct {
	ObjectID   int64
	TypeIndex  int32
	DataOffset uint32
	DataSize   uint32

	file weak.Pointer[Container]
	// farm fingerprint of the payload as loaded; zero for added objects
	loaded uint64
}

// NewObjectInfo returns a directory entry for a new object of the given
// type.  The identifier is usually assigned by Container.AddObject.
func NewObjectInfo(typeIndex int32) *ObjectInfo {
	return &ObjectInfo{TypeIndex: typeIndex}
}

// File returns the container holding this object, or nil if it has not been
// added to one (or the container is gone).
func (oi *ObjectInfo) File() *Container {
	if oi == nil {
		return nil
	}
	return oi.file.Value()
}

// LocalPointer returns a same-file Pointer to this object.
func (oi *ObjectInfo) LocalPointer() Pointer {
	return Pointer{FileIndex: 0, ObjectID: oi.ObjectID}
}

// Metadata is the variable-length section between the header and the
// object data: the type table, the external file table and the object
// directory, followed by a reserved field.
type Metadata struct {
	Types     []TypeDescriptor
	Externals []ExternalFile
	Objects   []*ObjectInfo
	// Reserved is the int32 that follows the padded tables.  It is always
	// zero in files seen so far; whatever was read is written back.
	Reserved int32
}

func readUUID(r *cursor.Reader) (uuid.UUID, error) {
	b, err := r.ReadN(16)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

func readTypeDescriptor(r *cursor.Reader) (TypeDescriptor, error) {
	var t TypeDescriptor
	var err error
	if t.ClassID, err = r.ReadInt32(); err != nil {
		return t, err
	}
	if t.Stripped, err = r.ReadUint8(); err != nil {
		return t, err
	}
	if t.ScriptIndex, err = r.ReadInt16(); err != nil {
		return t, err
	}
	if t.IsScript() {
		if t.ScriptHash, err = readUUID(r); err != nil {
			return t, err
		}
	}
	if t.TypeHash, err = readUUID(r); err != nil {
		return t, err
	}
	return t, nil
}

func (t TypeDescriptor) encode(w *cursor.Writer) {
	w.WriteInt32(t.ClassID)
	w.WriteUint8(t.Stripped)
	w.WriteInt16(t.ScriptIndex)
	if t.IsScript() {
		_, _ = w.Write(t.ScriptHash[:])
	}
	_, _ = w.Write(t.TypeHash[:])
}

func readExternalFile(r *cursor.Reader) (ExternalFile, error) {
	var e ExternalFile
	var err error
	if e.AssetName, err = r.ReadString(); err != nil {
		return e, err
	}
	if e.GUID, err = readUUID(r); err != nil {
		return e, err
	}
	if e.Type, err = r.ReadInt32(); err != nil {
		return e, err
	}
	if e.FileName, err = r.ReadString(); err != nil {
		return e, err
	}
	return e, nil
}

func (e ExternalFile) encode(w *cursor.Writer) {
	w.WriteString(e.AssetName)
	_, _ = w.Write(e.GUID[:])
	w.WriteInt32(e.Type)
	w.WriteString(e.FileName)
}

func readObjectInfo(r *cursor.Reader) (*ObjectInfo, error) {
	oi := new(ObjectInfo)
	var err error
	if oi.ObjectID, err = r.ReadInt64(); err != nil {
		return nil, err
	}
	if oi.TypeIndex, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if oi.DataOffset, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if oi.DataSize, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	return oi, nil
}

func (oi *ObjectInfo) encode(w *cursor.Writer) {
	w.WriteInt64(oi.ObjectID)
	w.WriteInt32(oi.TypeIndex)
	w.WriteUint32(oi.DataOffset)
	w.WriteUint32(oi.DataSize)
}

// ParseMetadata reads the type table, external file table and object
// directory, then the padding and reserved field that end the section.
// Alignment is measured by r's position, so r must be positioned relative
// to the start of the file.
func ParseMetadata(r *cursor.Reader, align int) (*Metadata, error) {
	m := new(Metadata)
	var err error

	if m.Types, err = cursor.ReadArray(r, readTypeDescriptor); err != nil {
		return nil, fmt.Errorf("type table: %w", err)
	}
	if m.Externals, err = cursor.ReadArray(r, readExternalFile); err != nil {
		return nil, fmt.Errorf("external file table: %w", err)
	}
	if m.Objects, err = cursor.ReadArray(r, readObjectInfo); err != nil {
		return nil, fmt.Errorf("object directory: %w", err)
	}
	for _, oi := range m.Objects {
		if oi.TypeIndex < 0 || int(oi.TypeIndex) >= len(m.Types) {
			return nil, fmt.Errorf("%w: object %d has type index %d with %d types", ErrLayoutMismatch, oi.ObjectID, oi.TypeIndex, len(m.Types))
		}
	}
	if err = r.AlignTo(align); err != nil {
		return nil, fmt.Errorf("metadata padding: %w", err)
	}
	if m.Reserved, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("reserved field: %w", err)
	}

	return m, nil
}

// Encode writes the metadata in the order ParseMetadata reads it.
func (m *Metadata) Encode(w *cursor.Writer, align int) {
	_ = cursor.WriteArray(w, m.Types, func(w *cursor.Writer, t TypeDescriptor) error {
		t.encode(w)
		return nil
	})
	_ = cursor.WriteArray(w, m.Externals, func(w *cursor.Writer, e ExternalFile) error {
		e.encode(w)
		return nil
	})
	_ = cursor.WriteArray(w, m.Objects, func(w *cursor.Writer, oi *ObjectInfo) error {
		oi.encode(w)
		return nil
	})
	w.AlignTo(align)
	w.WriteInt32(m.Reserved)
}

// TypeIndexFor returns the index of the type with the given class and, for
// script types, script hash.
func (m *Metadata) TypeIndexFor(classID int32, scriptHash uuid.UUID) (int32, bool) {
	for i, t := range m.Types {
		if t.ClassID != classID {
			continue
		}
		if t.IsScript() && t.ScriptHash != scriptHash {
			continue
		}
		return int32(i), true
	}
	return -1, false
}

// AddType appends t to the type table and returns its index.  Existing
// indices are unchanged.
func (m *Metadata) AddType(t TypeDescriptor) int32 {
	m.Types = append(m.Types, t)
	return int32(len(m.Types) - 1)
}

// AddExternal appends e to the external file table and returns its file
// index.
func (m *Metadata) AddExternal(e ExternalFile) int32 {
	m.Externals = append(m.Externals, e)
	return int32(len(m.Externals))
}

// FileIndexForName returns the file index of the external file named name.
// Names are compared in full first, then by their last path element.
func (m *Metadata) FileIndexForName(name string) (int32, bool) {
	for i, e := range m.Externals {
		if e.FileName == name {
			return int32(i + 1), true
		}
	}
	for i, e := range m.Externals {
		if path.Base(e.FileName) == path.Base(name) {
			return int32(i + 1), true
		}
	}
	return 0, false
}

// External returns the external file entry for a file index > 0.
func (m *Metadata) External(fileIndex int32) (ExternalFile, bool) {
	if fileIndex < 1 || int(fileIndex) > len(m.Externals) {
		return ExternalFile{}, false
	}
	return m.Externals[fileIndex-1], true
}
