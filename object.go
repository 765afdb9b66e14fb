// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/assets/cursor"
)

// Object is the in-memory representation of one stored object.
type Object interface {
	// Info returns the object's directory entry.
	Info() *ObjectInfo
	// Encode writes the object's payload.
	Encode(w *cursor.Writer) error
}

// BaseObject holds the directory entry; embed it to implement Info.
type BaseObject struct {
	info *ObjectInfo
}

// NewBaseObject returns a BaseObject for info.
func NewBaseObject(info *ObjectInfo) BaseObject {
	return BaseObject{info: info}
}

func (b *BaseObject) Info() *ObjectInfo {
	return b.info
}

// File returns the container the object belongs to, or nil.
func (b *BaseObject) File() *Container {
	return b.info.File()
}

// OpaqueObject keeps the payload of an object whose layout isn't known.
type OpaqueObject struct {
	BaseObject
	Data []byte
}

// NewOpaqueObject returns an object of the given type with a raw payload.
func NewOpaqueObject(typeIndex int32, data []byte) *OpaqueObject {
	return &OpaqueObject{
		BaseObject: NewBaseObject(NewObjectInfo(typeIndex)),
		Data:       data,
	}
}

func decodeOpaque(info *ObjectInfo, r *cursor.Reader) (Object, error) {
	return &OpaqueObject{
		BaseObject: NewBaseObject(info),
		Data:       r.ReadRest(),
	}, nil
}

func (o *OpaqueObject) Encode(w *cursor.Writer) error {
	_, _ = w.Write(o.Data)
	return nil
}

// MonoBehaviourHeader is the common prefix of every script-backed object.
// GameObject and Script are plain pointers: they are not tracked by
// Container.ReferencesTo or updated by Container.Relink.
type MonoBehaviourHeader struct {
	GameObject Pointer
	Enabled    bool
	Script     Pointer
	Name       string
}

// Decode reads the header fields from r.
func (h *MonoBehaviourHeader) Decode(r *cursor.Reader) error {
	var err error
	if h.GameObject, err = ReadPointer(r); err != nil {
		return fmt.Errorf("game object: %w", err)
	}
	if h.Enabled, err = r.ReadBool(); err != nil {
		return fmt.Errorf("enabled: %w", err)
	}
	if err = r.AlignTo(4); err != nil {
		return err
	}
	if h.Script, err = ReadPointer(r); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if h.Name, err = r.ReadAlignedString(); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	return nil
}

// Encode writes the header fields to w.
func (h *MonoBehaviourHeader) Encode(w *cursor.Writer) {
	h.GameObject.Encode(w)
	w.WriteBool(h.Enabled)
	w.AlignTo(4)
	h.Script.Encode(w)
	w.WriteAlignedString(h.Name)
}

// MonoBehaviourObject is a script-backed object whose script has no
// registered layout.  Everything after the header is kept in Data.
type MonoBehaviourObject struct {
	BaseObject
	MonoBehaviourHeader
	Data []byte
}

// NewMonoBehaviourObject returns a script-backed object of the given type.
func NewMonoBehaviourObject(typeIndex int32, header MonoBehaviourHeader, data []byte) *MonoBehaviourObject {
	return &MonoBehaviourObject{
		BaseObject:          NewBaseObject(NewObjectInfo(typeIndex)),
		MonoBehaviourHeader: header,
		Data:                data,
	}
}

func decodeMonoBehaviour(info *ObjectInfo, r *cursor.Reader) (Object, error) {
	o := &MonoBehaviourObject{BaseObject: NewBaseObject(info)}
	if err := o.MonoBehaviourHeader.Decode(r); err != nil {
		return nil, err
	}
	o.Data = r.ReadRest()
	return o, nil
}

func (o *MonoBehaviourObject) Encode(w *cursor.Writer) error {
	o.MonoBehaviourHeader.Encode(w)
	_, _ = w.Write(o.Data)
	return nil
}

// Fingerprint returns a hash of obj's encoded payload.  Objects that encode
// to the same bytes have the same fingerprint.
func Fingerprint(obj Object) (uint64, error) {
	w := cursor.NewWriter(0)
	if err := obj.Encode(w); err != nil {
		return 0, err
	}
	return farm.Fingerprint64(w.Bytes()), nil
}
