// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"

	"github.com/bpowers/assets/cursor"
)

// StreamedResource locates audio or texture bytes stored outside the
// container, in a resource file next to it.
type StreamedResource struct {
	Source string
	Offset uint64
	Size   uint64
}

// AudioClipObject is the built-in representation of ClassAudioClip.
type AudioClipObject struct {
	BaseObject

	Name              string
	LoadType          int32
	Channels          int32
	Frequency         int32
	BitsPerSample     int32
	Length            float32
	IsTrackerFormat   bool
	Ambisonic         bool
	SubsoundIndex     int32
	PreloadAudioData  bool
	LoadInBackground  bool
	Legacy3D          bool
	Resource          StreamedResource
	CompressionFormat int32
}

// NewAudioClipObject returns an empty audio clip of the given type.
func NewAudioClipObject(typeIndex int32) *AudioClipObject {
	return &AudioClipObject{BaseObject: NewBaseObject(NewObjectInfo(typeIndex))}
}

func decodeAudioClip(info *ObjectInfo, r *cursor.Reader) (Object, error) {
	o := &AudioClipObject{BaseObject: NewBaseObject(info)}
	if err := o.decode(r); err != nil {
		return nil, fmt.Errorf("audio clip %d: %w", info.ObjectID, err)
	}
	return o, nil
}

func (o *AudioClipObject) decode(r *cursor.Reader) error {
	var err error
	if o.Name, err = r.ReadAlignedString(); err != nil {
		return err
	}
	for _, field := range []*int32{&o.LoadType, &o.Channels, &o.Frequency, &o.BitsPerSample} {
		if *field, err = r.ReadInt32(); err != nil {
			return err
		}
	}
	if o.Length, err = r.ReadFloat32(); err != nil {
		return err
	}
	if o.IsTrackerFormat, err = r.ReadBool(); err != nil {
		return err
	}
	if o.Ambisonic, err = r.ReadBool(); err != nil {
		return err
	}
	if err = r.AlignTo(4); err != nil {
		return err
	}
	if o.SubsoundIndex, err = r.ReadInt32(); err != nil {
		return err
	}
	for _, flag := range []*bool{&o.PreloadAudioData, &o.LoadInBackground, &o.Legacy3D} {
		if *flag, err = r.ReadBool(); err != nil {
			return err
		}
	}
	if err = r.AlignTo(4); err != nil {
		return err
	}
	if o.Resource.Source, err = r.ReadAlignedString(); err != nil {
		return err
	}
	if o.Resource.Offset, err = r.ReadUint64(); err != nil {
		return err
	}
	if o.Resource.Size, err = r.ReadUint64(); err != nil {
		return err
	}
	if o.CompressionFormat, err = r.ReadInt32(); err != nil {
		return err
	}
	return nil
}

func (o *AudioClipObject) Encode(w *cursor.Writer) error {
	w.WriteAlignedString(o.Name)
	w.WriteInt32(o.LoadType)
	w.WriteInt32(o.Channels)
	w.WriteInt32(o.Frequency)
	w.WriteInt32(o.BitsPerSample)
	w.WriteFloat32(o.Length)
	w.WriteBool(o.IsTrackerFormat)
	w.WriteBool(o.Ambisonic)
	w.AlignTo(4)
	w.WriteInt32(o.SubsoundIndex)
	w.WriteBool(o.PreloadAudioData)
	w.WriteBool(o.LoadInBackground)
	w.WriteBool(o.Legacy3D)
	w.AlignTo(4)
	w.WriteAlignedString(o.Resource.Source)
	w.WriteUint64(o.Resource.Offset)
	w.WriteUint64(o.Resource.Size)
	w.WriteInt32(o.CompressionFormat)
	return nil
}
