// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/assets/cursor"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestContainer_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	b1, err := f.c.Bytes()
	require.NoError(t, err)

	loaded, err := Load(b1, testRegistry(), WithName(f.c.Name()))
	require.NoError(t, err)
	requireSameGraph(t, f.c, loaded)
	assert.Equal(t, f.c.Header, loaded.Header)

	// an unmodified container re-saves to the same bytes
	b2, err := loaded.Bytes()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestContainer_Empty(t *testing.T) {
	c := New()
	assert.Equal(t, int64(1), c.NextObjectID())

	b, err := c.Bytes()
	require.NoError(t, err)

	loaded, err := Load(b, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, int64(1), loaded.NextObjectID())
	assert.Equal(t, loaded.Header.ObjectDataOffset, loaded.Header.FileSize)
}

func TestContainer_HeaderDerivedOnSave(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	// stale values are overwritten
	f.c.Header.FileSize = 1
	f.c.Header.MetadataSize = 2
	f.c.Header.ObjectDataOffset = 3

	b, err := f.c.Bytes()
	require.NoError(t, err)

	h, err := ParseHeader(cursor.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, uint32(MinHeaderSize), h.HeaderSize)
	assert.Equal(t, uint32(len(b)), h.FileSize)
	assert.Equal(t, h.HeaderSize+h.MetadataSize, h.ObjectDataOffset)
	assert.Equal(t, uint32(0), h.ObjectDataOffset%16)
	assert.Equal(t, h, f.c.Header)

	for _, info := range f.c.Metadata.Objects {
		assert.Equal(t, uint32(0), info.DataOffset%8, "object %d", info.ObjectID)
		assert.LessOrEqual(t, uint64(h.ObjectDataOffset)+uint64(info.DataOffset)+uint64(info.DataSize), uint64(h.FileSize))
	}
}

func TestContainer_HeaderExtraPreserved(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	f.c.Header.HeaderSize = MinHeaderSize + 4
	f.c.Header.Extra = []byte{0xde, 0xad, 0xbe, 0xef}

	loaded := reload(t, f.c, testRegistry())
	assert.Equal(t, uint32(MinHeaderSize+4), loaded.Header.HeaderSize)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, loaded.Header.Extra)
	assert.Equal(t, uint32(0), loaded.Header.ObjectDataOffset%16)
	requireSameGraph(t, f.c, loaded)
}

func TestLoad_LayoutMismatch(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	b, err := f.c.Bytes()
	require.NoError(t, err)

	odo := binary.LittleEndian.Uint32(b[16:20])
	binary.LittleEndian.PutUint32(b[16:20], odo+16)
	_, err = Load(b, nil)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestLoad_DuplicateObjectID(t *testing.T) {
	f := newFixture(t)
	f.addTexture(t, 1, []byte("a"))
	second := f.addTexture(t, 2, []byte("b"))
	second.Info().ObjectID = 1

	b, err := f.c.Bytes()
	require.NoError(t, err)
	_, err = Load(b, nil)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestLoad_Truncated(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	b, err := f.c.Bytes()
	require.NoError(t, err)

	for _, n := range []int{0, 10, MinHeaderSize, MinHeaderSize + 8, len(b) - 1} {
		_, err = Load(b[:n], nil)
		assert.ErrorIs(t, err, ErrTruncatedInput, "truncated at %d", n)
	}

	// a file size that cuts the first object short
	odo := binary.LittleEndian.Uint32(b[16:20])
	short := bytes.Clone(b[:odo+4])
	binary.LittleEndian.PutUint32(short[8:12], odo+4)
	_, err = Load(short, nil)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestLoad_TrailingFileBytes(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	b, err := f.c.Bytes()
	require.NoError(t, err)

	logger, buf := bufferLogger()
	loaded, err := Load(append(b, 1, 2, 3), testRegistry(), WithLogger(logger))
	require.NoError(t, err)
	requireSameGraph(t, f.c, loaded)
	assert.Contains(t, buf.String(), "ignoring bytes past the declared file size")
}

func TestLoad_TrailingObjectBytes(t *testing.T) {
	f := newFixture(t)
	f.addTexture(t, 0, []byte("0123456789"))
	b, err := f.c.Bytes()
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.RegisterClass(ClassTexture2D, func(info *ObjectInfo, r *cursor.Reader) (Object, error) {
		data, err := r.ReadN(4)
		if err != nil {
			return nil, err
		}
		return &OpaqueObject{BaseObject: NewBaseObject(info), Data: data}, nil
	}))

	logger, buf := bufferLogger()
	loaded, err := Load(b, reg, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "decoder left trailing bytes unread")
	assert.Contains(t, buf.String(), "trailing=6")

	tex, ok, err := FindByID[*OpaqueObject](loaded, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("0123"), tex.Data)
}

func TestLoad_DecoderErrors(t *testing.T) {
	f := newFixture(t)
	f.addTexture(t, 0, []byte("0123456789"))
	b, err := f.c.Bytes()
	require.NoError(t, err)

	boom := errors.New("boom")
	reg := NewRegistry()
	require.NoError(t, reg.RegisterClass(ClassTexture2D, func(info *ObjectInfo, r *cursor.Reader) (Object, error) {
		return nil, boom
	}))
	_, err = Load(b, reg)
	assert.ErrorIs(t, err, boom)

	reg = NewRegistry()
	require.NoError(t, reg.RegisterClass(ClassTexture2D, func(info *ObjectInfo, r *cursor.Reader) (Object, error) {
		return NewOpaqueObject(info.TypeIndex, r.ReadRest()), nil
	}))
	_, err = Load(b, reg)
	assert.ErrorIs(t, err, ErrInvalidObject)
}

func TestLoad_Dispatch(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	loaded := reload(t, f.c, testRegistry())
	var kinds []string
	for _, obj := range loaded.Objects() {
		switch obj.(type) {
		case *OpaqueObject:
			kinds = append(kinds, "opaque")
		case *MonoBehaviourObject:
			kinds = append(kinds, "script")
		case *levelCollection:
			kinds = append(kinds, "collection")
		case *AudioClipObject:
			kinds = append(kinds, "audio")
		default:
			t.Fatalf("unexpected %T", obj)
		}
	}
	assert.Equal(t, []string{"opaque", "script", "script", "collection", "audio", "script"}, kinds)

	// without the collection decoder it falls back to the generic script
	// object, which keeps the pointer array as raw bytes
	loaded = reload(t, f.c, nil)
	coll, ok, err := FindByID[*MonoBehaviourObject](loaded, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Collection", coll.Name)
	assert.Len(t, coll.Data, 4+2*PointerSize)
	requireSameGraph(t, f.c, loaded)
}

func TestLoad_UnknownScriptPreserved(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	loaded := reload(t, f.c, testRegistry())
	var found []*MonoBehaviourObject
	for obj := range FindAll(loaded, func(o *MonoBehaviourObject) bool { return o.Name == "mystery" }) {
		found = append(found, obj)
	}
	require.Len(t, found, 1)
	assert.Equal(t, []byte("opaque script fields"), found[0].Data)
	assert.Equal(t, f.unknownType, found[0].Info().TypeIndex)
}

func TestLoad_ShortScriptObjectKeptOpaque(t *testing.T) {
	f := newFixture(t)
	f.addLevel(t, "LevelA")
	short := NewOpaqueObject(f.unknownType, []byte{1, 2, 3, 4})
	require.NoError(t, f.c.AddObject(short, true))
	b, err := f.c.Bytes()
	require.NoError(t, err)

	logger, buf := bufferLogger()
	loaded, err := Load(b, NewRegistry(), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "fallback decode failed, keeping object opaque")

	obj, ok, err := FindByID[*OpaqueObject](loaded, short.Info().ObjectID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, obj.Data)
	assert.Equal(t, f.unknownType, obj.Info().TypeIndex)

	// well-formed script objects alongside it still decode
	level, ok, err := FindByID[*MonoBehaviourObject](loaded, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "LevelA", level.Name)

	// and the payload survives a save unchanged
	requireSameGraph(t, f.c, reload(t, loaded, nil))

	// a registered decoder that can't read it still fails the load
	reg := NewRegistry()
	reg.RegisterScript(unknownScriptHash, decodeMonoBehaviour)
	_, err = Load(b, reg)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestAudioClip_RoundTrip(t *testing.T) {
	f := newFixture(t)
	orig := f.addAudioClip(t, "song")
	orig.Ambisonic = true
	orig.SubsoundIndex = 3

	loaded := reload(t, f.c, nil)
	clip, ok, err := FindByID[*AudioClipObject](loaded, orig.Info().ObjectID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "song", clip.Name)
	assert.Equal(t, int32(2), clip.Channels)
	assert.Equal(t, int32(44100), clip.Frequency)
	assert.Equal(t, float32(183.5), clip.Length)
	assert.True(t, clip.Ambisonic)
	assert.Equal(t, int32(3), clip.SubsoundIndex)
	assert.True(t, clip.PreloadAudioData)
	assert.False(t, clip.Legacy3D)
	assert.Equal(t, orig.Resource, clip.Resource)
	assert.Equal(t, int32(1), clip.CompressionFormat)
}

func TestContainer_DeleteObject(t *testing.T) {
	f := newFixture(t)
	f.addTexture(t, 10, []byte("ten"))
	eleven := f.addTexture(t, 11, []byte("eleven"))
	f.addTexture(t, 12, []byte("twelve"))

	require.NoError(t, f.c.DeleteObject(eleven))
	assert.Equal(t, []int64{10, 12}, objectIDs(f.c))
	assert.Len(t, f.c.Metadata.Objects, 2)
	assert.Equal(t, int64(13), f.c.NextObjectID())
	assert.Nil(t, eleven.Info().File())
	_, ok := f.c.Object(11)
	assert.False(t, ok)

	// deleting it again, or something never added, fails
	assert.ErrorIs(t, f.c.DeleteObject(eleven), ErrInvalidObject)
	assert.ErrorIs(t, f.c.DeleteObject(NewOpaqueObject(f.textureType, nil)), ErrInvalidObject)
	assert.ErrorIs(t, f.c.DeleteObject(&OpaqueObject{}), ErrInvalidObject)

	loaded := reload(t, f.c, nil)
	assert.Equal(t, []int64{10, 12}, objectIDs(loaded))
	assert.Equal(t, int64(13), loaded.NextObjectID())

	// a deleted object can be added back
	require.NoError(t, f.c.AddObject(eleven, false))
	assert.Equal(t, []int64{10, 12, 11}, objectIDs(f.c))
}

func TestContainer_AddObjectIDs(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, int64(1), f.addTexture(t, 0, nil).Info().ObjectID)
	assert.Equal(t, int64(2), f.addTexture(t, 0, nil).Info().ObjectID)
	assert.Equal(t, int64(3), f.addTexture(t, 0, nil).Info().ObjectID)

	f = newFixture(t)
	f.addTexture(t, 5, nil)
	assert.Equal(t, int64(6), f.addTexture(t, 0, nil).Info().ObjectID)
	assert.Equal(t, int64(7), f.addTexture(t, 0, nil).Info().ObjectID)
	assert.Equal(t, []int64{5, 6, 7}, objectIDs(f.c))
}

func TestContainer_AddObjectInvalid(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	before := objectIDs(f.c)
	other := newFixture(t)
	owned := other.addTexture(t, 0, nil)

	dup := NewOpaqueObject(f.textureType, nil)
	dup.Info().ObjectID = 1
	unset := NewOpaqueObject(f.textureType, nil)
	negative := NewOpaqueObject(f.textureType, nil)
	negative.Info().ObjectID = -4
	badType := NewOpaqueObject(int32(len(f.c.Metadata.Types)), nil)
	badType.Info().ObjectID = 100

	tests := []struct {
		name     string
		obj      Object
		assignID bool
	}{
		{"no directory entry", &OpaqueObject{}, true},
		{"already added here", f.c.Objects()[0], true},
		{"owned by another container", owned, true},
		{"duplicate id", dup, false},
		{"unset id", unset, false},
		{"negative id", negative, false},
		{"bad type index", badType, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := f.c.AddObject(test.obj, test.assignID)
			require.ErrorIs(t, err, ErrInvalidObject)
			assert.Equal(t, before, objectIDs(f.c))
			assert.Len(t, f.c.Metadata.Objects, len(before))
		})
	}
	assert.Nil(t, dup.Info().File())
	assert.Nil(t, badType.Info().File())
	assert.Same(t, other.c, owned.Info().File())
}

func TestContainer_TypeIndexFor(t *testing.T) {
	f := newFixture(t)
	n := len(f.c.Metadata.Types)
	assert.Equal(t, f.levelType, f.c.TypeIndexFor(ClassMonoBehaviour, levelScriptHash))
	assert.Equal(t, f.textureType, f.c.TypeIndexFor(ClassTexture2D, levelScriptHash))
	assert.Len(t, f.c.Metadata.Types, n)

	sprite := f.c.TypeIndexFor(ClassSprite, levelScriptHash)
	assert.Equal(t, int32(n), sprite)
	assert.Equal(t, int16(-1), f.c.Metadata.Types[sprite].ScriptIndex)
	// the hash only means something for script types
	assert.Equal(t, [16]byte{}, [16]byte(f.c.Metadata.Types[sprite].ScriptHash))
}

func TestFindByID(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	level, ok, err := FindByID[*MonoBehaviourObject](f.c, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "LevelA", level.Name)

	_, ok, err = FindByID[*MonoBehaviourObject](f.c, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = FindByID[*AudioClipObject](f.c, 2)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, ok)

	obj, ok, err := FindByID[Object](f.c, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.IsType(t, &OpaqueObject{}, obj)
}

func TestFindAll(t *testing.T) {
	f := newFixture(t)
	f.populate(t)

	isLevel := func(o *MonoBehaviourObject) bool {
		return o.Info().TypeIndex == f.levelType
	}
	seq := FindAll(f.c, isLevel)

	var names []string
	for o := range seq {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"LevelA", "LevelB"}, names)

	// the sequence reflects the container at iteration time
	f.addLevel(t, "LevelC")
	names = names[:0]
	for o := range seq {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"LevelA", "LevelB", "LevelC"}, names)

	// stopping early is fine
	var first []string
	for o := range seq {
		first = append(first, o.Name)
		break
	}
	assert.Equal(t, []string{"LevelA"}, first)

	var all int
	for range FindAll[*MonoBehaviourObject](f.c, nil) {
		all++
	}
	assert.Equal(t, 4, all)

	var none int
	for range FindAll(f.c, func(*AudioClipObject) bool { return false }) {
		none++
	}
	assert.Zero(t, none)
}

func TestContainer_WriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sharedassets17.assets")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	f := newFixture(t)
	f.populate(t)
	require.NoError(t, f.c.WriteFile(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")

	c, err := Open(path, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "sharedassets17.assets", c.Name())
	requireSameGraph(t, f.c, c)

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	want, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)
	assert.Equal(t, want, buf.Bytes())

	assert.Error(t, f.c.WriteFile(filepath.Join(dir, "missing", "x.assets")))
	_, err = Open(filepath.Join(dir, "nope.assets"), nil)
	assert.Error(t, err)
}

func TestContainer_OpenSplit(t *testing.T) {
	f := newFixture(t)
	f.populate(t)
	b, err := f.c.Bytes()
	require.NoError(t, err)

	dir := t.TempDir()
	third := len(b) / 3
	chunks := [][]byte{b[:third], b[third : 2*third], b[2*third:]}
	for i, chunk := range chunks {
		name := filepath.Join(dir, "level0.assets.split"+string(rune('0'+i)))
		require.NoError(t, os.WriteFile(name, chunk, 0o644))
	}

	c, err := Open(filepath.Join(dir, "level0.assets.split0"), testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "level0.assets", c.Name())
	requireSameGraph(t, f.c, c)
}

func TestContainer_CustomAlignment(t *testing.T) {
	opts := []Option{WithObjectAlignment(4), WithDataAlignment(32)}
	f := newFixture(t, opts...)
	f.populate(t)

	b, err := f.c.Bytes()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), f.c.Header.ObjectDataOffset%32)
	for _, info := range f.c.Metadata.Objects {
		assert.Equal(t, uint32(0), info.DataOffset%4)
	}

	loaded, err := Load(b, testRegistry(), opts...)
	require.NoError(t, err)
	requireSameGraph(t, f.c, loaded)

	assert.Panics(t, func() { WithObjectAlignment(0) })
}
