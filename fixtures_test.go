// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/assets/cursor"
)

var (
	levelScriptHash      = uuid.MustParse("5b1e3c2a-0d4f-4a51-9c4c-8a2f6f1b7e01")
	collectionScriptHash = uuid.MustParse("5b1e3c2a-0d4f-4a51-9c4c-8a2f6f1b7e02")
	unknownScriptHash    = uuid.MustParse("5b1e3c2a-0d4f-4a51-9c4c-8a2f6f1b7e03")
)

// levelCollection mirrors a script object holding a list of pointers to
// other script objects.
type levelCollection struct {
	BaseObject
	MonoBehaviourHeader
	Levels []*SmartPtr[*MonoBehaviourObject]
}

func decodeLevelCollection(info *ObjectInfo, r *cursor.Reader) (Object, error) {
	o := &levelCollection{BaseObject: NewBaseObject(info)}
	if err := o.MonoBehaviourHeader.Decode(r); err != nil {
		return nil, err
	}
	levels, err := ReadSmartPtrArray[*MonoBehaviourObject](o, r)
	if err != nil {
		return nil, err
	}
	o.Levels = levels
	return o, nil
}

func (o *levelCollection) Encode(w *cursor.Writer) error {
	o.MonoBehaviourHeader.Encode(w)
	WriteSmartPtrArray(w, o.Levels)
	return nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterScript(collectionScriptHash, decodeLevelCollection)
	return reg
}

type fixture struct {
	c              *Container
	textureType    int32
	audioType      int32
	levelType      int32
	collectionType int32
	unknownType    int32
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	c := New(append([]Option{WithName("sharedassets17.assets")}, opts...)...)
	f := &fixture{c: c}
	f.textureType = c.TypeIndexFor(ClassTexture2D, uuid.Nil)
	f.audioType = c.TypeIndexFor(ClassAudioClip, uuid.Nil)
	f.levelType = c.TypeIndexFor(ClassMonoBehaviour, levelScriptHash)
	f.collectionType = c.TypeIndexFor(ClassMonoBehaviour, collectionScriptHash)
	f.unknownType = c.TypeIndexFor(ClassMonoBehaviour, unknownScriptHash)
	c.Metadata.AddExternal(ExternalFile{
		GUID:     uuid.MustParse("00000000-0000-0000-e000-000000000000"),
		Type:     0,
		FileName: "library/unity default resources",
	})
	c.Metadata.AddExternal(ExternalFile{
		GUID:     uuid.MustParse("00000000-0000-0000-f000-000000000000"),
		Type:     3,
		FileName: "sharedassets19.assets",
	})
	return f
}

func (f *fixture) addTexture(t *testing.T, id int64, data []byte) *OpaqueObject {
	t.Helper()
	obj := NewOpaqueObject(f.textureType, data)
	obj.Info().ObjectID = id
	require.NoError(t, f.c.AddObject(obj, id == 0))
	return obj
}

func (f *fixture) addLevel(t *testing.T, name string) *MonoBehaviourObject {
	t.Helper()
	obj := NewMonoBehaviourObject(f.levelType, MonoBehaviourHeader{
		Enabled: true,
		Script:  Pointer{FileIndex: 2, ObjectID: 644},
		Name:    name,
	}, []byte{1, 2, 3, 4, 5})
	require.NoError(t, f.c.AddObject(obj, true))
	return obj
}

func (f *fixture) addCollection(t *testing.T, name string, levels ...*MonoBehaviourObject) *levelCollection {
	t.Helper()
	obj := &levelCollection{
		BaseObject: NewBaseObject(NewObjectInfo(f.collectionType)),
		MonoBehaviourHeader: MonoBehaviourHeader{
			Enabled: true,
			Script:  Pointer{FileIndex: 2, ObjectID: 762},
			Name:    name,
		},
	}
	require.NoError(t, f.c.AddObject(obj, true))
	for _, level := range levels {
		p, err := NewSmartPtr(f.c, obj, level)
		require.NoError(t, err)
		obj.Levels = append(obj.Levels, p)
	}
	return obj
}

func (f *fixture) addAudioClip(t *testing.T, name string) *AudioClipObject {
	t.Helper()
	obj := NewAudioClipObject(f.audioType)
	obj.Name = name
	obj.LoadType = 1
	obj.Channels = 2
	obj.Frequency = 44100
	obj.BitsPerSample = 16
	obj.Length = 183.5
	obj.PreloadAudioData = true
	obj.LoadInBackground = true
	obj.Resource = StreamedResource{Source: "sharedassets17.resource", Offset: 4096, Size: 1 << 20}
	obj.CompressionFormat = 1
	require.NoError(t, f.c.AddObject(obj, true))
	return obj
}

// populate adds one of everything: a texture, two levels, a collection
// pointing at both, an audio clip and an unknown script object.
func (f *fixture) populate(t *testing.T) {
	t.Helper()
	f.addTexture(t, 0, []byte("not really a png"))
	a := f.addLevel(t, "LevelA")
	b := f.addLevel(t, "LevelB")
	f.addCollection(t, "Collection", a, b)
	f.addAudioClip(t, "song")
	unknown := NewMonoBehaviourObject(f.unknownType, MonoBehaviourHeader{Name: "mystery"}, []byte("opaque script fields"))
	require.NoError(t, f.c.AddObject(unknown, true))
}

func reload(t *testing.T, c *Container, reg *Registry, opts ...Option) *Container {
	t.Helper()
	b, err := c.Bytes()
	require.NoError(t, err)
	loaded, err := Load(b, reg, append([]Option{WithName(c.Name())}, opts...)...)
	require.NoError(t, err)
	return loaded
}

// requireSameGraph checks two containers hold the same objects: same
// identifiers, types and encoded payloads, in the same order.
func requireSameGraph(t *testing.T, expected, actual *Container) {
	t.Helper()
	require.Equal(t, expected.Metadata.Types, actual.Metadata.Types)
	require.Equal(t, expected.Metadata.Externals, actual.Metadata.Externals)
	require.Equal(t, expected.Len(), actual.Len())
	actualObjects := actual.Objects()
	for i, e := range expected.Objects() {
		a := actualObjects[i]
		require.Equal(t, e.Info().ObjectID, a.Info().ObjectID)
		require.Equal(t, e.Info().TypeIndex, a.Info().TypeIndex)
		ef, err := Fingerprint(e)
		require.NoError(t, err)
		af, err := Fingerprint(a)
		require.NoError(t, err)
		require.Equal(t, ef, af, "object %d payload differs", e.Info().ObjectID)
	}
}

func objectIDs(c *Container) []int64 {
	var ids []int64
	for _, obj := range c.Objects() {
		ids = append(ids, obj.Info().ObjectID)
	}
	return ids
}
