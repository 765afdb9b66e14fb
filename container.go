// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"cmp"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"weak"

	"github.com/dgryski/go-farm"
	"github.com/google/uuid"

	"github.com/bpowers/assets/cursor"
	"github.com/bpowers/assets/internal/splitfile"
)

// Container is one asset container: header, metadata and the objects of
// its object directory.  A Container is not safe for concurrent use;
// distinct Containers share no state and may be used from different
// goroutines.
type Container struct {
	Header   Header
	Metadata *Metadata

	objects []Object
	byID    map[int64]Object
	// tracked links and the order they were first tracked in
	links   map[Link]uint64
	linkSeq uint64

	name    string
	manager *Manager
	logger  *slog.Logger

	objectAlignment   int
	dataAlignment     int
	metadataAlignment int
}

func newContainer(o options) *Container {
	return &Container{
		Header:            newHeader(),
		Metadata:          new(Metadata),
		byID:              make(map[int64]Object),
		links:             make(map[Link]uint64),
		name:              o.name,
		manager:           o.manager,
		logger:            o.logger,
		objectAlignment:   o.objectAlignment,
		dataAlignment:     o.dataAlignment,
		metadataAlignment: o.metadataAlignment,
	}
}

// New returns an empty container with a default header.
func New(opts ...Option) *Container {
	return newContainer(newOptions(opts))
}

// Open loads the container at path.  A path ending in ".split0" is read
// together with its numbered sibling parts.  The file is released before
// Open returns.
func Open(path string, reg *Registry, opts ...Option) (*Container, error) {
	src, err := splitfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("splitfile.Open(%s): %w", path, err)
	}
	defer func() {
		_ = src.Close()
	}()

	opts = append([]Option{WithName(containerName(path))}, opts...)
	c, err := Load(src.Bytes(), reg, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

func containerName(path string) string {
	return splitfile.BaseName(path)
}

// Load parses a container from data.  Objects are decoded with the
// representations registered in reg (or NewRegistry() if reg is nil).  No
// object retains a reference to data.
func Load(data []byte, reg *Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	c := newContainer(newOptions(opts))

	r := cursor.NewReader(data)
	h, err := ParseHeader(r)
	if err != nil {
		return nil, fmt.Errorf("ParseHeader: %w", err)
	}
	c.Header = h
	if uint64(len(data)) < uint64(h.FileSize) {
		return nil, fmt.Errorf("file is %d bytes, header says %d: %w", len(data), h.FileSize, ErrTruncatedInput)
	} else if len(data) > int(h.FileSize) {
		c.logger.Warn("ignoring bytes past the declared file size",
			"file", c.name, "declared", h.FileSize, "actual", len(data))
	}

	if err := r.Seek(int64(h.HeaderSize)); err != nil {
		return nil, err
	}
	m, err := ParseMetadata(r, c.metadataAlignment)
	if err != nil {
		return nil, fmt.Errorf("ParseMetadata: %w", err)
	}
	c.Metadata = m

	if err := r.AlignTo(c.dataAlignment); err != nil {
		return nil, fmt.Errorf("object data alignment: %w", err)
	}
	if r.Pos() != int64(h.ObjectDataOffset) {
		return nil, fmt.Errorf("%w: object data starts at %d, header says %d", ErrLayoutMismatch, r.Pos(), h.ObjectDataOffset)
	}

	objectData := data[h.ObjectDataOffset:h.FileSize]
	self := weak.Make(c)
	c.objects = make([]Object, 0, len(m.Objects))
	for _, info := range m.Objects {
		if _, dup := c.byID[info.ObjectID]; dup {
			return nil, fmt.Errorf("%w: object %d listed twice", ErrLayoutMismatch, info.ObjectID)
		}
		end := uint64(info.DataOffset) + uint64(info.DataSize)
		if end > uint64(len(objectData)) {
			return nil, fmt.Errorf("object %d at [%d, %d) past end of object data (%d): %w",
				info.ObjectID, info.DataOffset, end, len(objectData), ErrTruncatedInput)
		}
		payload := objectData[info.DataOffset:end]
		info.file = self
		info.loaded = farm.Fingerprint64(payload)

		t := m.Types[info.TypeIndex]
		decode, registered := reg.lookup(t)
		if !registered {
			c.logger.Debug("no registered representation, using fallback",
				"object", info.ObjectID, "class", t.ClassID, "script", t.ScriptHash)
		}
		or := cursor.NewReaderAt(payload, int64(info.DataOffset))
		obj, err := decode(info, or)
		if err != nil && !registered {
			// the generic script shape didn't fit; keep the bytes as-is
			c.logger.Warn("fallback decode failed, keeping object opaque",
				"object", info.ObjectID, "class", t.ClassID, "err", err)
			or = cursor.NewReaderAt(payload, int64(info.DataOffset))
			obj, err = decodeOpaque(info, or)
		}
		if err != nil {
			return nil, fmt.Errorf("decode object %d (class %d): %w", info.ObjectID, t.ClassID, err)
		}
		if obj.Info() != info {
			return nil, fmt.Errorf("%w: decoder for class %d returned an object with a different directory entry", ErrInvalidObject, t.ClassID)
		}
		if or.Len() > 0 {
			c.logger.Warn("decoder left trailing bytes unread",
				"object", info.ObjectID, "class", t.ClassID, "trailing", or.Len())
		}
		c.objects = append(c.objects, obj)
		c.byID[info.ObjectID] = obj
	}

	c.logger.Debug("loaded container",
		"file", c.name, "types", len(m.Types), "externals", len(m.Externals), "objects", len(c.objects))
	return c, nil
}

// Name returns the file name the container is known by.
func (c *Container) Name() string {
	return c.name
}

// Manager returns the Manager used for cross-file pointers, or nil.
func (c *Container) Manager() *Manager {
	return c.manager
}

// Len returns the number of objects.
func (c *Container) Len() int {
	return len(c.objects)
}

// Objects returns the objects in directory order.  The slice is a copy.
func (c *Container) Objects() []Object {
	return slices.Clone(c.objects)
}

// Object returns the object with the given identifier.
func (c *Container) Object(id int64) (Object, bool) {
	obj, ok := c.byID[id]
	return obj, ok
}

// FindByID returns the object with the given identifier as a T.  ok is
// false if there is no such object; err is ErrTypeMismatch if there is one
// but it isn't a T.
func FindByID[T Object](c *Container, id int64) (obj T, ok bool, err error) {
	found, ok := c.byID[id]
	if !ok {
		return obj, false, nil
	}
	obj, ok = found.(T)
	if !ok {
		return obj, false, fmt.Errorf("%w: object %d is %T, want %T", ErrTypeMismatch, id, found, obj)
	}
	return obj, true, nil
}

// FindAll returns a sequence of every object that is a T and satisfies
// pred (a nil pred matches everything).  Each iteration walks the
// container's current objects.
func FindAll[T Object](c *Container, pred func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, obj := range c.objects {
			t, ok := obj.(T)
			if !ok || (pred != nil && !pred(t)) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// NextObjectID returns one more than the largest object identifier, or 1
// for an empty container.
func (c *Container) NextObjectID() int64 {
	var maxID int64
	for _, info := range c.Metadata.Objects {
		maxID = max(maxID, info.ObjectID)
	}
	return maxID + 1
}

// AddObject appends obj to the object directory.  If assignID is set obj
// gets NextObjectID(); otherwise its identifier must already be set.  The
// identifier must be positive and unused, and the type index must name an
// existing type.  On error the container is unchanged.
func (c *Container) AddObject(obj Object, assignID bool) error {
	info := obj.Info()
	if info == nil {
		return fmt.Errorf("%w: object has no directory entry", ErrInvalidObject)
	}
	if owner := info.File(); owner != nil {
		return fmt.Errorf("%w: object %d already belongs to %q", ErrInvalidObject, info.ObjectID, owner.Name())
	}
	id := info.ObjectID
	if assignID {
		id = c.NextObjectID()
	}
	if id <= 0 {
		return fmt.Errorf("%w: object id %d must be > 0", ErrInvalidObject, id)
	}
	if _, exists := c.byID[id]; exists {
		return fmt.Errorf("%w: object id %d already exists", ErrInvalidObject, id)
	}
	if info.TypeIndex < 0 || int(info.TypeIndex) >= len(c.Metadata.Types) {
		return fmt.Errorf("%w: type index %d out of range (%d types)", ErrInvalidObject, info.TypeIndex, len(c.Metadata.Types))
	}

	info.ObjectID = id
	info.file = weak.Make(c)
	c.Metadata.Objects = append(c.Metadata.Objects, info)
	c.objects = append(c.objects, obj)
	c.byID[id] = obj
	return nil
}

// DeleteObject removes obj from the container.  Pointers to obj held by
// other objects are left as they are and will no longer resolve; callers
// should clear or relink them first (see ReferencesTo and Relink).
// Pointers held by obj are disposed.
func (c *Container) DeleteObject(obj Object) error {
	info := obj.Info()
	if info == nil {
		return fmt.Errorf("%w: object has no directory entry", ErrInvalidObject)
	}
	i := slices.Index(c.objects, obj)
	if i < 0 || c.byID[info.ObjectID] != obj {
		return fmt.Errorf("%w: object %d is not in %q", ErrInvalidObject, info.ObjectID, c.name)
	}
	j := slices.Index(c.Metadata.Objects, info)
	if j < 0 {
		return fmt.Errorf("%w: object %d has no directory entry in %q", ErrInvalidObject, info.ObjectID, c.name)
	}

	if dangling := c.ReferencesTo(obj); len(dangling) > 0 {
		c.logger.Warn("deleting object that is still referenced",
			"file", c.name, "object", info.ObjectID, "references", len(dangling))
	}
	c.disposeOwnedBy(obj)

	c.objects = slices.Delete(c.objects, i, i+1)
	c.Metadata.Objects = slices.Delete(c.Metadata.Objects, j, j+1)
	delete(c.byID, info.ObjectID)
	info.file = weak.Pointer[Container]{}
	return nil
}

// ReferencesTo returns the smart pointers bound to obj, ordered by the
// identifier of the object holding them and then by when they were bound,
// so the elements of a pointer array come back in array order.  Pointers
// are bound when they are read or created, if their target container is
// open at that time, and whenever they are resolved.
//
// Only SmartPtr fields are tracked.  Plain Pointer values, such as the
// GameObject and Script fields of MonoBehaviourHeader, are neither reported
// here nor updated by Relink.
func (c *Container) ReferencesTo(obj Object) []Link {
	info := obj.Info()
	if info == nil || info.File() != c {
		return nil
	}
	var refs []Link
	for l := range c.links {
		if l.Pointer().ObjectID == info.ObjectID {
			refs = append(refs, l)
		}
	}
	slices.SortFunc(refs, func(a, b Link) int {
		if n := compareOwners(a.Owner(), b.Owner()); n != 0 {
			return n
		}
		return cmp.Compare(c.links[a], c.links[b])
	})
	return refs
}

func compareOwners(a, b Object) int {
	var aID, bID int64
	if a != nil && a.Info() != nil {
		aID = a.Info().ObjectID
	}
	if b != nil && b.Info() != nil {
		bID = b.Info().ObjectID
	}
	switch {
	case aID < bID:
		return -1
	case aID > bID:
		return 1
	}
	return 0
}

// Relink points every smart pointer bound to from at to instead, and
// returns how many were changed.  If any of them can't point at to, none
// are changed.
func (c *Container) Relink(from, to Object) (int, error) {
	refs := c.ReferencesTo(from)
	for _, l := range refs {
		if err := l.check(to); err != nil {
			return 0, fmt.Errorf("relink: %w", err)
		}
	}
	for i, l := range refs {
		if err := l.Retarget(to); err != nil {
			return i, err
		}
	}
	return len(refs), nil
}

func (c *Container) trackLink(l Link) {
	if _, ok := c.links[l]; ok {
		return
	}
	c.linkSeq++
	c.links[l] = c.linkSeq
}

func (c *Container) untrackLink(l Link) {
	delete(c.links, l)
}

// disposeOwnedBy disposes pointers held by obj, in this container and in
// every container registered with the same Manager.
func (c *Container) disposeOwnedBy(obj Object) {
	containers := []*Container{c}
	if c.manager != nil {
		for _, name := range c.manager.Names() {
			if other, ok := c.manager.Lookup(name); ok && other != c {
				containers = append(containers, other)
			}
		}
	}
	for _, other := range containers {
		for l := range other.links {
			if l.Owner() == obj {
				l.Dispose()
			}
		}
	}
}

// pointerTo returns the pointer, as stored in c, to target.
func (c *Container) pointerTo(target Object) (Pointer, error) {
	info := target.Info()
	file := info.File()
	if file == nil || info.ObjectID <= 0 {
		return Pointer{}, fmt.Errorf("%w: pointer target is not in a container", ErrInvalidObject)
	}
	if file == c {
		return info.LocalPointer(), nil
	}
	fileIndex, ok := c.FileIndexForName(file.Name())
	if !ok {
		return Pointer{}, fmt.Errorf("%w: %q is not an external file of %q", ErrReferenceUnresolved, file.Name(), c.name)
	}
	return Pointer{FileIndex: fileIndex, ObjectID: info.ObjectID}, nil
}

// externalContainer returns the open container for file index i > 0.
func (c *Container) externalContainer(i int32) *Container {
	ext, ok := c.Metadata.External(i)
	if !ok {
		return nil
	}
	target, ok := c.manager.Lookup(ext.FileName)
	if !ok {
		return nil
	}
	return target
}

// FileIndexForName returns the file index pointers in c use for the
// container named name: 0 for c itself, i > 0 for external file i-1.
func (c *Container) FileIndexForName(name string) (int32, bool) {
	if name != "" && name == c.name {
		return 0, true
	}
	return c.Metadata.FileIndexForName(name)
}

// NameForFileIndex returns the file name behind a file index: c's own name
// for 0, the external file name otherwise.
func (c *Container) NameForFileIndex(i int32) (string, bool) {
	if i == 0 {
		return c.name, true
	}
	ext, ok := c.Metadata.External(i)
	if !ok {
		return "", false
	}
	return ext.FileName, true
}

// TypeIndexFor returns the index of the type with the given class and
// script hash, adding a new type descriptor if there isn't one.
func (c *Container) TypeIndexFor(classID int32, scriptHash uuid.UUID) int32 {
	if i, ok := c.Metadata.TypeIndexFor(classID, scriptHash); ok {
		return i
	}
	t := TypeDescriptor{ClassID: classID, ScriptIndex: -1}
	if classID == ClassMonoBehaviour {
		t.ScriptHash = scriptHash
	}
	return c.Metadata.AddType(t)
}

// Bytes serializes the container.  Object offsets and sizes in the
// directory and every size in the header are recomputed.
func (c *Container) Bytes() ([]byte, error) {
	// object data first: the directory records where each object landed
	objects := cursor.NewWriter(0)
	var changed int
	for i, obj := range c.objects {
		info := c.Metadata.Objects[i]
		if obj.Info() != info {
			return nil, fmt.Errorf("invariant broken: object %d out of step with directory entry %d", i, info.ObjectID)
		}
		start := objects.Len()
		if err := obj.Encode(objects); err != nil {
			return nil, fmt.Errorf("encode object %d: %w", info.ObjectID, err)
		}
		size := objects.Len() - start
		if uint64(start) > math.MaxUint32 || uint64(size) > math.MaxUint32 {
			return nil, fmt.Errorf("object %d at %d (%d bytes) past 4 GB limit", info.ObjectID, start, size)
		}
		info.DataOffset = uint32(start)
		info.DataSize = uint32(size)
		if farm.Fingerprint64(objects.Bytes()[start:]) != info.loaded {
			changed++
		}
		objects.AlignTo(c.objectAlignment)
	}

	h := c.Header
	if h.HeaderSize < MinHeaderSize {
		h.HeaderSize = MinHeaderSize
	}
	meta := cursor.NewWriter(int64(h.HeaderSize))
	c.Metadata.Encode(meta, c.metadataAlignment)
	meta.AlignTo(c.dataAlignment)

	total := uint64(h.HeaderSize) + uint64(meta.Len()) + uint64(objects.Len())
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("container of %d bytes past 4 GB limit", total)
	}
	h.MetadataSize = uint32(meta.Len())
	h.ObjectDataOffset = h.HeaderSize + h.MetadataSize
	h.FileSize = uint32(total)
	c.Header = h

	out := cursor.NewWriter(0)
	h.Encode(out)
	_, _ = out.Write(meta.Bytes())
	_, _ = out.Write(objects.Bytes())

	c.logger.Debug("serialized container",
		"file", c.name, "objects", len(c.objects), "changed", changed,
		"metadataSize", h.MetadataSize, "fileSize", h.FileSize)
	return out.Bytes(), nil
}

// WriteTo serializes the container to w.
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	b, err := c.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// WriteFile serializes the container to path, replacing any existing file
// only once the new contents are fully written.
func (c *Container) WriteFile(path string) error {
	b, err := c.Bytes()
	if err != nil {
		return err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "assets-write.*.tmp")
	if err != nil {
		return fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}
	if n, err := f.Write(b); err != nil {
		cleanup()
		return fmt.Errorf("f.Write: %w", err)
	} else if n != len(b) {
		cleanup()
		return fmt.Errorf("f.Write: short write of %d (wanted %d)", n, len(b))
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("f.Close: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("os.Rename: %w", err)
	}
	return nil
}
