// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"
	"weak"

	"github.com/bpowers/assets/cursor"
)

// PointerSize is the encoded size of a Pointer.
const PointerSize = 4 + 8

// Pointer identifies an object by file index and object identifier.  File
// index 0 is the container holding the pointer; file index i > 0 is entry
// i-1 of that container's external file table.  The zero Pointer is null.
type Pointer struct {
	FileIndex int32
	ObjectID  int64
}

// IsNull reports whether p refers to no object.
func (p Pointer) IsNull() bool {
	return p.FileIndex == 0 && p.ObjectID == 0
}

func (p Pointer) String() string {
	return fmt.Sprintf("(%d, %d)", p.FileIndex, p.ObjectID)
}

// ReadPointer reads a Pointer from r.
func ReadPointer(r *cursor.Reader) (Pointer, error) {
	var p Pointer
	var err error
	if p.FileIndex, err = r.ReadInt32(); err != nil {
		return Pointer{}, err
	}
	if p.ObjectID, err = r.ReadInt64(); err != nil {
		return Pointer{}, err
	}
	return p, nil
}

// Encode writes p to w.
func (p Pointer) Encode(w *cursor.Writer) {
	w.WriteInt32(p.FileIndex)
	w.WriteInt64(p.ObjectID)
}

// Link is the type-erased view of a SmartPtr that containers use to report
// and relink references to an object.
type Link interface {
	// Owner returns the object holding the pointer.
	Owner() Object
	// Pointer returns the current pointer value.
	Pointer() Pointer
	// Retarget points the link at target.
	Retarget(target Object) error
	// Clear makes the link null.
	Clear()
	// Dispose drops the link's bindings.  The target is not affected.
	Dispose()

	// check reports why Retarget(target) would fail, without changing
	// anything.
	check(target Object) error
}

// SmartPtr is a Pointer stored in an object of a specific container.  It
// resolves lazily to an object of type T, either in that container or, for
// file indices > 0, in a sibling container registered with its Manager.
//
// A SmartPtr registers itself with the container holding its target so the
// container can report it from ReferencesTo and update it in Relink.
type SmartPtr[T Object] struct {
	ptr   Pointer
	owner Object
	// container the pointer is stored in
	file weak.Pointer[Container]
	// container whose link set holds this pointer
	tracked weak.Pointer[Container]
}

var _ Link = (*SmartPtr[Object])(nil)

// ReadSmartPtr reads a pointer stored in owner, which must already belong
// to a container (as it does while that container is loading).
func ReadSmartPtr[T Object](owner Object, r *cursor.Reader) (*SmartPtr[T], error) {
	file := owner.Info().File()
	if file == nil {
		return nil, fmt.Errorf("%w: owner of pointer is not in a container", ErrInvalidObject)
	}
	ptr, err := ReadPointer(r)
	if err != nil {
		return nil, err
	}
	p := &SmartPtr[T]{
		ptr:   ptr,
		owner: owner,
		file:  weak.Make(file),
	}
	p.bind()
	return p, nil
}

// ReadSmartPtrArray reads an int32 count followed by that many pointers.
func ReadSmartPtrArray[T Object](owner Object, r *cursor.Reader) ([]*SmartPtr[T], error) {
	return cursor.ReadArray(r, func(r *cursor.Reader) (*SmartPtr[T], error) {
		return ReadSmartPtr[T](owner, r)
	})
}

// WriteSmartPtrArray writes an int32 count followed by every pointer.
func WriteSmartPtrArray[T Object](w *cursor.Writer, ptrs []*SmartPtr[T]) {
	_ = cursor.WriteArray(w, ptrs, func(w *cursor.Writer, p *SmartPtr[T]) error {
		p.Encode(w)
		return nil
	})
}

// NewSmartPtr returns a pointer, stored in owner inside file, to target.
// target must already belong to a container: either file itself, or one
// listed in file's external file table.
func NewSmartPtr[T Object](file *Container, owner Object, target T) (*SmartPtr[T], error) {
	ptr, err := file.pointerTo(target)
	if err != nil {
		return nil, err
	}
	p := &SmartPtr[T]{
		ptr:   ptr,
		owner: owner,
		file:  weak.Make(file),
	}
	p.bind()
	return p, nil
}

// NullSmartPtr returns a null pointer stored in owner inside file.
func NullSmartPtr[T Object](file *Container, owner Object) *SmartPtr[T] {
	return &SmartPtr[T]{
		owner: owner,
		file:  weak.Make(file),
	}
}

func (p *SmartPtr[T]) Owner() Object {
	return p.owner
}

func (p *SmartPtr[T]) Pointer() Pointer {
	return p.ptr
}

func (p *SmartPtr[T]) IsNull() bool {
	return p.ptr.IsNull()
}

// Encode writes the pointer value.
func (p *SmartPtr[T]) Encode(w *cursor.Writer) {
	p.ptr.Encode(w)
}

// targetFile returns the container the pointer's file index names, or nil
// if it isn't open.
func (p *SmartPtr[T]) targetFile() *Container {
	file := p.file.Value()
	if file == nil {
		return nil
	}
	if p.ptr.FileIndex == 0 {
		return file
	}
	return file.externalContainer(p.ptr.FileIndex)
}

func (p *SmartPtr[T]) bind() {
	if p.ptr.IsNull() {
		return
	}
	if target := p.targetFile(); target != nil {
		p.track(target)
	}
}

func (p *SmartPtr[T]) track(c *Container) {
	prev := p.tracked.Value()
	if prev == c {
		return
	}
	if prev != nil {
		prev.untrackLink(p)
	}
	c.trackLink(p)
	p.tracked = weak.Make(c)
}

func (p *SmartPtr[T]) untrack() {
	if prev := p.tracked.Value(); prev != nil {
		prev.untrackLink(p)
	}
	p.tracked = weak.Pointer[Container]{}
}

// Resolve returns the object p points to.  A null pointer resolves to the
// zero T and a nil error.  A pointer whose object or file isn't loaded
// returns ErrReferenceUnresolved, and one whose object isn't a T returns
// ErrTypeMismatch.
func (p *SmartPtr[T]) Resolve() (T, error) {
	var zero T
	if p.ptr.IsNull() {
		return zero, nil
	}
	if p.file.Value() == nil {
		return zero, fmt.Errorf("%w: pointer %s is not bound to a container", ErrReferenceUnresolved, p.ptr)
	}
	target := p.targetFile()
	if target == nil {
		return zero, fmt.Errorf("%w: file index %d of pointer %s is not open", ErrReferenceUnresolved, p.ptr.FileIndex, p.ptr)
	}
	p.track(target)
	obj, ok := target.Object(p.ptr.ObjectID)
	if !ok {
		return zero, fmt.Errorf("%w: object %d not found in %q", ErrReferenceUnresolved, p.ptr.ObjectID, target.Name())
	}
	t, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: object %d is %T, want %T", ErrTypeMismatch, p.ptr.ObjectID, obj, zero)
	}
	return t, nil
}

func (p *SmartPtr[T]) check(target Object) error {
	_, err := p.pointerTo(target)
	return err
}

func (p *SmartPtr[T]) pointerTo(target Object) (Pointer, error) {
	if _, ok := target.(T); !ok {
		var zero T
		return Pointer{}, fmt.Errorf("%w: cannot point %T pointer at %T", ErrTypeMismatch, zero, target)
	}
	file := p.file.Value()
	if file == nil {
		return Pointer{}, fmt.Errorf("%w: pointer %s is not bound to a container", ErrReferenceUnresolved, p.ptr)
	}
	return file.pointerTo(target)
}

// Retarget points p at target, which must be a T.  On error p is
// unchanged.
func (p *SmartPtr[T]) Retarget(target Object) error {
	ptr, err := p.pointerTo(target)
	if err != nil {
		return err
	}
	p.ptr = ptr
	p.bind()
	return nil
}

// Clear makes p null.
func (p *SmartPtr[T]) Clear() {
	p.untrack()
	p.ptr = Pointer{}
}

// Dispose drops p's bindings to its owner and containers.  The pointer
// value is kept, so p still encodes, but it no longer resolves.
func (p *SmartPtr[T]) Dispose() {
	p.untrack()
	p.owner = nil
	p.file = weak.Pointer[Container]{}
}
