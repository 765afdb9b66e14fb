// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bpowers/assets/cursor"
)

// DecodeFunc builds an Object from its directory entry and a reader bounded
// to the object's payload.  The containing Container is available through
// info.File().
type DecodeFunc func(info *ObjectInfo, r *cursor.Reader) (Object, error)

// Registry maps stored types to the representation built for them on load.
// Script-backed objects are looked up by script hash and fall back to
// MonoBehaviourObject; other classes are looked up by class identifier and
// fall back to OpaqueObject.  The zero Registry has no built-in
// representations; NewRegistry adds them.  A Registry must be fully
// populated before it is passed to Load.
type Registry struct {
	scripts map[uuid.UUID]DecodeFunc
	classes map[int32]DecodeFunc
}

// NewRegistry returns a Registry with the built-in class representations
// (currently AudioClipObject) registered.
func NewRegistry() *Registry {
	reg := &Registry{
		scripts: make(map[uuid.UUID]DecodeFunc),
		classes: make(map[int32]DecodeFunc),
	}
	reg.classes[ClassAudioClip] = decodeAudioClip
	return reg
}

// RegisterScript sets the decoder for script-backed objects whose type has
// the given script hash.
func (reg *Registry) RegisterScript(scriptHash uuid.UUID, fn DecodeFunc) {
	if reg.scripts == nil {
		reg.scripts = make(map[uuid.UUID]DecodeFunc)
	}
	reg.scripts[scriptHash] = fn
}

// RegisterClass sets the decoder for objects of a non-script class,
// replacing any built-in one.
func (reg *Registry) RegisterClass(classID int32, fn DecodeFunc) error {
	if classID == ClassMonoBehaviour {
		return fmt.Errorf("class %d is script-backed: use RegisterScript", classID)
	}
	if reg.classes == nil {
		reg.classes = make(map[int32]DecodeFunc)
	}
	reg.classes[classID] = fn
	return nil
}

// lookup returns the decoder for t and whether it was registered (as
// opposed to one of the fallbacks).
func (reg *Registry) lookup(t TypeDescriptor) (DecodeFunc, bool) {
	if t.IsScript() {
		if fn, ok := reg.scripts[t.ScriptHash]; ok {
			return fn, true
		}
		return decodeMonoBehaviour, false
	}
	if fn, ok := reg.classes[t.ClassID]; ok {
		return fn, true
	}
	return decodeOpaque, false
}
