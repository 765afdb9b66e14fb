// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
)

// Manager holds the containers a caller has opened, keyed by file name, so
// that pointers with a file index > 0 can be followed.  It never opens
// files on its own.  A Manager is not safe for concurrent use.
type Manager struct {
	files map[string]*Container
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{files: make(map[string]*Container)}
}

// Open opens the container at filePath, registers it under its name and
// returns it.  If a container with that name is already registered it is
// returned instead.
func (m *Manager) Open(filePath string, reg *Registry, opts ...Option) (*Container, error) {
	name := containerName(filePath)
	if c, ok := m.files[name]; ok {
		return c, nil
	}
	opts = append([]Option{WithName(name)}, opts...)
	opts = append(opts, WithManager(m))
	c, err := Open(filePath, reg, opts...)
	if err != nil {
		return nil, err
	}
	m.files[name] = c
	return c, nil
}

// Add registers c under c.Name() and points c at m.
func (m *Manager) Add(c *Container) {
	c.manager = m
	m.files[c.Name()] = c
}

// Remove forgets the container registered under name.
func (m *Manager) Remove(name string) {
	delete(m.files, name)
}

// Lookup returns the container registered under name.  External file
// names often carry a directory prefix, so the last path element is tried
// if the full name isn't registered.
func (m *Manager) Lookup(name string) (*Container, bool) {
	if m == nil {
		return nil, false
	}
	if c, ok := m.files[name]; ok {
		return c, true
	}
	c, ok := m.files[path.Base(filepath.ToSlash(name))]
	return c, ok
}

// Names returns the registered names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteAll saves every registered container into dir, named by its
// registered name, in Names order.  It stops at the first failure; files
// written before it are left in place.
func (m *Manager) WriteAll(dir string) error {
	for _, name := range m.Names() {
		if err := m.files[name].WriteFile(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
