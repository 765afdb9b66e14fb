// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package splitfile reads files that may be stored as numbered parts
// ("name.split0", "name.split1", ...) as one logical byte stream.
package splitfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

const splitMarker = ".split"

// IsSplit reports whether path names the first part of a split file.
func IsSplit(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), splitMarker+"0")
}

// BaseName returns the last element of path with any ".splitN" suffix
// removed.
func BaseName(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndex(strings.ToLower(base), splitMarker)
	if i < 0 {
		return base
	}
	if _, err := strconv.Atoi(base[i+len(splitMarker):]); err != nil {
		return base
	}
	return base[:i]
}

// Parts returns the files making up path in order.  For a path that isn't
// split that is just path; otherwise every sibling "<base>.splitN", sorted
// by N, which must run from 0 without gaps.
func Parts(path string) ([]string, error) {
	if !IsSplit(path) {
		return []string{path}, nil
	}
	// "name.split0" -> "name.split"
	prefix := path[:len(path)-1]
	matches, err := filepath.Glob(globEscape(prefix) + "*")
	if err != nil {
		return nil, fmt.Errorf("filepath.Glob: %w", err)
	}

	type part struct {
		n    int
		path string
	}
	var parts []part
	for _, m := range matches {
		n, err := strconv.Atoi(m[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		parts = append(parts, part{n: n, path: m})
	}
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].n < parts[j].n
	})

	paths := make([]string, len(parts))
	for i, p := range parts {
		if p.n != i {
			return nil, fmt.Errorf("split file %s: missing part %d", path, i)
		}
		paths[i] = p.path
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("split file %s: %w", path, os.ErrNotExist)
	}
	return paths, nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Source is the assembled contents of a possibly-split file.  A single part
// is memory mapped; multiple parts are copied into one buffer.  Close
// releases the mapping, after which Bytes must not be used.
type Source struct {
	data     []byte
	mapped   bool
	isClosed atomic.Bool
}

// Open maps or reads every part of path.
func Open(path string) (*Source, error) {
	paths, err := Parts(path)
	if err != nil {
		return nil, err
	}
	if len(paths) == 1 {
		data, err := mapFile(paths[0])
		if err != nil {
			return nil, err
		}
		return &Source{data: data, mapped: data != nil}, nil
	}

	var sizes []int64
	var total int64
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("os.Stat: %w", err)
		}
		sizes = append(sizes, fi.Size())
		total += fi.Size()
	}
	buf := make([]byte, 0, total)
	for i, p := range paths {
		if buf, err = appendFile(buf, p, sizes[i]); err != nil {
			return nil, err
		}
	}
	return &Source{data: buf}, nil
}

// Bytes returns the full logical contents.
func (s *Source) Bytes() []byte {
	return s.data
}

func (s *Source) Close() error {
	if s.isClosed.Swap(true) {
		return nil
	}
	data := s.data
	s.data = nil
	if !s.mapped {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// mapFile maps path read-only.  Empty files return a nil slice, as they
// can't be mapped.
func mapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	size := fi.Size()
	if size == 0 {
		return nil, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("file %s too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap(%s): %w", path, err)
	}
	if err := unix.Madvise(data, syscall.MADV_SEQUENTIAL); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("madvise: %w", err)
	}
	return data, nil
}

func appendFile(buf []byte, path string, size int64) ([]byte, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return buf, nil
	}
	defer func() {
		_ = unix.Munmap(data)
	}()
	if int64(len(data)) != size {
		return nil, fmt.Errorf("%s changed size while reading: %w", path, io.ErrUnexpectedEOF)
	}
	return append(buf, data...), nil
}

