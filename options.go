// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package assets

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	defaultObjectAlignment   = 8
	defaultDataAlignment     = 16
	defaultMetadataAlignment = 4
)

// Option configures a Container.
type Option func(*options)

type options struct {
	logger            *slog.Logger
	manager           *Manager
	name              string
	objectAlignment   int
	dataAlignment     int
	metadataAlignment int
}

func newOptions(opts []Option) options {
	o := options{
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		objectAlignment:   defaultObjectAlignment,
		dataAlignment:     defaultDataAlignment,
		metadataAlignment: defaultMetadataAlignment,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets an optional logger for load and save diagnostics.
// If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithManager sets the Manager used to resolve pointers into other
// containers.
func WithManager(m *Manager) Option {
	return func(o *options) {
		o.manager = m
	}
}

// WithName sets the file name the container is known by.  Open defaults it
// to the base name of the path.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithObjectAlignment sets the alignment between consecutive objects in the
// object data region (8 by default).
func WithObjectAlignment(n int) Option {
	return func(o *options) {
		o.objectAlignment = mustPositive(n)
	}
}

// WithDataAlignment sets the alignment, from the start of the file, of the
// object data region (16 by default).
func WithDataAlignment(n int) Option {
	return func(o *options) {
		o.dataAlignment = mustPositive(n)
	}
}

// WithMetadataAlignment sets the alignment applied before the reserved field
// that ends the metadata (4 by default).
func WithMetadataAlignment(n int) Option {
	return func(o *options) {
		o.metadataAlignment = mustPositive(n)
	}
}

func mustPositive(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("alignment must be positive, got %d", n))
	}
	return n
}
