// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embedding

import (
	"context"
	"sync"
)

// LazyEmbedder defers construction of an Embedder until first use and
// guarantees it happens exactly once, even under concurrent first calls.
//
// # Description
//
// Evaluation batches score rows in parallel; each row needs the
// embedding model but loading it is expensive. LazyEmbedder wraps the
// constructor in sync.Once so concurrent rows share one instance and
// never trigger duplicate loads.
//
// A construction failure is sticky: every subsequent call returns the
// same error, keeping behavior deterministic across a batch.
//
// # Thread Safety
//
// Safe for concurrent use.
type LazyEmbedder struct {
	build func() (Embedder, error)

	once     sync.Once
	embedder Embedder
	err      error
}

// NewLazyEmbedder wraps a constructor. Panics on nil; this is a wiring bug.
func NewLazyEmbedder(build func() (Embedder, error)) *LazyEmbedder {
	if build == nil {
		panic("embedding.NewLazyEmbedder: nil constructor")
	}
	return &LazyEmbedder{build: build}
}

// Embed implements the Embedder interface, initializing on first call.
func (l *LazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	l.once.Do(func() {
		l.embedder, l.err = l.build()
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.embedder.Embed(ctx, text)
}

var _ Embedder = (*LazyEmbedder)(nil)
