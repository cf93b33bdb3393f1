// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmbedderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		fmt.Fprint(w, `{"vector":[0.1,0.2,0.3],"dim":3}`)
	}))
	defer server.Close()

	e, err := NewHTTPEmbedder(server.URL)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHTTPEmbedderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "empty vector",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"vector":[],"dim":0}`)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `not json`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()
			e, err := NewHTTPEmbedder(server.URL)
			require.NoError(t, err)
			_, err = e.Embed(context.Background(), "x")
			assert.Error(t, err)
		})
	}
}

type countingEmbedder struct{}

func (countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

// TestLazyEmbedderInitOnce verifies the constructor runs exactly once
// under concurrent first use.
func TestLazyEmbedderInitOnce(t *testing.T) {
	var builds int32
	lazy := NewLazyEmbedder(func() (Embedder, error) {
		atomic.AddInt32(&builds, 1)
		return countingEmbedder{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.Embed(context.Background(), "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

// TestLazyEmbedderStickyError verifies a failed build is not retried.
func TestLazyEmbedderStickyError(t *testing.T) {
	builds := 0
	lazy := NewLazyEmbedder(func() (Embedder, error) {
		builds++
		return nil, assert.AnError
	})

	_, err := lazy.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = lazy.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, builds)
}
