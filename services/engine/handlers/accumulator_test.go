// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainAccumulatorLifecycle(t *testing.T) {
	acc := newPlainAccumulator()
	assert.NotEmpty(t, acc.ID())
	assert.False(t, acc.CreatedAt().IsZero())

	require.NoError(t, acc.Write("Hello, "))
	require.NoError(t, acc.Write("world."))

	answer, hashStr, err := acc.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", answer)

	want := sha256.Sum256([]byte("Hello, world."))
	assert.Equal(t, hex.EncodeToString(want[:]), hashStr,
		"hash covers exactly the streamed fragments")
}

func TestPlainAccumulatorSingleUse(t *testing.T) {
	acc := newPlainAccumulator()
	require.NoError(t, acc.Write("a"))

	_, _, err := acc.Finalize()
	require.NoError(t, err)

	assert.Error(t, acc.Write("b"), "write after finalize")
	_, _, err = acc.Finalize()
	assert.Error(t, err, "second finalize")
}

func TestPlainAccumulatorDestroyIdempotent(t *testing.T) {
	acc := newPlainAccumulator()
	require.NoError(t, acc.Write("secret"))

	acc.Destroy()
	acc.Destroy()

	assert.Error(t, acc.Write("more"))
	_, _, err := acc.Finalize()
	assert.Error(t, err)
}

func TestPlainAccumulatorOverflow(t *testing.T) {
	acc := newPlainAccumulator()

	require.Error(t, acc.Write(strings.Repeat("x", AccumulatorBufferSize+1)))

	// Overflow is sticky: the partial state is unusable afterwards.
	assert.Error(t, acc.Write("a"))
	_, _, err := acc.Finalize()
	assert.Error(t, err)
}

// The secure path depends on the process's mlock limit, so this test
// accepts either outcome and exercises whichever it gets.
func TestNewAnswerAccumulator(t *testing.T) {
	acc, err := NewAnswerAccumulator()
	if err != nil {
		assert.Contains(t, err.Error(), "mlock")
		return
	}
	defer acc.Destroy()

	require.NoError(t, acc.Write("streamed "))
	require.NoError(t, acc.Write("answer"))

	answer, hashStr, err := acc.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "streamed answer", answer)

	want := sha256.Sum256([]byte("streamed answer"))
	assert.Equal(t, hex.EncodeToString(want[:]), hashStr)
}
