// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

const acmeYAML = `id: acme
namespace: acme-docs
model: "llama3.1:8b"
temperature: 0.2
max_tokens: 512
instructions: Answer in plain English.
catalog:
  - name: returns.md
    description: Return and refund policy
welcome_message: Welcome to Acme support!
keywords:
  - gizmo
`

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileStoreLoadAndGet(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "acme.yaml", acmeYAML)
	writeProfile(t, dir, "notes.txt", "not a profile")

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	profile, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme-docs", profile.Namespace)
	assert.Equal(t, 512, profile.MaxTokens)
	assert.Equal(t, []string{"gizmo"}, profile.Keywords)
	// Defaults applied on load.
	assert.Equal(t, datatypes.DefaultErrorMessage, profile.ErrorMessage)

	_, err = store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "acme.yaml", acmeYAML)
	writeProfile(t, dir, "broken.yaml", "id: [unclosed")
	writeProfile(t, dir, "incomplete.yaml", "id: incomplete\n") // missing required fields

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{"acme"}, store.IDs())
}

func TestFileStoreGetReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "acme.yaml", acmeYAML)
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	first, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	first.Keywords[0] = "mutated"
	first.Instructions = "mutated"

	second, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "gizmo", second.Keywords[0])
	assert.Equal(t, "Answer in plain English.", second.Instructions)
}

func TestFileStoreReloadPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "acme.yaml", acmeYAML)
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	before, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)

	writeProfile(t, dir, "acme.yaml", acmeYAML+"error_message: Acme hit a snag.\n")
	require.NoError(t, store.Load())

	after, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme hit a snag.", after.ErrorMessage)
	// The fingerprint moved, so cached prompt text keyed on it is dead.
	assert.NotEqual(t, before.Fingerprint(), after.Fingerprint())
}

func TestFileStoreMissingDirectory(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
