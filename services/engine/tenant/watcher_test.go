// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenant

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWatcherReloadsOnProfileWrite verifies a profile edit reaches the
// store and fires the reload handler after the debounce window.
func TestWatcherReloadsOnProfileWrite(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "acme.yaml", acmeYAML)

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	var reloads atomic.Int32
	watcher, err := NewWatcher(store, func() { reloads.Add(1) })
	require.NoError(t, err)
	watcher.debounce = 50 * time.Millisecond
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	writeProfile(t, dir, "acme.yaml", acmeYAML+"error_message: Updated.\n")

	require.Eventually(t, func() bool {
		if reloads.Load() == 0 {
			return false
		}
		profile, err := store.Get(context.Background(), "acme")
		return err == nil && profile.ErrorMessage == "Updated."
	}, 3*time.Second, 20*time.Millisecond)
}
