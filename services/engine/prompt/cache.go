// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prompt

import (
	"log/slog"
	"sync"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// Cache memoizes the static prompt portion keyed by the profile
// fingerprint.
//
// # Description
//
// A profile edit changes the fingerprint, so the next turn misses the
// cache and re-renders; stale entries for old fingerprints are evicted
// per tenant. Concurrent misses for the same fingerprint may both
// render — the render is deterministic, so last write wins and both
// callers see identical text.
type Cache struct {
	mu sync.RWMutex
	// entries maps tenant ID to the single cached rendering for that
	// tenant's current fingerprint.
	entries map[string]cacheEntry
}

type cacheEntry struct {
	fingerprint string
	static      string
}

// NewCache creates an empty prompt cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Static returns the static prompt for profile, rendering on miss.
//
// # Inputs
//
//   - profile: The tenant profile for this turn.
//
// # Outputs
//
//   - string: The static prompt text.
//   - bool: True when served from cache.
func (c *Cache) Static(profile *datatypes.TenantProfile) (string, bool) {
	fingerprint := profile.Fingerprint()

	c.mu.RLock()
	entry, ok := c.entries[profile.ID]
	c.mu.RUnlock()
	if ok && entry.fingerprint == fingerprint {
		return entry.static, true
	}

	static := BuildStatic(profile)

	c.mu.Lock()
	c.entries[profile.ID] = cacheEntry{fingerprint: fingerprint, static: static}
	c.mu.Unlock()

	if ok {
		slog.Debug("Prompt cache invalidated by profile change", "tenant_id", profile.ID)
	}
	return static, false
}

// Invalidate drops any cached rendering for a tenant. Used when the
// profile source reloads and the old text must not be served even once.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached rendering.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of cached renderings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
