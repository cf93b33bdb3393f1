// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Client Cache
// =============================================================================

// ClientKey identifies one configured client. Repeated lookups with an
// identical key must yield the identical client instance: downstream
// provider prompt caching keys off message-object identity, so handing
// out a fresh client per turn would defeat it.
type ClientKey struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

func (k ClientKey) String() string {
	return fmt.Sprintf("%s|t=%g|max=%d", k.Model, k.Temperature, k.MaxTokens)
}

// ClientFactory builds a backend client for a key's model name.
type ClientFactory func(model string) (LLMClient, error)

// managedClient tracks one cached client's bookkeeping.
type managedClient struct {
	client    LLMClient
	createdAt time.Time
	lastUsed  time.Time
	uses      int64
}

// ClientCache is an explicit, shareable cache of configured LLM clients.
//
// # Description
//
// Construct once, share read-mostly across turns, never a package
// global: tests and multi-instance deployments each build their own.
// Get uses double-checked locking so concurrent first lookups of the
// same key build the client exactly once.
//
// # Thread Safety
//
// Safe for concurrent use.
type ClientCache struct {
	factory ClientFactory
	mu      sync.RWMutex
	clients map[ClientKey]*managedClient
}

// NewClientCache creates a ClientCache. Panics on a nil factory; the
// cache is useless without one and this is a wiring bug.
func NewClientCache(factory ClientFactory) *ClientCache {
	if factory == nil {
		panic("llm.NewClientCache: nil factory")
	}
	return &ClientCache{
		factory: factory,
		clients: make(map[ClientKey]*managedClient),
	}
}

// Get returns the client for key, building it on first use.
//
// # Description
//
// Two calls with equal keys return the exact same instance. A factory
// failure is not cached; the next Get retries.
//
// # Outputs
//
//   - LLMClient: The shared client for this configuration.
//   - error: Non-nil if the factory failed.
func (c *ClientCache) Get(key ClientKey) (LLMClient, error) {
	c.mu.RLock()
	managed, ok := c.clients[key]
	c.mu.RUnlock()
	if ok {
		c.touch(key)
		return managed.client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check: another goroutine may have built it meanwhile.
	if managed, ok := c.clients[key]; ok {
		managed.lastUsed = time.Now()
		managed.uses++
		return managed.client, nil
	}

	client, err := c.factory(key.Model)
	if err != nil {
		return nil, fmt.Errorf("building client for %s: %w", key, err)
	}

	now := time.Now()
	c.clients[key] = &managedClient{
		client:    client,
		createdAt: now,
		lastUsed:  now,
		uses:      1,
	}
	slog.Info("Cached new LLM client",
		"model", key.Model,
		"temperature", key.Temperature,
		"max_tokens", key.MaxTokens,
	)
	return client, nil
}

func (c *ClientCache) touch(key ClientKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if managed, ok := c.clients[key]; ok {
		managed.lastUsed = time.Now()
		managed.uses++
	}
}

// Len returns the number of cached clients.
func (c *ClientCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

// ClientStats is a snapshot of one cached client's bookkeeping.
type ClientStats struct {
	Key       ClientKey
	CreatedAt time.Time
	LastUsed  time.Time
	Uses      int64
}

// Stats returns a snapshot of all cached clients, for diagnostics.
func (c *ClientCache) Stats() []ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ClientStats, 0, len(c.clients))
	for key, m := range c.clients {
		out = append(out, ClientStats{
			Key:       key,
			CreatedAt: m.createdAt,
			LastUsed:  m.lastUsed,
			Uses:      m.uses,
		})
	}
	return out
}
