// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tenant loads and serves per-tenant profiles from YAML files
// and keeps them fresh while the engine runs.
package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// ErrNotFound is returned when no profile exists for a tenant ID.
var ErrNotFound = fmt.Errorf("tenant profile not found")

// Store resolves a tenant ID to its current profile.
type Store interface {
	// Get returns the profile for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*datatypes.TenantProfile, error)
}

// =============================================================================
// File Store
// =============================================================================

// FileStore serves profiles from a directory of YAML files, one file
// per tenant.
//
// # Description
//
// Each *.yaml / *.yml file in the directory holds one TenantProfile.
// Load reads the whole directory; a malformed or invalid file is
// logged and skipped so one bad tenant cannot take the rest down.
// Get returns a copy, so callers can hold a profile across a turn
// without racing a reload.
type FileStore struct {
	dir string

	mu       sync.RWMutex
	profiles map[string]datatypes.TenantProfile
}

// NewFileStore creates a store over dir and performs the initial load.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{
		dir:      dir,
		profiles: make(map[string]datatypes.TenantProfile),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get implements the Store interface.
func (s *FileStore) Get(_ context.Context, id string) (*datatypes.TenantProfile, error) {
	s.mu.RLock()
	profile, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// Copy so a reload never mutates a profile mid-turn.
	out := profile
	out.Catalog = append([]datatypes.CatalogEntry(nil), profile.Catalog...)
	out.Keywords = append([]string(nil), profile.Keywords...)
	return &out, nil
}

// Len returns the number of loaded profiles.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// IDs returns the loaded tenant IDs in no particular order.
func (s *FileStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	return ids
}

// Load re-reads every profile file in the directory and swaps the
// in-memory set atomically.
//
// # Outputs
//
//   - error: Non-nil only when the directory itself is unreadable.
//     Individual bad files are logged and skipped.
func (s *FileStore) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read tenant directory %s: %w", s.dir, err)
	}

	profiles := make(map[string]datatypes.TenantProfile)
	for _, entry := range entries {
		if entry.IsDir() || !isProfileFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		profile, err := readProfile(path)
		if err != nil {
			slog.Warn("Skipping invalid tenant profile", "path", path, "error", err)
			continue
		}
		if _, dup := profiles[profile.ID]; dup {
			slog.Warn("Duplicate tenant ID, keeping first", "tenant_id", profile.ID, "path", path)
			continue
		}
		profiles[profile.ID] = *profile
	}

	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()

	slog.Info("Tenant profiles loaded", "dir", s.dir, "count", len(profiles))
	return nil
}

func isProfileFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func readProfile(path string) (*datatypes.TenantProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var profile datatypes.TenantProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	profile.EnsureDefaults()
	if err := datatypes.Validate(&profile); err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}
	return &profile, nil
}

var _ Store = (*FileStore)(nil)
