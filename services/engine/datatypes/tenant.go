// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Tenant Profile
// =============================================================================

// CatalogEntry describes one document available in a tenant's index.
// The description is what the model sees; the name doubles as the
// retrieval source label.
type CatalogEntry struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description"`
}

// TenantProfile is the per-tenant configuration read once per turn.
//
// # Description
//
// Owned and updated externally; this engine only reads it. The profile's
// Fingerprint — not its ID — keys the system-prompt cache, so any field
// edit invalidates cached prompt text on the next turn.
//
// # Fields
//
//   - ID: Stable tenant identifier.
//   - Namespace: Vector index partition key for retrieval isolation.
//   - Model: Model name passed to the LLM backend.
//   - Temperature, MaxTokens: Generation parameters; part of the
//     model-client cache key.
//   - Instructions: Tenant-authored behavior instructions, subordinate
//     to the fixed safety preamble.
//   - Catalog: Document catalog entries, order-insensitive.
//   - WelcomeMessage: Greeting text bound into the prompt.
//   - ErrorMessage: The only failure text ever shown to end users.
//   - Keywords: Tenant-specific retrieval keywords for the keyword
//     routing policy.
type TenantProfile struct {
	ID             string         `json:"id" yaml:"id" validate:"required"`
	Namespace      string         `json:"namespace" yaml:"namespace" validate:"required"`
	Model          string         `json:"model" yaml:"model" validate:"required"`
	Temperature    float32        `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int            `json:"maxTokens" yaml:"max_tokens" validate:"gte=0"`
	Instructions   string         `json:"instructions" yaml:"instructions"`
	Catalog        []CatalogEntry `json:"catalog" yaml:"catalog" validate:"omitempty,dive"`
	WelcomeMessage string         `json:"welcomeMessage" yaml:"welcome_message"`
	ErrorMessage   string         `json:"errorMessage" yaml:"error_message"`
	Keywords       []string       `json:"keywords" yaml:"keywords"`
}

// DefaultErrorMessage is used when a tenant has not configured one.
const DefaultErrorMessage = "Sorry, something went wrong while answering. Please try again."

// EnsureDefaults fills zero-value optional fields in place.
func (p *TenantProfile) EnsureDefaults() {
	if p.MaxTokens == 0 {
		p.MaxTokens = 1024
	}
	if p.ErrorMessage == "" {
		p.ErrorMessage = DefaultErrorMessage
	}
}

// Fingerprint returns a stable SHA-256 digest over every profile field.
//
// # Description
//
// The digest keys the system-prompt cache. It covers all fields, not just
// the ID, so a settings edit never serves stale cached instructions.
// Catalog entries and keywords are sorted before hashing so the digest is
// independent of upstream ordering.
//
// # Outputs
//
//   - string: Hex-encoded SHA-256, 64 characters.
func (p *TenantProfile) Fingerprint() string {
	catalog := make([]string, 0, len(p.Catalog))
	for _, e := range p.Catalog {
		catalog = append(catalog, e.Name+"="+e.Description)
	}
	sort.Strings(catalog)

	keywords := make([]string, len(p.Keywords))
	copy(keywords, p.Keywords)
	sort.Strings(keywords)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%g|%d|%s|%s|%s|%s|%s",
		p.ID,
		p.Namespace,
		p.Model,
		p.Temperature,
		p.MaxTokens,
		p.Instructions,
		strings.Join(catalog, "\x1f"),
		p.WelcomeMessage,
		p.ErrorMessage,
		strings.Join(keywords, "\x1f"),
	)
	return hex.EncodeToString(h.Sum(nil))
}

// SortedCatalog returns the catalog entries sorted by name.
// Prompt assembly must be deterministic regardless of upstream ordering.
func (p *TenantProfile) SortedCatalog() []CatalogEntry {
	out := make([]CatalogEntry, len(p.Catalog))
	copy(out, p.Catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
