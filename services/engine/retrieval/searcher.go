// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval maps free-text queries onto bounded, ranked textual
// context from a tenant's vector index.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// Candidate is one nearest-neighbor hit with its stored vector, which
// the MMR re-ranker needs for pairwise similarity.
type Candidate struct {
	Chunk  datatypes.RetrievedChunk
	Vector []float32
}

// VectorSearcher is the external nearest-neighbor search primitive.
type VectorSearcher interface {
	// Search returns up to limit candidates nearest to vector within
	// the tenant namespace, most similar first.
	Search(ctx context.Context, namespace string, vector []float32, limit int) ([]Candidate, error)
}

// =============================================================================
// Weaviate Implementation
// =============================================================================

// ChunkClass is the Weaviate class holding indexed document chunks.
const ChunkClass = "KnowledgeChunk"

// WeaviateSearcher implements VectorSearcher over a Weaviate instance.
// Namespace isolation is a where-filter on the chunk's namespace
// property; every tenant's chunks live in one class.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher creates a searcher. Panics on a nil client; this
// is a wiring bug.
func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	if client == nil {
		panic("retrieval.NewWeaviateSearcher: nil weaviate client")
	}
	return &WeaviateSearcher{client: client}
}

// weaviateChunk mirrors the GraphQL result shape for one chunk.
type weaviateChunk struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	Additional struct {
		Distance float64   `json:"distance"`
		Vector   []float32 `json:"vector"`
	} `json:"_additional"`
}

// Search implements the VectorSearcher interface.
func (s *WeaviateSearcher) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]Candidate, error) {
	fields := []graphql.Field{
		{Name: "text"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "distance"},
			{Name: "vector"},
		}},
	}

	where := filters.Where().
		WithPath([]string{"namespace"}).
		WithOperator(filters.Equal).
		WithValueString(namespace)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := s.client.GraphQL().Get().
		WithClassName(ChunkClass).
		WithFields(fields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query returned errors: %v", result.Errors[0].Message)
	}

	// Re-marshal the generic payload into a typed struct.
	raw, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal weaviate result: %w", err)
	}
	var parsed struct {
		Get map[string][]weaviateChunk `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse weaviate result: %w", err)
	}

	hits := parsed.Get[ChunkClass]
	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, Candidate{
			Chunk: datatypes.RetrievedChunk{
				Text:     h.Text,
				Source:   h.Source,
				Distance: h.Additional.Distance,
			},
			Vector: h.Additional.Vector,
		})
	}
	return candidates, nil
}

var _ VectorSearcher = (*WeaviateSearcher)(nil)
