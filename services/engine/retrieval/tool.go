// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lanternworks/ragline/services/embedding"
	"github.com/lanternworks/ragline/services/engine/datatypes"
)

var tracer = otel.Tracer("ragline.retrieval")

const (
	// TopK is the number of chunks returned after MMR re-ranking.
	TopK = 4

	// FetchPoolSize is how many nearest neighbors are fetched as the
	// MMR candidate pool. Larger than TopK so re-ranking has room to
	// trade relevance for diversity.
	FetchPoolSize = 12

	// MaxContextChars caps the assembled context text. The cap applies
	// to the concatenation, not individual chunks, bounding prompt cost.
	MaxContextChars = 4000

	// chunkDelimiter separates chunk blocks in the assembled context.
	chunkDelimiter = "\n---\n"
)

// Tool is the knowledge retrieval tool: query in, bounded ranked
// context out.
//
// # Description
//
// Embeds the query, fetches a nearest-neighbor pool from the tenant's
// namespace, re-ranks with MMR, and assembles a capped context string
// with a source-label header per chunk.
//
// Retrieval is a soft dependency. Every backend failure is logged and
// converted to an empty result: callers must treat "no context" as a
// valid low-confidence outcome, not a fatal error.
type Tool struct {
	searcher VectorSearcher
	embedder embedding.Embedder
}

// NewTool creates a Tool. Panics on nil dependencies; these are wiring
// bugs.
func NewTool(searcher VectorSearcher, embedder embedding.Embedder) *Tool {
	if searcher == nil {
		panic("retrieval.NewTool: nil searcher")
	}
	if embedder == nil {
		panic("retrieval.NewTool: nil embedder")
	}
	return &Tool{searcher: searcher, embedder: embedder}
}

// Retrieve maps query to a bounded, ranked context for namespace.
//
// # Inputs
//
//   - ctx: Cancels the embedding and search calls.
//   - namespace: Tenant partition key.
//   - query: Free-text user query.
//
// # Outputs
//
//   - datatypes.RetrievalResult: Context text (≤ MaxContextChars) and
//     the chunks behind it. Empty on soft failure or no matches.
//   - error: Always nil today; kept for interface stability.
func (t *Tool) Retrieve(ctx context.Context, namespace, query string) (datatypes.RetrievalResult, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Tool.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.namespace", namespace))

	queryVector, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return t.softFail(span, "embedding query failed", err)
	}

	pool, err := t.searcher.Search(ctx, namespace, queryVector, FetchPoolSize)
	if err != nil {
		return t.softFail(span, "vector search failed", err)
	}
	if len(pool) == 0 {
		slog.Debug("Retrieval matched no chunks", "namespace", namespace)
		return datatypes.RetrievalResult{}, nil
	}

	selected := SelectMMR(queryVector, pool, TopK, DiversityWeight)

	chunks := make([]datatypes.RetrievedChunk, 0, len(selected))
	blocks := make([]string, 0, len(selected))
	for _, c := range selected {
		chunks = append(chunks, c.Chunk)
		blocks = append(blocks, fmt.Sprintf("[source: %s]\n%s", c.Chunk.Source, c.Chunk.Text))
	}

	contextText := truncateContext(strings.Join(blocks, chunkDelimiter), MaxContextChars)

	span.SetAttributes(
		attribute.Int("retrieval.pool_size", len(pool)),
		attribute.Int("retrieval.selected", len(selected)),
		attribute.Int("retrieval.context_chars", len(contextText)),
	)
	return datatypes.RetrievalResult{ContextText: contextText, Chunks: chunks}, nil
}

// truncateContext caps s at limit bytes, backing up so the cut never
// lands inside a multi-byte rune.
func truncateContext(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// softFail records a backend failure and substitutes the empty result.
func (t *Tool) softFail(span trace.Span, msg string, err error) (datatypes.RetrievalResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	slog.Warn("Retrieval soft-failed, continuing without context", "reason", msg, "error", err)
	return datatypes.RetrievalResult{}, nil
}
