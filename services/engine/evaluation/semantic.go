// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evaluation

import (
	"context"
	"fmt"
	"math"

	"github.com/lanternworks/ragline/services/embedding"
)

// SemanticSimilarity embeds answer and ground truth and returns their
// cosine similarity clamped to [0,1].
//
// # Description
//
// Negative cosine means "worse than unrelated" for scoring purposes,
// so the clamp floors it at zero. Either text embedding failing fails
// the row; the caller decides whether that fails the run.
func SemanticSimilarity(ctx context.Context, embedder embedding.Embedder, answer, groundTruth string) (float64, error) {
	a, err := embedder.Embed(ctx, answer)
	if err != nil {
		return 0, fmt.Errorf("embed answer: %w", err)
	}
	b, err := embedder.Embed(ctx, groundTruth)
	if err != nil {
		return 0, fmt.Errorf("embed ground truth: %w", err)
	}
	return clampUnit(cosine(a, b)), nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
