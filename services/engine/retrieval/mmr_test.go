// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

func cand(source string, vec ...float32) Candidate {
	return Candidate{
		Chunk:  datatypes.RetrievedChunk{Text: "text of " + source, Source: source},
		Vector: vec,
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

// TestSelectMMRPrefersDiversity verifies MMR skips a near-duplicate of
// an already-selected chunk in favor of a less similar but novel one.
func TestSelectMMRPrefersDiversity(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := []Candidate{
		cand("best.md", 0.9, 0.436, 0),        // most relevant
		cand("duplicate.md", 0.894, 0.447, 0), // nearly identical to best
		cand("novel.md", 0.9, -0.436, 0),      // equally relevant, different direction
	}

	got := SelectMMR(query, candidates, 2, DiversityWeight)
	require.Len(t, got, 2)
	assert.Equal(t, "best.md", got[0].Chunk.Source)
	assert.Equal(t, "novel.md", got[1].Chunk.Source)
}

// TestSelectMMRZeroDiversityIsTopK verifies diversity 0 degrades to
// pure similarity ranking.
func TestSelectMMRZeroDiversityIsTopK(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		cand("far.md", 0, 1),
		cand("near.md", 1, 0),
		cand("mid.md", 0.7, 0.7),
	}

	got := SelectMMR(query, candidates, 2, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "near.md", got[0].Chunk.Source)
	assert.Equal(t, "mid.md", got[1].Chunk.Source)
}

func TestSelectMMRBounds(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{cand("a.md", 1, 0), cand("b.md", 0, 1)}

	assert.Nil(t, SelectMMR(query, nil, 4, DiversityWeight))
	assert.Nil(t, SelectMMR(query, candidates, 0, DiversityWeight))
	assert.Len(t, SelectMMR(query, candidates, 10, DiversityWeight), 2)
}

// TestSelectMMRScoresClamped verifies each selected chunk carries its
// query similarity as Score, clamped to [0,1].
func TestSelectMMRScoresClamped(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		cand("aligned.md", 1, 0),
		cand("opposed.md", -1, 0),
	}

	got := SelectMMR(query, candidates, 2, DiversityWeight)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0].Chunk.Score, 1e-9)
	assert.Equal(t, 0.0, got[1].Chunk.Score)
}
