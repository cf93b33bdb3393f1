// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import "math"

// DiversityWeight is the MMR trade-off between relevance to the query
// and dissimilarity among selected chunks. 0 is pure top-K similarity;
// higher values penalize near-duplicate chunks harder.
const DiversityWeight = 0.3

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero when either vector is empty, zero-length, or the dims differ.
func CosineSimilarity(a, b []float32) float64 {
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

// SelectMMR re-ranks candidates by maximal marginal relevance and
// returns the top k.
//
// # Description
//
// Greedy selection: each round picks the candidate maximizing
//
//	(1-diversity) * sim(query, candidate) - diversity * max sim(candidate, selected)
//
// so the result set stays relevant to the query without collapsing
// into near-duplicate chunks. Each returned candidate's Score is its
// query similarity, clamped to [0,1].
//
// # Inputs
//
//   - queryVector: Embedding of the user query.
//   - candidates: Nearest-neighbor pool, typically larger than k.
//   - k: Result count cap.
//   - diversity: Trade-off weight; pass DiversityWeight.
//
// # Outputs
//
//   - []Candidate: Up to k candidates in selection order.
func SelectMMR(queryVector []float32, candidates []Candidate, k int, diversity float64) []Candidate {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = clamp01(CosineSimilarity(queryVector, c.Vector))
	}

	selected := make([]Candidate, 0, k)
	picked := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				if sim := CosineSimilarity(c.Vector, s.Vector); sim > maxSim {
					maxSim = sim
				}
			}
			score := (1-diversity)*relevance[i] - diversity*maxSim
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		chosen := candidates[best]
		chosen.Chunk.Score = relevance[best]
		selected = append(selected, chosen)
	}
	return selected
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
