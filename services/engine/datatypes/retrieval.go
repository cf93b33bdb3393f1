// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// RetrievedChunk is one matched span of indexed document text.
// Produced transiently per retrieval call; never persisted by the engine.
type RetrievedChunk struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Distance float64 `json:"distance,omitempty"`
}

// SourceInfo is the client-facing view of a retrieved chunk: the source
// label and relevance score, without the chunk text.
type SourceInfo struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// RetrievalResult is what the knowledge tool hands to the orchestrator:
// the assembled, capped context text plus the raw chunks behind it.
// Both are empty when retrieval soft-failed or matched nothing.
type RetrievalResult struct {
	ContextText string           `json:"contextText"`
	Chunks      []RetrievedChunk `json:"chunks"`
}

// SourcesOf projects the chunk list into client-facing source infos,
// preserving rank order.
func (r *RetrievalResult) SourcesOf() []SourceInfo {
	if len(r.Chunks) == 0 {
		return nil
	}
	out := make([]SourceInfo, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		out = append(out, SourceInfo{Source: c.Source, Score: c.Score})
	}
	return out
}
