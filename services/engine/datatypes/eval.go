// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// =============================================================================
// Evaluation Types
// =============================================================================

// EvalRow is one test case: a question, the answer the engine produced,
// the contexts retrieved while producing it, and the ground truth.
// Rows are independent and may be scored in parallel.
type EvalRow struct {
	Question    string   `json:"question" validate:"required,notblank"`
	Answer      string   `json:"answer" validate:"required"`
	Contexts    []string `json:"contexts"`
	GroundTruth string   `json:"ground_truth" validate:"required,notblank"`
	LatencyMs   int64    `json:"latency_ms" validate:"gte=0"`
}

// RowScores holds every per-row metric for one EvalRow.
//
// # Fields
//
//   - ExactMatch: 1 when the normalized answer equals the normalized
//     ground truth, else 0.
//   - SemanticSimilarity: Cosine similarity over sentence embeddings,
//     clamped to [0,1].
//   - KeywordPrecision/KeywordRecall: Unique-token overlap between the
//     answer and ground truth after stopword removal.
//   - ContextPrecision/ContextRecall: How well the retrieved chunks
//     cover the ground-truth keywords.
//   - LatencyMs: Passed through unchanged from the input row.
//   - Score: The per-row weighted score (distinct weighting from the
//     aggregate formula).
type RowScores struct {
	ExactMatch         float64 `json:"exact_match"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
	KeywordPrecision   float64 `json:"keyword_precision"`
	KeywordRecall      float64 `json:"keyword_recall"`
	ContextPrecision   float64 `json:"context_precision"`
	ContextRecall      float64 `json:"context_recall"`
	LatencyMs          int64   `json:"latency_ms"`
	Score              float64 `json:"score"`
}

// ScoredRow pairs an input row with its computed scores.
type ScoredRow struct {
	Row    EvalRow   `json:"row"`
	Scores RowScores `json:"scores"`
}

// EvalRequest is the batch evaluation entry point payload.
type EvalRequest struct {
	RunID string    `json:"runId" validate:"omitempty,max=128"`
	Rows  []EvalRow `json:"rows" validate:"required,min=1,dive"`
}

// EvalReport is the batch evaluation result: the per-metric arithmetic
// means across rows, the weighted overall percentage, and each scored row.
type EvalReport struct {
	RunID          string      `json:"runId"`
	Overall        RowScores   `json:"overall"`
	OverallPercent int         `json:"overallPercent"`
	Rows           []ScoredRow `json:"rows"`
}
