// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evaluation

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/lanternworks/ragline/services/embedding"
	"github.com/lanternworks/ragline/services/engine/datatypes"
)

var tracer = otel.Tracer("ragline.evaluation")

// Two weightings on purpose. The aggregate leans harder on semantic
// similarity; the per-row score leans harder on context quality so a
// single row with bad retrieval stands out in the report.
const (
	// Aggregate (report-level) weights.
	aggSemanticWeight = 0.60
	aggKeywordWeight  = 0.20
	aggContextWeight  = 0.20

	// Per-row weights.
	rowSemanticWeight = 0.50
	rowKeywordWeight  = 0.20
	rowContextWeight  = 0.30
)

// maxParallelRows bounds concurrent row scoring; each row costs two
// embedding calls.
const maxParallelRows = 8

// Engine scores evaluation batches.
type Engine struct {
	embedder embedding.Embedder
}

// NewEngine creates an evaluation engine. Panics on a nil embedder.
func NewEngine(embedder embedding.Embedder) *Engine {
	if embedder == nil {
		panic("evaluation.NewEngine: nil embedder")
	}
	return &Engine{embedder: embedder}
}

// Evaluate scores every row in req and aggregates the report.
//
// # Description
//
// Rows are scored in parallel with bounded concurrency. The report
// aggregates each metric as its arithmetic mean over rows, then folds
// the means into the weighted overall:
//
//	overall = 0.60*semantic + 0.20*keyword_recall
//	        + 0.20*avg(context_precision, context_recall)
//
// reported as a percentage rounded to the nearest integer. Each row
// additionally carries its own score under the per-row weighting.
//
// # Inputs
//
//   - ctx: Cancels in-flight embedding calls.
//   - req: Validated batch; must hold at least one row.
//
// # Outputs
//
//   - *datatypes.EvalReport: Scored rows in input order plus aggregates.
//   - error: Validation failure or an embedding failure on any row.
func (e *Engine) Evaluate(ctx context.Context, req *datatypes.EvalRequest) (*datatypes.EvalReport, error) {
	ctx, span := tracer.Start(ctx, "evaluation.Engine.Evaluate")
	defer span.End()

	if err := datatypes.Validate(req); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("eval.run_id", runID),
		attribute.Int("eval.rows", len(req.Rows)),
	)

	scored := make([]datatypes.ScoredRow, len(req.Rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRows)
	for i, row := range req.Rows {
		g.Go(func() error {
			scores, err := e.scoreRow(gctx, row)
			if err != nil {
				return err
			}
			scored[i] = datatypes.ScoredRow{Row: row, Scores: scores}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overall := aggregate(scored)
	return &datatypes.EvalReport{
		RunID:          runID,
		Overall:        overall,
		OverallPercent: overallPercent(overall),
		Rows:           scored,
	}, nil
}

// scoreRow computes every metric for one row.
func (e *Engine) scoreRow(ctx context.Context, row datatypes.EvalRow) (datatypes.RowScores, error) {
	semantic, err := SemanticSimilarity(ctx, e.embedder, row.Answer, row.GroundTruth)
	if err != nil {
		return datatypes.RowScores{}, err
	}

	scores := datatypes.RowScores{
		ExactMatch:         ExactMatch(row.Answer, row.GroundTruth),
		SemanticSimilarity: semantic,
		KeywordPrecision:   KeywordPrecision(row.Answer, row.GroundTruth),
		KeywordRecall:      KeywordRecall(row.Answer, row.GroundTruth),
		ContextPrecision:   ContextPrecision(row.Contexts, row.GroundTruth),
		ContextRecall:      ContextRecall(row.Contexts, row.GroundTruth),
		LatencyMs:          row.LatencyMs,
	}
	scores.Score = rowSemanticWeight*scores.SemanticSimilarity +
		rowKeywordWeight*scores.KeywordRecall +
		rowContextWeight*(scores.ContextPrecision+scores.ContextRecall)/2
	return scores, nil
}

// aggregate returns the arithmetic mean of every metric across rows.
func aggregate(rows []datatypes.ScoredRow) datatypes.RowScores {
	if len(rows) == 0 {
		return datatypes.RowScores{}
	}
	var sum datatypes.RowScores
	var latencySum int64
	for _, r := range rows {
		sum.ExactMatch += r.Scores.ExactMatch
		sum.SemanticSimilarity += r.Scores.SemanticSimilarity
		sum.KeywordPrecision += r.Scores.KeywordPrecision
		sum.KeywordRecall += r.Scores.KeywordRecall
		sum.ContextPrecision += r.Scores.ContextPrecision
		sum.ContextRecall += r.Scores.ContextRecall
		sum.Score += r.Scores.Score
		latencySum += r.Scores.LatencyMs
	}
	n := float64(len(rows))
	return datatypes.RowScores{
		ExactMatch:         sum.ExactMatch / n,
		SemanticSimilarity: sum.SemanticSimilarity / n,
		KeywordPrecision:   sum.KeywordPrecision / n,
		KeywordRecall:      sum.KeywordRecall / n,
		ContextPrecision:   sum.ContextPrecision / n,
		ContextRecall:      sum.ContextRecall / n,
		LatencyMs:          latencySum / int64(len(rows)),
		Score:              sum.Score / n,
	}
}

// overallPercent folds metric means into the weighted overall percentage.
func overallPercent(overall datatypes.RowScores) int {
	weighted := aggSemanticWeight*overall.SemanticSimilarity +
		aggKeywordWeight*overall.KeywordRecall +
		aggContextWeight*(overall.ContextPrecision+overall.ContextRecall)/2
	return int(math.Round(weighted * 100))
}
