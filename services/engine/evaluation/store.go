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
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// ResultStore persists evaluation reports for trend tracking.
type ResultStore interface {
	// StoreReport writes a full report: one point per row plus a run
	// summary point.
	StoreReport(ctx context.Context, report *datatypes.EvalReport) error
}

// NopResultStore discards reports. Used when no time-series backend is
// configured.
type NopResultStore struct{}

func (NopResultStore) StoreReport(context.Context, *datatypes.EvalReport) error { return nil }

// =============================================================================
// InfluxDB Implementation
// =============================================================================

// InfluxResultStore writes reports to InfluxDB so run-over-run quality
// can be charted.
type InfluxResultStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxResultStore creates a store from environment configuration:
// INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET.
func NewInfluxResultStore() *InfluxResultStore {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		url = "http://localhost:8086"
	}
	org := os.Getenv("INFLUXDB_ORG")
	if org == "" {
		org = "ragline"
	}
	bucket := os.Getenv("INFLUXDB_BUCKET")
	if bucket == "" {
		bucket = "evaluations"
	}

	client := influxdb2.NewClient(url, os.Getenv("INFLUXDB_TOKEN"))
	return &InfluxResultStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

// StoreReport implements the ResultStore interface.
func (s *InfluxResultStore) StoreReport(ctx context.Context, report *datatypes.EvalReport) error {
	now := time.Now()

	for i, row := range report.Rows {
		p := influxdb2.NewPointWithMeasurement("eval_row").
			AddTag("run_id", report.RunID).
			AddField("row_index", i).
			AddField("exact_match", row.Scores.ExactMatch).
			AddField("semantic_similarity", row.Scores.SemanticSimilarity).
			AddField("keyword_precision", row.Scores.KeywordPrecision).
			AddField("keyword_recall", row.Scores.KeywordRecall).
			AddField("context_precision", row.Scores.ContextPrecision).
			AddField("context_recall", row.Scores.ContextRecall).
			AddField("latency_ms", row.Scores.LatencyMs).
			AddField("score", row.Scores.Score).
			SetTime(now)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("write eval row point: %w", err)
		}
	}

	summary := influxdb2.NewPointWithMeasurement("eval_run").
		AddTag("run_id", report.RunID).
		AddField("rows", len(report.Rows)).
		AddField("overall_percent", report.OverallPercent).
		AddField("semantic_similarity", report.Overall.SemanticSimilarity).
		AddField("keyword_recall", report.Overall.KeywordRecall).
		AddField("context_precision", report.Overall.ContextPrecision).
		AddField("context_recall", report.Overall.ContextRecall).
		SetTime(now)
	if err := s.writeAPI.WritePoint(ctx, summary); err != nil {
		return fmt.Errorf("write eval summary point: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxResultStore) Close() {
	s.client.Close()
}

var _ ResultStore = (*InfluxResultStore)(nil)
