// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

var (
	evalDataset string
	evalTenant  string
	evalRunID   string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run an evaluation batch and print the scores",
	Long: `Reads a JSON dataset of evaluation rows, fills in any missing answers
by running each question through the engine in eval mode, then submits
the batch to /v1/eval and prints the report.

Dataset format: a JSON array of objects with "question" and
"ground_truth"; "answer" and "contexts" are optional and generated
when absent (requires --tenant).`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalDataset, "dataset", "", "path to the JSON dataset (required)")
	evalCmd.Flags().StringVar(&evalTenant, "tenant", envOr("RAGLINE_TENANT_ID", ""), "tenant ID for answer generation")
	evalCmd.Flags().StringVar(&evalRunID, "run-id", "", "run identifier (default: assigned by the server)")
	_ = evalCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(evalDataset)
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}
	var rows []datatypes.EvalRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parsing dataset: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("dataset %s holds no rows", evalDataset)
	}

	client := &http.Client{Timeout: 5 * time.Minute}

	for i := range rows {
		if rows[i].Answer != "" {
			continue
		}
		if evalTenant == "" {
			return fmt.Errorf("row %d has no answer and --tenant is not set", i)
		}
		fmt.Fprintf(os.Stderr, "generating answer %d/%d...\n", i+1, len(rows))
		if err := generateRow(client, &rows[i]); err != nil {
			return fmt.Errorf("generating answer for row %d: %w", i, err)
		}
	}

	report, err := submitBatch(client, rows)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// generateRow runs the row's question through the engine in eval mode
// and records the answer, retrieved contexts, and latency.
func generateRow(client *http.Client, row *datatypes.EvalRow) error {
	payload, err := json.Marshal(datatypes.ChatRequest{
		TenantID: evalTenant,
		Query:    row.Question,
		EvalMode: true,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	resp, err := client.Post(serverURL+"/v1/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	var turn datatypes.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
		return err
	}

	row.Answer = turn.Answer
	row.LatencyMs = time.Since(started).Milliseconds()
	row.Contexts = row.Contexts[:0]
	for _, chunk := range turn.Chunks {
		row.Contexts = append(row.Contexts, chunk.Text)
	}
	return nil
}

func submitBatch(client *http.Client, rows []datatypes.EvalRow) (*datatypes.EvalReport, error) {
	payload, err := json.Marshal(datatypes.EvalRequest{RunID: evalRunID, Rows: rows})
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(serverURL+"/v1/eval", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("eval request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	var report datatypes.EvalReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

func printReport(report *datatypes.EvalReport) {
	fmt.Printf("Run:     %s\n", report.RunID)
	fmt.Printf("Overall: %d%%\n\n", report.OverallPercent)
	fmt.Printf("%-10s %-10s %-10s %-10s %-10s %-8s\n",
		"semantic", "kw_prec", "kw_recall", "ctx_prec", "ctx_recall", "latency")
	fmt.Printf("%-10.3f %-10.3f %-10.3f %-10.3f %-10.3f %dms\n\n",
		report.Overall.SemanticSimilarity,
		report.Overall.KeywordPrecision,
		report.Overall.KeywordRecall,
		report.Overall.ContextPrecision,
		report.Overall.ContextRecall,
		report.Overall.LatencyMs,
	)
	for i, scored := range report.Rows {
		fmt.Printf("%3d. score=%.3f semantic=%.3f  %s\n",
			i+1, scored.Scores.Score, scored.Scores.SemanticSimilarity,
			truncate(scored.Row.Question, 60))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
