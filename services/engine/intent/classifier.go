// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ConfidenceFloor is the minimum top-label score the classifier policy
// accepts. Below it, retrieving is safer than guessing.
const ConfidenceFloor = 0.6

// Candidate labels sent to the zero-shot classifier, mapped back to
// intents in labelIntent.
const (
	labelCasual   = "casual or greeting"
	labelFollowUp = "follow-up or continuation"
	labelSpecific = "specific information request"
)

// LabelScore is one scored candidate label.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ZeroShotClassifier scores a text against candidate labels.
// Implemented by the classifier sidecar client below; mocked in tests.
type ZeroShotClassifier interface {
	Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

// ClassifierRouter routes with a zero-shot text classifier. Highest
// accuracy of the three policies, and the highest latency: one sidecar
// round-trip per turn.
type ClassifierRouter struct {
	classifier ZeroShotClassifier
}

// NewClassifierRouter creates a ClassifierRouter. Panics on a nil
// classifier; this is a wiring bug.
func NewClassifierRouter(classifier ZeroShotClassifier) *ClassifierRouter {
	if classifier == nil {
		panic("intent.NewClassifierRouter: nil classifier")
	}
	return &ClassifierRouter{classifier: classifier}
}

// Route implements the Router interface.
//
// # Description
//
// Scores the query against three candidate labels and picks the top
// one. Degrades to needs_retrieval when the sidecar fails, when the top
// confidence is under ConfidenceFloor, or when a follow-up label has no
// history to follow up on.
func (r *ClassifierRouter) Route(ctx context.Context, query string, historyNonEmpty bool) Intent {
	q := normalize(query)
	if q == "" {
		return IntentTrivial
	}

	scores, err := r.classifier.Classify(ctx, q, []string{labelCasual, labelFollowUp, labelSpecific})
	if err != nil {
		slog.Warn("Intent classifier unavailable, defaulting to retrieval", "error", err)
		return IntentNeedsRetrieval
	}

	top := LabelScore{Score: -1}
	for _, s := range scores {
		if s.Score > top.Score {
			top = s
		}
	}
	if top.Score < ConfidenceFloor {
		return IntentNeedsRetrieval
	}

	intent := labelIntent(top.Label)
	if intent == IntentFollowUp && !historyNonEmpty {
		return IntentNeedsRetrieval
	}
	return intent
}

func labelIntent(label string) Intent {
	switch label {
	case labelCasual:
		return IntentTrivial
	case labelFollowUp:
		return IntentFollowUp
	default:
		return IntentNeedsRetrieval
	}
}

var _ Router = (*ClassifierRouter)(nil)

// =============================================================================
// Classifier Sidecar Client
// =============================================================================

type classifyRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

type classifyResponse struct {
	Scores []LabelScore `json:"scores"`
}

// HTTPClassifier calls a zero-shot classification sidecar's /classify
// endpoint.
type HTTPClassifier struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClassifier creates a client for the given sidecar URL.
func NewHTTPClassifier(baseURL string) (*HTTPClassifier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("classifier service URL is empty")
	}
	return &HTTPClassifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Classify implements the ZeroShotClassifier interface.
func (c *HTTPClassifier) Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error) {
	reqBody, err := json.Marshal(classifyRequest{Text: text, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier service call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	return parsed.Scores, nil
}

var _ ZeroShotClassifier = (*HTTPClassifier)(nil)
