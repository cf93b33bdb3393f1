// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalRouter(t *testing.T) {
	r := NewLexicalRouter()
	ctx := context.Background()

	tests := []struct {
		name            string
		query           string
		historyNonEmpty bool
		want            Intent
	}{
		{"greeting", "hi", false, IntentTrivial},
		{"greeting with punctuation", "Hello!", false, IntentTrivial},
		{"thanks", "thanks", true, IntentTrivial},
		{"farewell", "bye", true, IntentTrivial},
		{"long query starting with greeting word", "hi, what does your warranty cover for water damage?", false, IntentNeedsRetrieval},
		{"follow-up cue with history", "tell me more", true, IntentFollowUp},
		{"follow-up cue without history", "tell me more", false, IntentNeedsRetrieval},
		{"elaborate with history", "can you elaborate on that?", true, IntentFollowUp},
		{"knowledge question", "what is your return policy?", false, IntentNeedsRetrieval},
		{"empty query", "   ", false, IntentTrivial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(ctx, tt.query, tt.historyNonEmpty))
		})
	}
}

// TestKeywordRouterTrivialWinsOverKeywords pins the pre-check rule:
// a greeting stays trivial even when tenant keywords overlap it.
func TestKeywordRouterTrivialWinsOverKeywords(t *testing.T) {
	r := NewKeywordRouter([]string{"hi-fi audio", "thanks cards"})
	ctx := context.Background()

	assert.Equal(t, IntentTrivial, r.Route(ctx, "hi", false))
	assert.Equal(t, IntentTrivial, r.Route(ctx, "thanks", true))
	assert.Equal(t, IntentFollowUp, r.Route(ctx, "tell me more", true))
}

// TestKeywordRouterConservativeDefault verifies both matched and
// unmatched knowledge queries route to retrieval.
func TestKeywordRouterConservativeDefault(t *testing.T) {
	r := NewKeywordRouter([]string{"gizmo"})
	ctx := context.Background()

	// Keyword match (prefix stem: "pricing" matches "price").
	assert.Equal(t, IntentNeedsRetrieval, r.Route(ctx, "what is the pricing for gizmos?", false))
	// No keyword match at all. Still retrieval.
	assert.Equal(t, IntentNeedsRetrieval, r.Route(ctx, "quux flibbertigibbet?", false))
}

func TestKeywordRouterMatchKeyword(t *testing.T) {
	r := NewKeywordRouter([]string{"extended warranty", "gizmo"})

	tests := []struct {
		query string
		want  bool
	}{
		{"does the extended warranty cover drops", true}, // phrase containment
		{"my gizmos stopped working", true},              // prefix stem
		{"returns process?", true},                       // base keyword stem
		{"hello out there", false},
	}
	for _, tt := range tests {
		_, ok := r.matchKeyword(normalize(tt.query))
		assert.Equal(t, tt.want, ok, tt.query)
	}
}

type fakeClassifier struct {
	scores []LabelScore
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, _ []string) ([]LabelScore, error) {
	return f.scores, f.err
}

func TestClassifierRouter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name            string
		scores          []LabelScore
		err             error
		historyNonEmpty bool
		want            Intent
	}{
		{
			name:   "confident casual",
			scores: []LabelScore{{labelCasual, 0.91}, {labelSpecific, 0.06}, {labelFollowUp, 0.03}},
			want:   IntentTrivial,
		},
		{
			name:            "confident follow-up with history",
			scores:          []LabelScore{{labelFollowUp, 0.88}, {labelCasual, 0.07}, {labelSpecific, 0.05}},
			historyNonEmpty: true,
			want:            IntentFollowUp,
		},
		{
			name:   "confident follow-up without history",
			scores: []LabelScore{{labelFollowUp, 0.88}, {labelCasual, 0.07}, {labelSpecific, 0.05}},
			want:   IntentNeedsRetrieval,
		},
		{
			name:   "below confidence floor",
			scores: []LabelScore{{labelCasual, 0.45}, {labelSpecific, 0.35}, {labelFollowUp, 0.20}},
			want:   IntentNeedsRetrieval,
		},
		{
			name: "classifier unavailable",
			err:  assert.AnError,
			want: IntentNeedsRetrieval,
		},
		{
			name:   "confident specific request",
			scores: []LabelScore{{labelSpecific, 0.95}, {labelCasual, 0.03}, {labelFollowUp, 0.02}},
			want:   IntentNeedsRetrieval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewClassifierRouter(&fakeClassifier{scores: tt.scores, err: tt.err})
			assert.Equal(t, tt.want, r.Route(ctx, "some query", tt.historyNonEmpty))
		})
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"lexical", StrategyLexical, false},
		{"Keyword", StrategyKeyword, false},
		{" classifier ", StrategyClassifier, false},
		{"", StrategyLexical, false},
		{"ml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		}
	}
}
