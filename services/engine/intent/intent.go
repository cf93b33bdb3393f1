// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intent classifies incoming queries to decide whether knowledge
// retrieval is needed for a turn.
//
// Three interchangeable routing policies exist because no single
// heuristic is reliable alone: a lexical matcher, a keyword-overlap
// matcher, and a zero-shot classifier. All share one tie-break rule:
// when uncertain, prefer retrieval. Skipping a needed retrieval costs
// correctness; an unnecessary one only costs latency.
package intent

import (
	"context"
	"fmt"
	"strings"
)

// Intent is the routing outcome for one query.
type Intent string

const (
	// IntentTrivial is small talk: greetings, thanks, farewells.
	// Answered without retrieval from a reduced prompt.
	IntentTrivial Intent = "trivial"

	// IntentFollowUp continues the previous exchange; conversation
	// history supplies the context, no fresh retrieval.
	IntentFollowUp Intent = "follow_up"

	// IntentNeedsRetrieval requires a knowledge lookup. This is the
	// default whenever classification is uncertain.
	IntentNeedsRetrieval Intent = "needs_retrieval"
)

// Router decides, per turn, whether retrieval is necessary.
type Router interface {
	// Route classifies query. historyNonEmpty reports whether the
	// conversation has prior turns; follow-up is only possible when it
	// does. Route never fails: policies degrade to IntentNeedsRetrieval.
	Route(ctx context.Context, query string, historyNonEmpty bool) Intent
}

// Strategy selects which routing policy the orchestrator uses.
type Strategy string

const (
	StrategyLexical    Strategy = "lexical"
	StrategyKeyword    Strategy = "keyword"
	StrategyClassifier Strategy = "classifier"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyLexical:
		return StrategyLexical, nil
	case StrategyKeyword:
		return StrategyKeyword, nil
	case StrategyClassifier:
		return StrategyClassifier, nil
	case "":
		return StrategyLexical, nil
	default:
		return "", fmt.Errorf("unknown intent strategy %q (want lexical, keyword, or classifier)", s)
	}
}

// normalize prepares a query for matching: trim and lowercase.
func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
