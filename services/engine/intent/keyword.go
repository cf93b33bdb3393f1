// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"log/slog"
	"strings"
)

// baseKeywords are domain-agnostic terms that usually indicate a
// knowledge question, regardless of tenant.
var baseKeywords = []string{
	"price", "pricing", "cost", "fee", "plan", "subscription",
	"policy", "policies", "terms", "warranty", "guarantee",
	"refund", "return", "cancel", "cancellation",
	"ship", "shipping", "delivery", "order",
	"product", "feature", "spec", "specification",
	"support", "help with", "how do i", "how to", "setup", "install",
	"account", "login", "password",
	"document", "documentation", "guide", "manual",
}

// KeywordRouter matches the query against a keyword list: the base
// domain-agnostic terms unioned with tenant-specific document keywords.
//
// # Description
//
// The lexical policy runs first as a pre-check, so trivial and
// follow-up queries short-circuit before any keyword matching. Beyond
// that the policy is deliberately conservative: both a keyword match
// and the no-match default classify as needs_retrieval. The keyword
// list is advisory signal, never a gate — an unmatched query must not
// silently skip retrieval.
type KeywordRouter struct {
	lexical  *LexicalRouter
	keywords []string
}

// NewKeywordRouter creates a KeywordRouter with the base keywords
// unioned with tenantKeywords.
func NewKeywordRouter(tenantKeywords []string) *KeywordRouter {
	seen := make(map[string]struct{}, len(baseKeywords)+len(tenantKeywords))
	keywords := make([]string, 0, len(baseKeywords)+len(tenantKeywords))
	for _, kw := range baseKeywords {
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	for _, kw := range tenantKeywords {
		kw = normalize(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	return &KeywordRouter{
		lexical:  NewLexicalRouter(),
		keywords: keywords,
	}
}

// Route implements the Router interface.
func (r *KeywordRouter) Route(ctx context.Context, query string, historyNonEmpty bool) Intent {
	// Lexical pre-check wins outright; tenant keywords never reclassify
	// a greeting as a knowledge question.
	if pre := r.lexical.Route(ctx, query, historyNonEmpty); pre != IntentNeedsRetrieval {
		return pre
	}

	q := normalize(query)
	if kw, ok := r.matchKeyword(q); ok {
		slog.Debug("Keyword router matched", "keyword", kw)
	}
	// Matched or not, the outcome is the same. The match only exists
	// for debugging signal; see the package doc on the conservative
	// default.
	return IntentNeedsRetrieval
}

// matchKeyword checks multi-word phrase containment and single-word
// prefix stemming ("returns", "returned" match keyword "return").
func (r *KeywordRouter) matchKeyword(q string) (string, bool) {
	words := strings.Fields(q)
	for _, kw := range r.keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(q, kw) {
				return kw, true
			}
			continue
		}
		for _, w := range words {
			if strings.HasPrefix(strings.Trim(w, ".,!?;:'\""), kw) {
				return kw, true
			}
		}
	}
	return "", false
}

var _ Router = (*KeywordRouter)(nil)
