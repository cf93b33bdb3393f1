// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package evaluation scores answer quality offline: lexical overlap,
// context usage, and embedding similarity, aggregated into one report.
package evaluation

import (
	"strings"
	"unicode"
)

// stopwords are excluded from keyword sets. Function words carry no
// signal about whether an answer covered the ground truth.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "can": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"my": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "so": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "there": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "would": {}, "you": {}, "your": {},
}

// Keywords reduces text to its unique content words: lowercased,
// punctuation stripped, stopwords removed.
func Keywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, token := range tokenize(text) {
		if _, stop := stopwords[token]; stop {
			continue
		}
		out[token] = struct{}{}
	}
	return out
}

// tokenize splits text on non-alphanumeric runs, lowercased.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// intersectionSize counts keys present in both sets.
func intersectionSize(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
