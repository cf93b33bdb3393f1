// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"strings"
)

// shortQueryLimit bounds the starts-with match to short inputs so
// "hi, what does your warranty cover?" is not misread as a greeting.
const shortQueryLimit = 20

// trivialPhrases are greeting/farewell/acknowledgment phrases matched
// exactly, or by prefix on short inputs.
var trivialPhrases = []string{
	"hi", "hello", "hey", "yo",
	"good morning", "good afternoon", "good evening",
	"thanks", "thank you", "thx", "ty",
	"bye", "goodbye", "see you", "later",
	"ok", "okay", "got it", "cool", "great", "nice",
	"yes", "no", "yep", "nope", "sure",
	"how are you", "what's up",
}

// followUpCues signal continuation of the previous exchange. Matched by
// substring; they only count when prior history exists.
var followUpCues = []string{
	"tell me more",
	"explain",
	"elaborate",
	"try again",
	"repeat",
	"go on",
	"continue",
	"more detail",
	"what about",
	"and then",
	"why is that",
}

// LexicalRouter classifies by fixed phrase lists, no model calls.
// Cheapest policy; wrong only on phrasing its lists don't cover, and
// then it errs toward retrieval.
type LexicalRouter struct{}

// NewLexicalRouter creates a LexicalRouter.
func NewLexicalRouter() *LexicalRouter {
	return &LexicalRouter{}
}

// Route implements the Router interface.
func (r *LexicalRouter) Route(_ context.Context, query string, historyNonEmpty bool) Intent {
	q := normalize(query)
	if q == "" {
		return IntentTrivial
	}

	if matchesTrivial(q) {
		return IntentTrivial
	}

	if matchesFollowUpCue(q) {
		if historyNonEmpty {
			return IntentFollowUp
		}
		// A follow-up cue with nothing to follow up on. Retrieve.
		return IntentNeedsRetrieval
	}

	return IntentNeedsRetrieval
}

// matchesTrivial reports whether q is small talk: exact phrase match,
// or prefix match for short inputs ("thanks!!", "hello there").
func matchesTrivial(q string) bool {
	for _, phrase := range trivialPhrases {
		if q == phrase {
			return true
		}
		if len(q) < shortQueryLimit && strings.HasPrefix(q, phrase) {
			return true
		}
	}
	return false
}

func matchesFollowUpCue(q string) bool {
	for _, cue := range followUpCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

var _ Router = (*LexicalRouter)(nil)
