// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evaluation

import "strings"

// ExactMatch is 1 when answer and ground truth are identical after
// trimming and case folding, else 0. Two blank strings match.
func ExactMatch(answer, groundTruth string) float64 {
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(groundTruth)) {
		return 1
	}
	return 0
}

// KeywordPrecision is the fraction of the answer's content words that
// appear in the ground truth. Empty answer keyword set scores 0.
func KeywordPrecision(answer, groundTruth string) float64 {
	answerSet := Keywords(answer)
	if len(answerSet) == 0 {
		return 0
	}
	truthSet := Keywords(groundTruth)
	return float64(intersectionSize(answerSet, truthSet)) / float64(len(answerSet))
}

// KeywordRecall is the fraction of the ground truth's content words
// covered by the answer. Empty ground-truth keyword set scores 0.
func KeywordRecall(answer, groundTruth string) float64 {
	truthSet := Keywords(groundTruth)
	if len(truthSet) == 0 {
		return 0
	}
	answerSet := Keywords(answer)
	return float64(intersectionSize(answerSet, truthSet)) / float64(len(truthSet))
}

// ContextPrecision is the fraction of retrieved contexts that contain
// at least one ground-truth content word. No contexts scores 0: a turn
// that retrieved nothing gets no credit, never a NaN.
func ContextPrecision(contexts []string, groundTruth string) float64 {
	if len(contexts) == 0 {
		return 0
	}
	truthSet := Keywords(groundTruth)
	if len(truthSet) == 0 {
		return 0
	}
	relevant := 0
	for _, c := range contexts {
		if intersectionSize(Keywords(c), truthSet) > 0 {
			relevant++
		}
	}
	return float64(relevant) / float64(len(contexts))
}

// ContextRecall is the fraction of distinct ground-truth content words
// found in any retrieved context.
func ContextRecall(contexts []string, groundTruth string) float64 {
	truthSet := Keywords(groundTruth)
	if len(truthSet) == 0 || len(contexts) == 0 {
		return 0
	}
	covered := make(map[string]struct{})
	for _, c := range contexts {
		contextSet := Keywords(c)
		for word := range truthSet {
			if _, ok := contextSet[word]; ok {
				covered[word] = struct{}{}
			}
		}
	}
	return float64(len(covered)) / float64(len(truthSet))
}
