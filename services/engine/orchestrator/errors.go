// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// InputError marks a request the caller must fix: validation failures
// and unknown tenants. Maps to a 4xx at the transport layer.
type InputError struct {
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is an InputError anywhere in its chain.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// GenerationError marks a model-side failure during a turn. Hard: the
// turn produced no committable answer.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// =============================================================================
// Soft Failure Detection
// =============================================================================

// toolVocabulary identifies failures rooted in the retrieval/tool side
// rather than the model itself. A match downgrades the failure: the
// turn completes with the fixed fallback sentence instead of an error.
var toolVocabulary = []string{
	"retriev",
	"tool",
	"search",
	"vector",
	"embed",
	"knowledge",
	"weaviate",
}

// IsToolSoftFailure reports whether err's text points at the retrieval
// or tool layer. Case-insensitive substring match over the error chain.
func IsToolSoftFailure(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, word := range toolVocabulary {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// FallbackAnswer is the fixed sentence committed to memory when a turn
// soft-fails. Deliberately generic; tenant-specific failure text goes
// through the profile's ErrorMessage on hard failures instead.
const FallbackAnswer = "I wasn't able to look that up just now. Please try asking again in a moment."
