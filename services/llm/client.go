// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm abstracts text-generation backends behind a single
// interface with blocking and streaming entry points.
package llm

import (
	"context"
	"errors"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// GenerationParams tunes a single generation call. Nil pointer fields
// fall back to backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates events delivered to a StreamCallback.
type StreamEventType string

const (
	// StreamEventToken carries one decoded answer fragment.
	StreamEventToken StreamEventType = "token"

	// StreamEventThinking carries reasoning text from models that
	// expose it. Never forwarded to end users.
	StreamEventThinking StreamEventType = "thinking"

	// StreamEventError carries a mid-stream backend failure.
	StreamEventError StreamEventType = "error"

	// StreamEventDone marks the end of a successful stream.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is one incremental result from a streaming generation.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StreamCallback receives stream events in arrival order. Returning a
// non-nil error aborts the stream; ChatStream surfaces that error.
type StreamCallback func(event StreamEvent) error

// ErrStreamingNotSupported is returned by backends without a streaming API.
var ErrStreamingNotSupported = errors.New("streaming not supported by this backend")

// LLMClient is the standard interface for any text-generation backend.
type LLMClient interface {
	// Generate produces text from a single prompt, blocking.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces the next assistant message for a conversation, blocking.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)

	// ChatStream streams the next assistant message fragment-by-fragment
	// through callback. Returns after the stream finishes or aborts.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}
