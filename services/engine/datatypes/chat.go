// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request, response, and domain types shared
// across the response engine: chat turns, tenant profiles, retrieved chunks,
// stream events, and evaluation rows.
//
// All request types carry validator tags and are checked through the
// package-level Validate helper before any routing or model work begins.
package datatypes

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Validation
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()

	// notblank rejects strings that are empty after trimming whitespace.
	// The builtin "required" tag accepts "   ", which is not a usable query.
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate runs struct validation against any datatypes request type.
//
// # Inputs
//
//   - s: Struct with validator tags.
//
// # Outputs
//
//   - error: Non-nil with field details if validation failed.
func Validate(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// =============================================================================
// Conversation Types
// =============================================================================

// Message roles. A turn pair is one user message followed by one
// assistant message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn. Immutable once created; the
// orchestrator appends new turns but never edits existing ones.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the turn-processing entry point payload.
//
// # Description
//
// Carries one user query plus the caller-held conversation history. The
// history is the caller's persisted window; the engine trims it further
// before it reaches the model.
//
// # Fields
//
//   - TenantID: Tenant whose profile, namespace, and model settings apply.
//   - SessionID: Conversation identifier for memory continuity. Optional;
//     a fresh UUID is assigned when empty.
//   - Query: The user's question.
//   - History: Prior turns, oldest first. May be empty.
//   - EvalMode: When true the turn is an evaluation round-trip; retrieved
//     chunks are echoed back verbatim for scoring.
type ChatRequest struct {
	TenantID  string    `json:"tenantId" validate:"required,notblank,max=128"`
	SessionID string    `json:"sessionId" validate:"omitempty,max=128"`
	Query     string    `json:"query" validate:"required,notblank,max=32768"`
	History   []Message `json:"history" validate:"omitempty,dive"`
	EvalMode  bool      `json:"evalMode"`
}

// EnsureDefaults fills zero-value optional fields in place.
func (r *ChatRequest) EnsureDefaults() {
	r.Query = strings.TrimSpace(r.Query)
	if r.History == nil {
		r.History = []Message{}
	}
}

// ChatResponse is the blocking-path result of one turn.
//
// # Fields
//
//   - Success: False only on hard failure; soft-failed turns report true.
//   - Answer: Final assistant text (may be the tenant fallback sentence).
//   - SessionID: Echoed or newly assigned session identifier.
//   - UpdatedMemory: Trimmed persisted window for the caller to store.
//   - Chunks: Retrieved chunks for this turn. Populated only in eval mode.
//   - Sources: Source labels with relevance scores, ranked.
//   - TTFTMillis: Time to first token. Zero on the blocking path.
type ChatResponse struct {
	Success       bool             `json:"success"`
	Answer        string           `json:"answer"`
	SessionID     string           `json:"sessionId"`
	UpdatedMemory []Message        `json:"updatedMemory"`
	Chunks        []RetrievedChunk `json:"chunks,omitempty"`
	Sources       []SourceInfo     `json:"sources,omitempty"`
	TTFTMillis    int64            `json:"ttftMillis,omitempty"`
}
