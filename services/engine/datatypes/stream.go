// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// =============================================================================
// Progress Phases
// =============================================================================

// Step identifies which phase of a turn a progress event describes.
type Step string

const (
	// StepProcessing covers intent routing at the start of every turn.
	StepProcessing Step = "processing"

	// StepSearching covers knowledge retrieval. Emitted only on turns
	// that invoke the retrieval tool.
	StepSearching Step = "searching"

	// StepGenerating covers model invocation through the last token.
	StepGenerating Step = "generating"
)

// StepStatus is the lifecycle state of a phase. A phase always moves
// active → complete (or active → error) before the next phase's active.
type StepStatus string

const (
	StatusActive   StepStatus = "active"
	StatusComplete StepStatus = "complete"
	StatusError    StepStatus = "error"
)

// ProgressEvent is one phase transition, consumed by caller UIs to show
// "thinking / searching / writing" indicators. Never persisted.
type ProgressEvent struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
}

// =============================================================================
// Stream Events (SSE wire type)
// =============================================================================

// StreamEvent types written to SSE streams.
const (
	StreamEventProgress = "progress"
	StreamEventToken    = "token"
	StreamEventSources  = "sources"
	StreamEventError    = "error"
	StreamEventDone     = "done"
)

// StreamEvent is a single server-sent event on the streaming endpoint.
//
// # Description
//
// One discriminated-union event. Type selects which payload fields are
// meaningful: progress events carry Step/Status, token events carry
// Content, sources events carry Sources, error events carry Error, and
// done events carry SessionId.
//
// Id, CreatedAt, Hash, and PrevHash are populated by the SSE writer.
// Each event's Hash covers its content and the previous event's hash,
// giving consumers an integrity chain over the whole stream.
type StreamEvent struct {
	Id        string `json:"id,omitempty"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	Hash      string `json:"hash,omitempty"`
	PrevHash  string `json:"prevHash,omitempty"`

	Step    Step       `json:"step,omitempty"`
	Status  StepStatus `json:"status,omitempty"`
	Content string     `json:"content,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`

	SessionId  string       `json:"sessionId,omitempty"`
	Sources    []SourceInfo `json:"sources,omitempty"`
	TTFTMillis int64        `json:"ttftMillis,omitempty"`
}
