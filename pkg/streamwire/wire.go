// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package streamwire implements the raw streaming wire format: a single
// byte stream interleaving literal answer text with sentinel-wrapped
// event JSON.
//
// # Wire Format
//
// Events are JSON-encoded StreamEvent objects wrapped in a delimiter
// pair; everything outside a delimiter pair is literal answer text:
//
//	[[ragline-event]]{"type":"progress","step":"searching","status":"active"}[[/ragline-event]]
//	You can return items within 30 days.
//	[[ragline-event]]{"type":"done","sessionId":"abc"}[[/ragline-event]]
//
// # Sentinel Collision
//
// Literal answer text may coincidentally contain the sentinel substring.
// The parser handles this explicitly: a delimited block whose payload
// does not decode as event JSON is replayed verbatim as literal text.
// See TestParserSentinelCollision for the contract.
package streamwire

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// Sentinel delimiter pair wrapping event JSON on the wire.
const (
	SentinelOpen  = "[[ragline-event]]"
	SentinelClose = "[[/ragline-event]]"
)

// =============================================================================
// Encoder
// =============================================================================

// Encoder writes the wire format to an underlying writer.
// Not safe for concurrent use; the orchestrator serializes emissions.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an Encoder over w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteEvent writes one sentinel-wrapped event.
func (e *Encoder) WriteEvent(event datatypes.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal wire event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s%s", SentinelOpen, data, SentinelClose); err != nil {
		return fmt.Errorf("write wire event: %w", err)
	}
	return nil
}

// WriteProgress writes a sentinel-wrapped progress event.
func (e *Encoder) WriteProgress(step datatypes.Step, status datatypes.StepStatus) error {
	return e.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.StreamEventProgress,
		Step:   step,
		Status: status,
	})
}

// WriteText writes literal answer text, unmodified.
func (e *Encoder) WriteText(text string) error {
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(e.w, text); err != nil {
		return fmt.Errorf("write wire text: %w", err)
	}
	return nil
}
