// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter writes Server-Sent Events to an HTTP response.
//
// # Description
//
// Abstracts SSE serialization from HTTP mechanics so streaming handlers
// stay testable. Each event is automatically assigned:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//   - Hash: SHA-256 of event content for integrity
//   - PrevHash: hash of the previous event, forming a chain
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; heartbeats and turn
// events arrive from different goroutines.
type SSEWriter interface {
	// WriteEvent writes one event. Id, CreatedAt, Hash, and PrevHash
	// are populated here; flushes immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteProgress writes a phase-transition event.
	WriteProgress(step datatypes.Step, status datatypes.StepStatus) error

	// WriteToken writes one answer fragment.
	WriteToken(content string) error

	// WriteSources writes the ranked source list.
	WriteSources(sources []datatypes.SourceInfo) error

	// WriteError writes a failure event. The message must already be
	// sanitized for end users.
	WriteError(errMsg string) error

	// WriteDone writes the terminal event with the session ID and TTFT.
	WriteDone(sessionID string, ttftMillis int64) error

	// WriteKeepAlive sends an SSE comment (": ping") to hold the
	// connection open through load balancer idle timeouts. Comments are
	// not events and do not advance the hash chain.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter emits events in the standard SSE format:
//
//	event: {type}
//	data: {json}
//
// The hash chain covers every content field plus the previous hash, so
// a consumer can verify nothing in the stream was dropped or reordered.
type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	prevHash string
	mu       sync.Mutex
}

// NewSSEWriter wraps w. Fails when w cannot flush, which SSE requires.
// Call SetSSEHeaders before the first write.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = w.prevHash
	event.Hash = computeEventHash(event)
	w.prevHash = event.Hash

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// computeEventHash hashes every content field. Called with Hash unset.
func computeEventHash(event datatypes.StreamEvent) string {
	sourcesJSON := ""
	if len(event.Sources) > 0 {
		if data, err := json.Marshal(event.Sources); err == nil {
			sourcesJSON = string(data)
		}
	}

	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s|%s|%s|%s|%d",
		event.Id,
		event.Type,
		event.CreatedAt,
		event.PrevHash,
		event.Step,
		event.Status,
		event.Content,
		event.Message,
		event.Error,
		event.SessionId,
		sourcesJSON,
		event.TTFTMillis,
	)
	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

func (w *sseWriter) WriteProgress(step datatypes.Step, status datatypes.StepStatus) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.StreamEventProgress,
		Step:   step,
		Status: status,
	})
}

func (w *sseWriter) WriteToken(content string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventToken,
		Content: content,
	})
}

func (w *sseWriter) WriteSources(sources []datatypes.SourceInfo) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventSources,
		Sources: sources,
	})
}

func (w *sseWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:  datatypes.StreamEventError,
		Error: errMsg,
	})
}

func (w *sseWriter) WriteDone(sessionID string, ttftMillis int64) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:       datatypes.StreamEventDone,
		SessionId:  sessionID,
		TTFTMillis: ttftMillis,
	})
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures the response for SSE streaming. Must run
// before any body write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)
