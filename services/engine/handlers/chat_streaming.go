// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lanternworks/ragline/pkg/streamwire"
	"github.com/lanternworks/ragline/services/engine/datatypes"
	"github.com/lanternworks/ragline/services/engine/observability"
	"github.com/lanternworks/ragline/services/engine/orchestrator"
	"github.com/lanternworks/ragline/services/engine/tenant"
)

// heartbeatInterval keeps connections alive through load balancer idle
// timeouts (typically 60s).
const heartbeatInterval = 15 * time.Second

// StreamingChatHandler handles streaming chat over both wire formats.
//
// # Description
//
// Two surfaces carry the same turn pipeline:
//   - HandleChatStream: SSE with hash-chained events, for browsers.
//   - HandleRawStream: a single byte stream interleaving literal answer
//     text with sentinel-wrapped event JSON, for CLI and pipe consumers.
//
// # Thread Safety
//
// Safe for concurrent use; no shared mutable state between requests.
type StreamingChatHandler interface {
	// HandleChatStream processes POST /v1/chat/stream (SSE).
	HandleChatStream(c *gin.Context)

	// HandleRawStream processes POST /v1/chat/raw (sentinel byte stream).
	HandleRawStream(c *gin.Context)
}

type streamingChatHandler struct {
	orch    *orchestrator.Orchestrator
	tenants tenant.Store
}

// NewStreamingChatHandler creates a StreamingChatHandler. Panics on nil
// dependencies.
func NewStreamingChatHandler(orch *orchestrator.Orchestrator, tenants tenant.Store) StreamingChatHandler {
	if orch == nil {
		panic("NewStreamingChatHandler: orch must not be nil")
	}
	if tenants == nil {
		panic("NewStreamingChatHandler: tenants must not be nil")
	}
	return &streamingChatHandler{orch: orch, tenants: tenants}
}

// =============================================================================
// SSE Endpoint
// =============================================================================

// HandleChatStream implements the StreamingChatHandler interface.
func (h *streamingChatHandler) HandleChatStream(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.HandleChatStream")
	defer span.End()

	endpoint := observability.EndpointChatStream
	started := time.Now()

	// Parse before switching to SSE so validation failures stay plain HTTP.
	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	heartbeatDone := make(chan struct{})
	go runHeartbeat(ctx, writer, endpoint, heartbeatDone)
	defer close(heartbeatDone)

	// Accumulate fragments in locked memory for an integrity hash over
	// exactly what was streamed.
	accumulator, accErr := NewAnswerAccumulator()
	if accErr != nil {
		slog.Warn("Answer accumulator unavailable, streaming without integrity hash", "error", accErr)
	} else {
		defer accumulator.Destroy()
	}

	emitter := &sseEmitter{writer: writer, accumulator: accumulator}
	resp, err := h.orch.ProcessTurn(ctx, &req, emitter)
	if err != nil {
		h.writeStreamFailure(ctx, writer, endpoint, req.TenantID, err)
		return
	}

	if accumulator != nil {
		if _, answerHash, ferr := accumulator.Finalize(); ferr == nil {
			slog.Debug("Streamed answer integrity hash",
				"session_id", resp.SessionID, "answer_hash", answerHash)
		}
	}

	if err := writer.WriteDone(resp.SessionID, resp.TTFTMillis); err != nil {
		recordClientDisconnect(endpoint)
		return
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordTurnDuration(endpoint, time.Since(started).Seconds(), true)
		if resp.TTFTMillis > 0 {
			m.RecordTimeToFirstToken(endpoint, float64(resp.TTFTMillis)/1000)
		}
	}
}

// writeStreamFailure emits a client-safe error event. Input errors echo
// their own message; everything else shows only the tenant's configured
// failure text.
func (h *streamingChatHandler) writeStreamFailure(ctx context.Context, writer SSEWriter, endpoint observability.Endpoint, tenantID string, err error) {
	if orchestrator.IsInputError(err) {
		recordError(endpoint, observability.ErrorCodeValidation)
		_ = writer.WriteError(err.Error())
		return
	}
	slog.Error("Streaming turn failed", "endpoint", endpoint, "tenant_id", tenantID, "error", err)
	recordError(endpoint, observability.ErrorCodeLLMError)
	_ = writer.WriteError(clientErrorMessage(ctx, h.tenants, tenantID))
}

// sseEmitter adapts SSEWriter to the orchestrator's event sink.
type sseEmitter struct {
	writer      SSEWriter
	accumulator AnswerAccumulator
}

func (e *sseEmitter) Progress(step datatypes.Step, status datatypes.StepStatus) {
	if err := e.writer.WriteProgress(step, status); err != nil {
		slog.Debug("Failed to write progress event", "error", err)
	}
}

func (e *sseEmitter) Token(content string) error {
	if e.accumulator != nil {
		if err := e.accumulator.Write(content); err != nil {
			slog.Warn("Answer accumulation failed", "error", err)
			e.accumulator = nil
		}
	}
	return e.writer.WriteToken(content)
}

func (e *sseEmitter) Sources(sources []datatypes.SourceInfo) {
	if err := e.writer.WriteSources(sources); err != nil {
		slog.Debug("Failed to write sources event", "error", err)
	}
}

// runHeartbeat sends SSE comments until done closes or the context ends.
// Write failures mean the client is gone; the heartbeat just stops.
func runHeartbeat(ctx context.Context, writer SSEWriter, endpoint observability.Endpoint, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}

func recordClientDisconnect(endpoint observability.Endpoint) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordClientDisconnect(endpoint)
		m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
	}
}

// =============================================================================
// Raw Byte Stream Endpoint
// =============================================================================

// HandleRawStream implements the StreamingChatHandler interface.
func (h *streamingChatHandler) HandleRawStream(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.HandleRawStream")
	defer span.End()

	endpoint := observability.EndpointRawStream
	started := time.Now()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.Writer.Header().Set("Content-Type", "application/octet-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	encoder := streamwire.NewEncoder(c.Writer)
	emitter := &wireEmitter{encoder: encoder, flusher: c.Writer}

	resp, err := h.orch.ProcessTurn(ctx, &req, emitter)
	if err != nil {
		message := clientErrorMessage(ctx, h.tenants, req.TenantID)
		if orchestrator.IsInputError(err) {
			message = err.Error()
			recordError(endpoint, observability.ErrorCodeValidation)
		} else {
			slog.Error("Raw stream turn failed", "tenant_id", req.TenantID, "error", err)
			recordError(endpoint, observability.ErrorCodeLLMError)
		}
		_ = encoder.WriteEvent(datatypes.StreamEvent{
			Type:  datatypes.StreamEventError,
			Error: message,
		})
		c.Writer.Flush()
		return
	}

	_ = encoder.WriteEvent(datatypes.StreamEvent{
		Type:       datatypes.StreamEventDone,
		SessionId:  resp.SessionID,
		TTFTMillis: resp.TTFTMillis,
	})
	c.Writer.Flush()

	if m := observability.DefaultMetrics; m != nil {
		m.RecordTurnDuration(endpoint, time.Since(started).Seconds(), true)
	}
}

// wireEmitter adapts the sentinel-stream encoder to the orchestrator's
// event sink, flushing after every emission so consumers see progress
// in real time.
type wireEmitter struct {
	encoder *streamwire.Encoder
	flusher http.Flusher
}

func (e *wireEmitter) Progress(step datatypes.Step, status datatypes.StepStatus) {
	if err := e.encoder.WriteProgress(step, status); err != nil {
		slog.Debug("Failed to write wire progress", "error", err)
		return
	}
	e.flusher.Flush()
}

func (e *wireEmitter) Token(content string) error {
	if err := e.encoder.WriteText(content); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *wireEmitter) Sources(sources []datatypes.SourceInfo) {
	err := e.encoder.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventSources,
		Sources: sources,
	})
	if err != nil {
		slog.Debug("Failed to write wire sources", "error", err)
		return
	}
	e.flusher.Flush()
}

var (
	_ orchestrator.EventEmitter = (*sseEmitter)(nil)
	_ orchestrator.EventEmitter = (*wireEmitter)(nil)
)
