// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides the HTTP surface of the response engine:
// blocking chat, SSE streaming, the raw byte stream, and evaluation.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/lanternworks/ragline/services/engine/datatypes"
	"github.com/lanternworks/ragline/services/engine/observability"
	"github.com/lanternworks/ragline/services/engine/orchestrator"
	"github.com/lanternworks/ragline/services/engine/tenant"
)

var tracer = otel.Tracer("ragline.handlers")

// ChatHandler handles blocking chat requests.
//
// # Description
//
// POST /v1/chat runs one full turn and returns the complete answer in
// a single response. Streaming callers use StreamingChatHandler instead.
type ChatHandler interface {
	// HandleChat processes POST /v1/chat.
	HandleChat(c *gin.Context)
}

type chatHandler struct {
	orch    *orchestrator.Orchestrator
	tenants tenant.Store
}

// NewChatHandler creates a ChatHandler. Panics on nil dependencies.
func NewChatHandler(orch *orchestrator.Orchestrator, tenants tenant.Store) ChatHandler {
	if orch == nil {
		panic("NewChatHandler: orch must not be nil")
	}
	if tenants == nil {
		panic("NewChatHandler: tenants must not be nil")
	}
	return &chatHandler{orch: orch, tenants: tenants}
}

// HandleChat implements the ChatHandler interface.
func (h *chatHandler) HandleChat(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.HandleChat")
	defer span.End()

	started := time.Now()
	endpoint := observability.EndpointChat

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.orch.ProcessTurn(ctx, &req, orchestrator.NullEmitter{})
	if err != nil {
		h.respondTurnError(c, endpoint, req.TenantID, err)
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordTurnDuration(endpoint, time.Since(started).Seconds(), true)
	}
	c.JSON(http.StatusOK, resp)
}

// respondTurnError maps an orchestration failure onto an HTTP response.
// Only the tenant's configured error message ever reaches the client.
func (h *chatHandler) respondTurnError(c *gin.Context, endpoint observability.Endpoint, tenantID string, err error) {
	if orchestrator.IsInputError(err) {
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slog.Error("Turn failed", "endpoint", endpoint, "tenant_id", tenantID, "error", err)
	recordError(endpoint, observability.ErrorCodeLLMError)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": clientErrorMessage(c.Request.Context(), h.tenants, tenantID),
	})
}

// clientErrorMessage returns the tenant's configured failure text, or
// the default when the profile cannot be read.
func clientErrorMessage(ctx context.Context, tenants tenant.Store, tenantID string) string {
	if profile, err := tenants.Get(ctx, tenantID); err == nil && profile.ErrorMessage != "" {
		return profile.ErrorMessage
	}
	return datatypes.DefaultErrorMessage
}

func recordError(endpoint observability.Endpoint, code observability.ErrorCode) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, code)
	}
}
