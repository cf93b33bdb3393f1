// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lanternworks/ragline/services/engine/datatypes"
	"github.com/lanternworks/ragline/services/engine/evaluation"
	"github.com/lanternworks/ragline/services/engine/observability"
)

// EvalHandler handles batch evaluation requests.
type EvalHandler interface {
	// HandleEvaluate processes POST /v1/eval.
	HandleEvaluate(c *gin.Context)
}

type evalHandler struct {
	engine *evaluation.Engine
	store  evaluation.ResultStore
}

// NewEvalHandler creates an EvalHandler. store may be a NopResultStore
// when no time-series backend is configured; engine must not be nil.
func NewEvalHandler(engine *evaluation.Engine, store evaluation.ResultStore) EvalHandler {
	if engine == nil {
		panic("NewEvalHandler: engine must not be nil")
	}
	if store == nil {
		store = evaluation.NopResultStore{}
	}
	return &evalHandler{engine: engine, store: store}
}

// HandleEvaluate implements the EvalHandler interface.
//
// # Description
//
// A malformed batch is rejected whole with 400 before any row is
// scored; there are no partial reports.
func (h *evalHandler) HandleEvaluate(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.HandleEvaluate")
	defer span.End()

	endpoint := observability.EndpointEval

	var req datatypes.EvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := datatypes.Validate(&req); err != nil {
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.engine.Evaluate(ctx, &req)
	if err != nil {
		slog.Error("Evaluation run failed", "run_id", req.RunID, "error", err)
		recordError(endpoint, observability.ErrorCodeInternal)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}

	if err := h.store.StoreReport(ctx, report); err != nil {
		// Persistence is advisory; the caller still gets the report.
		slog.Warn("Failed to persist evaluation report", "run_id", report.RunID, "error", err)
	}

	c.JSON(http.StatusOK, report)
}
