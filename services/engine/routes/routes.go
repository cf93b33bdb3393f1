// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes binds the engine's HTTP surface onto a gin router.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lanternworks/ragline/services/engine/handlers"
)

// Handlers carries the constructed handler set for SetupRoutes.
type Handlers struct {
	Chat      handlers.ChatHandler
	Streaming handlers.StreamingChatHandler
	Eval      handlers.EvalHandler
}

// SetupRoutes registers every endpoint on router.
//
// # Description
//
// The chat surface comes in three flavors sharing one turn pipeline:
// blocking JSON, SSE, and the raw sentinel byte stream. Evaluation and
// operational endpoints sit alongside.
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/chat", h.Chat.HandleChat)
		v1.POST("/chat/stream", h.Streaming.HandleChatStream)
		v1.POST("/chat/raw", h.Streaming.HandleRawStream)
		v1.POST("/eval", h.Eval.HandleEvaluate)
	}
}
