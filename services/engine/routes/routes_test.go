// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubHandlers satisfies every handler interface with empty responses;
// route registration is what is under test.
type stubHandlers struct{}

func (stubHandlers) HandleChat(c *gin.Context)       { c.Status(http.StatusOK) }
func (stubHandlers) HandleChatStream(c *gin.Context) { c.Status(http.StatusOK) }
func (stubHandlers) HandleRawStream(c *gin.Context)  { c.Status(http.StatusOK) }
func (stubHandlers) HandleEvaluate(c *gin.Context)   { c.Status(http.StatusOK) }

func TestSetupRoutesRegistersEndpoints(t *testing.T) {
	router := gin.New()
	stub := stubHandlers{}
	SetupRoutes(router, Handlers{Chat: stub, Streaming: stub, Eval: stub})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/v1/chat"},
		{http.MethodPost, "/v1/chat/stream"},
		{http.MethodPost, "/v1/chat/raw"},
		{http.MethodPost, "/v1/eval"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.NotEqual(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHealthz(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, Handlers{Chat: stubHandlers{}, Streaming: stubHandlers{}, Eval: stubHandlers{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
