// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/ragline/pkg/streamwire"
	"github.com/lanternworks/ragline/services/engine/datatypes"
	"github.com/lanternworks/ragline/services/engine/evaluation"
	"github.com/lanternworks/ragline/services/engine/intent"
	"github.com/lanternworks/ragline/services/engine/orchestrator"
	"github.com/lanternworks/ragline/services/engine/prompt"
	"github.com/lanternworks/ragline/services/engine/tenant"
	"github.com/lanternworks/ragline/services/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Fakes
// =============================================================================

type fakeStore struct {
	profiles map[string]*datatypes.TenantProfile
}

func (s *fakeStore) Get(_ context.Context, id string) (*datatypes.TenantProfile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return profile, nil
}

type fakeRetriever struct {
	result datatypes.RetrievalResult
}

func (r *fakeRetriever) Retrieve(context.Context, string, string) (datatypes.RetrievalResult, error) {
	return r.result, nil
}

// fakeClient scripts a streamed answer, or fails with err.
type fakeClient struct {
	fragments []string
	err       error
}

func (c *fakeClient) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return strings.Join(c.fragments, ""), c.err
}

func (c *fakeClient) Chat(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
	return strings.Join(c.fragments, ""), c.err
}

func (c *fakeClient) ChatStream(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams, callback llm.StreamCallback) error {
	if c.err != nil {
		return c.err
	}
	for _, fragment := range c.fragments {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: fragment}); err != nil {
			return err
		}
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

// =============================================================================
// Harness
// =============================================================================

func testProfile() *datatypes.TenantProfile {
	return &datatypes.TenantProfile{
		ID:           "acme",
		Namespace:    "acme_docs",
		Model:        "test-model",
		MaxTokens:    512,
		ErrorMessage: "Acme support is unavailable right now.",
	}
}

func newTestOrchestrator(t *testing.T, client *fakeClient) (*orchestrator.Orchestrator, tenant.Store) {
	t.Helper()
	store := &fakeStore{profiles: map[string]*datatypes.TenantProfile{"acme": testProfile()}}
	clients := llm.NewClientCache(func(string) (llm.LLMClient, error) { return client, nil })
	routerFor := func(keywords []string) intent.Router { return intent.NewKeywordRouter(keywords) }
	orch := orchestrator.New(store, routerFor, &fakeRetriever{}, prompt.NewCache(), clients)
	return orch, store
}

func postJSON(t *testing.T, handler gin.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return rec
}

// =============================================================================
// Blocking Chat
// =============================================================================

func TestHandleChatHappyPath(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{fragments: []string{"Hello", " there."}})
	handler := NewChatHandler(orch, store)

	rec := postJSON(t, handler.HandleChat, "/v1/chat", datatypes.ChatRequest{
		TenantID: "acme",
		Query:    "hi",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Hello there.", resp.Answer)
	assert.NotEmpty(t, resp.SessionID)
	assert.Len(t, resp.UpdatedMemory, 2)
}

func TestHandleChatRejectsMalformedBody(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{fragments: []string{"x"}})
	handler := NewChatHandler(orch, store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.HandleChat(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatUnknownTenant(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{fragments: []string{"x"}})
	handler := NewChatHandler(orch, store)

	rec := postJSON(t, handler.HandleChat, "/v1/chat", datatypes.ChatRequest{
		TenantID: "nobody",
		Query:    "hi",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatHardFailureShowsTenantMessage(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{err: errors.New("model process crashed")})
	handler := NewChatHandler(orch, store)

	rec := postJSON(t, handler.HandleChat, "/v1/chat", datatypes.ChatRequest{
		TenantID: "acme",
		Query:    "hi",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Acme support is unavailable right now.", body["error"],
		"internal error text never reaches the client")
	assert.NotContains(t, rec.Body.String(), "crashed")
}

// =============================================================================
// SSE Streaming
// =============================================================================

func TestHandleChatStreamEventSequence(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{fragments: []string{"Hi", "!"}})
	handler := NewStreamingChatHandler(orch, store)

	rec := postJSON(t, handler.HandleChatStream, "/v1/chat/stream", datatypes.ChatRequest{
		TenantID: "acme",
		Query:    "hi",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSEEvents(t, rec.Body.String())
	require.NotEmpty(t, events)

	var types []string
	for _, event := range events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []string{"progress", "progress", "progress", "progress", "token", "token", "done"}, types)

	// Generating activates before any token, even with no search phase.
	firstToken, generatingActive := -1, -1
	for i, event := range events {
		if event.Type == datatypes.StreamEventToken && firstToken == -1 {
			firstToken = i
		}
		if event.Step == datatypes.StepGenerating && event.Status == datatypes.StatusActive {
			generatingActive = i
		}
	}
	require.NotEqual(t, -1, generatingActive)
	assert.Less(t, generatingActive, firstToken)

	done := events[len(events)-1]
	assert.NotEmpty(t, done.SessionId)

	// The chain must hold across the whole stream.
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Hash, events[i].PrevHash)
	}
}

func TestHandleChatStreamFailureEmitsErrorEvent(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{err: errors.New("model process crashed")})
	handler := NewStreamingChatHandler(orch, store)

	rec := postJSON(t, handler.HandleChatStream, "/v1/chat/stream", datatypes.ChatRequest{
		TenantID: "acme",
		Query:    "hi",
	})

	events := parseSSEEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, datatypes.StreamEventError, last.Type)
	assert.Equal(t, "Acme support is unavailable right now.", last.Error)
}

func TestHandleChatStreamRejectsMalformedBodyAsPlainHTTP(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{fragments: []string{"x"}})
	handler := NewStreamingChatHandler(orch, store)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader("nope"))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.HandleChatStream(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

// =============================================================================
// Raw Byte Stream
// =============================================================================

func TestHandleRawStream(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeClient{fragments: []string{"Hello", " raw."}})
	handler := NewStreamingChatHandler(orch, store)

	rec := postJSON(t, handler.HandleRawStream, "/v1/chat/raw", datatypes.ChatRequest{
		TenantID: "acme",
		Query:    "hi",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "Hello raw.", "answer text travels as literal bytes")
	assert.Contains(t, body, streamwire.SentinelOpen, "events travel sentinel-wrapped")
	assert.Contains(t, body, `"type":"done"`)
}

// =============================================================================
// Evaluation
// =============================================================================

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func TestHandleEvaluateHappyPath(t *testing.T) {
	handler := NewEvalHandler(evaluation.NewEngine(unitEmbedder{}), nil)

	rec := postJSON(t, handler.HandleEvaluate, "/v1/eval", datatypes.EvalRequest{
		RunID: "run-1",
		Rows: []datatypes.EvalRow{
			{Question: "q", Answer: "widget", GroundTruth: "widget", LatencyMs: 100},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var report datatypes.EvalReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, float64(1), report.Rows[0].Scores.ExactMatch)
}

func TestHandleEvaluateRejectsEmptyBatch(t *testing.T) {
	handler := NewEvalHandler(evaluation.NewEngine(unitEmbedder{}), nil)

	rec := postJSON(t, handler.HandleEvaluate, "/v1/eval", datatypes.EvalRequest{RunID: "run-2"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluateRejectsMalformedBody(t *testing.T) {
	handler := NewEvalHandler(evaluation.NewEngine(unitEmbedder{}), nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/eval", strings.NewReader("[broken"))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.HandleEvaluate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
