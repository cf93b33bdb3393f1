// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

// parseSSEEvents decodes every "event:/data:" block in an SSE body,
// skipping comment lines such as keepalives.
func parseSSEEvents(t *testing.T, body string) []datatypes.StreamEvent {
	t.Helper()
	var events []datatypes.StreamEvent
	for _, block := range strings.Split(body, "\n\n") {
		for _, line := range strings.Split(block, "\n") {
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event datatypes.StreamEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
			events = append(events, event)
		}
	}
	return events
}

func TestSSEWriterEventFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.WriteToken("hello"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: token\ndata: "), "body: %q", body)
	assert.True(t, strings.HasSuffix(body, "\n\n"))

	events := parseSSEEvents(t, body)
	require.Len(t, events, 1)
	assert.Equal(t, datatypes.StreamEventToken, events[0].Type)
	assert.Equal(t, "hello", events[0].Content)
	assert.NotEmpty(t, events[0].Id)
	assert.Positive(t, events[0].CreatedAt)
	assert.NotEmpty(t, events[0].Hash)
	assert.Empty(t, events[0].PrevHash, "first event has no predecessor")
}

func TestSSEWriterHashChain(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.WriteProgress(datatypes.StepProcessing, datatypes.StatusActive))
	require.NoError(t, writer.WriteToken("a"))
	require.NoError(t, writer.WriteSources([]datatypes.SourceInfo{{Source: "faq.md", Score: 0.9}}))
	require.NoError(t, writer.WriteDone("session-1", 42))

	events := parseSSEEvents(t, rec.Body.String())
	require.Len(t, events, 4)

	for i, event := range events {
		if i == 0 {
			assert.Empty(t, event.PrevHash)
		} else {
			assert.Equal(t, events[i-1].Hash, event.PrevHash, "event %d links to predecessor", i)
		}

		// Recompute with the Hash field cleared; the stored hash must match.
		check := event
		check.Hash = ""
		assert.Equal(t, event.Hash, computeEventHash(check), "event %d hash covers its content", i)
	}

	done := events[3]
	assert.Equal(t, datatypes.StreamEventDone, done.Type)
	assert.Equal(t, "session-1", done.SessionId)
	assert.Equal(t, int64(42), done.TTFTMillis)
}

func TestSSEWriterKeepAliveIsComment(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.WriteToken("a"))
	require.NoError(t, writer.WriteKeepAlive())
	require.NoError(t, writer.WriteToken("b"))

	body := rec.Body.String()
	assert.Contains(t, body, ": ping\n\n")

	// The keepalive does not participate in the hash chain.
	events := parseSSEEvents(t, body)
	require.Len(t, events, 2)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
}

func TestSetSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

// noFlushWriter is a ResponseWriter without http.Flusher.
type noFlushWriter struct {
	header http.Header
}

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(int)             {}

func TestNewSSEWriterRequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(&noFlushWriter{header: http.Header{}})
	require.Error(t, err)
}
