// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the response
// engine: turn counters, phase latencies, prompt-cache effectiveness,
// and stream health. Exposed on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "ragline"
	engineSubsystem  = "engine"
)

// EngineMetrics holds every Prometheus metric the engine emits.
//
// # Description
//
// Initialize once at startup via InitMetrics; all operations are
// thread-safe through Prometheus's internal locking. Registering twice
// panics, which is the desired startup-bug behavior.
type EngineMetrics struct {
	// TurnsTotal counts completed turns by routed intent and status.
	TurnsTotal *prometheus.CounterVec

	// TimeToFirstTokenSeconds measures latency from request receipt to
	// the first answer fragment.
	TimeToFirstTokenSeconds *prometheus.HistogramVec

	// TurnDurationSeconds measures full turn duration.
	TurnDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open streaming connections.
	ActiveStreams *prometheus.GaugeVec

	// ErrorsTotal counts failures by endpoint and error code.
	ErrorsTotal *prometheus.CounterVec

	// KeepAlivesTotal counts heartbeat pings sent on streams.
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts clients that vanished mid-stream.
	ClientDisconnectsTotal *prometheus.CounterVec

	// PromptCacheTotal counts static prompt renders by outcome (hit/miss).
	PromptCacheTotal *prometheus.CounterVec

	// RetrievedChunks observes how many chunks survived re-ranking per
	// retrieval turn.
	RetrievedChunks prometheus.Histogram
}

// DefaultMetrics is the singleton set by InitMetrics.
var DefaultMetrics *EngineMetrics

// InitMetrics creates and registers all engine metrics against the
// default registry. Call once at startup.
func InitMetrics() *EngineMetrics {
	DefaultMetrics = &EngineMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "turns_total",
				Help:      "Completed turns by routed intent and status",
			},
			[]string{"intent", "status"},
		),

		TimeToFirstTokenSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "time_to_first_token_seconds",
				Help:      "Time from request receipt to first answer fragment",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Full turn duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"endpoint", "status"},
		),

		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "active_streams",
				Help:      "Currently open streaming connections",
			},
			[]string{"endpoint"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "errors_total",
				Help:      "Turn failures by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),

		KeepAlivesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "keepalives_total",
				Help:      "Heartbeat pings sent on streams",
			},
			[]string{"endpoint"},
		),

		ClientDisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Clients that disconnected mid-stream",
			},
			[]string{"endpoint"},
		),

		PromptCacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "prompt_cache_total",
				Help:      "Static prompt renders by outcome",
			},
			[]string{"outcome"},
		),

		RetrievedChunks: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "retrieved_chunks",
				Help:      "Chunks surviving re-ranking per retrieval turn",
				Buckets:   []float64{0, 1, 2, 3, 4},
			},
		),
	}
	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode categorizes a failure for the errors_total counter.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeUnknownTenant indicates no profile exists for the tenant.
	ErrorCodeUnknownTenant ErrorCode = "unknown_tenant"

	// ErrorCodeLLMError indicates a model backend failure.
	ErrorCodeLLMError ErrorCode = "llm_error"

	// ErrorCodeRetrievalSoftFail indicates a turn that fell back because
	// the retrieval/tool layer failed.
	ErrorCodeRetrievalSoftFail ErrorCode = "retrieval_soft_fail"

	// ErrorCodeTimeout indicates the turn budget expired.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeClientDisconnect indicates the client went away.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"

	// ErrorCodeInternal indicates any other server-side failure.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint labels which surface handled a turn.
type Endpoint string

const (
	// EndpointChat is the blocking chat endpoint.
	EndpointChat Endpoint = "chat"

	// EndpointChatStream is the SSE streaming endpoint.
	EndpointChatStream Endpoint = "chat_stream"

	// EndpointRawStream is the sentinel-delimited byte stream endpoint.
	EndpointRawStream Endpoint = "raw_stream"

	// EndpointEval is the batch evaluation endpoint.
	EndpointEval Endpoint = "eval"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordTurn records one completed turn.
func (m *EngineMetrics) RecordTurn(intent string, success bool) {
	m.TurnsTotal.WithLabelValues(intent, statusLabel(success)).Inc()
}

// RecordError records a failure by category.
func (m *EngineMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// StreamStarted increments the active-stream gauge.
func (m *EngineMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded decrements the active-stream gauge.
func (m *EngineMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordTimeToFirstToken records TTFT in seconds.
func (m *EngineMetrics) RecordTimeToFirstToken(endpoint Endpoint, seconds float64) {
	m.TimeToFirstTokenSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordTurnDuration records total turn duration in seconds.
func (m *EngineMetrics) RecordTurnDuration(endpoint Endpoint, seconds float64, success bool) {
	m.TurnDurationSeconds.WithLabelValues(string(endpoint), statusLabel(success)).Observe(seconds)
}

// RecordKeepAlive counts one heartbeat ping.
func (m *EngineMetrics) RecordKeepAlive(endpoint Endpoint) {
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordClientDisconnect counts one mid-stream disconnect.
func (m *EngineMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordPromptCache counts one static prompt render by outcome.
func (m *EngineMetrics) RecordPromptCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.PromptCacheTotal.WithLabelValues(outcome).Inc()
}

// RecordRetrievedChunks observes the post-re-ranking chunk count.
func (m *EngineMetrics) RecordRetrievedChunks(count int) {
	m.RetrievedChunks.Observe(float64(count))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
