// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator runs one conversation turn end to end: route
// intent, retrieve context when needed, stream the model's answer, and
// hand back the trimmed memory window.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lanternworks/ragline/services/engine/datatypes"
	"github.com/lanternworks/ragline/services/engine/intent"
	"github.com/lanternworks/ragline/services/engine/memory"
	"github.com/lanternworks/ragline/services/engine/observability"
	"github.com/lanternworks/ragline/services/engine/prompt"
	"github.com/lanternworks/ragline/services/engine/tenant"
	"github.com/lanternworks/ragline/services/llm"
)

var tracer = otel.Tracer("ragline.orchestrator")

// TurnBudget bounds one turn's wall clock, covering routing, retrieval,
// and generation together.
const TurnBudget = 30 * time.Second

// Retriever is the knowledge retrieval dependency. Implementations
// soft-fail: an unreachable backend yields an empty result, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, namespace, query string) (datatypes.RetrievalResult, error)
}

// RouterProvider builds the intent router for a turn from the tenant's
// keyword list. Lexical and classifier strategies ignore the keywords.
type RouterProvider func(keywords []string) intent.Router

// Orchestrator wires the turn pipeline. All dependencies are required;
// New panics on nil because a missing dependency is a wiring bug, not a
// runtime condition.
type Orchestrator struct {
	tenants   tenant.Store
	routerFor RouterProvider
	retriever Retriever
	prompts   *prompt.Cache
	clients   *llm.ClientCache
}

// New creates an Orchestrator.
func New(tenants tenant.Store, routerFor RouterProvider, retriever Retriever, prompts *prompt.Cache, clients *llm.ClientCache) *Orchestrator {
	switch {
	case tenants == nil:
		panic("orchestrator.New: nil tenant store")
	case routerFor == nil:
		panic("orchestrator.New: nil router provider")
	case retriever == nil:
		panic("orchestrator.New: nil retriever")
	case prompts == nil:
		panic("orchestrator.New: nil prompt cache")
	case clients == nil:
		panic("orchestrator.New: nil client cache")
	}
	return &Orchestrator{
		tenants:   tenants,
		routerFor: routerFor,
		retriever: retriever,
		prompts:   prompts,
		clients:   clients,
	}
}

// ProcessTurn executes one turn.
//
// # Description
//
// The turn walks routing → (retrieval) → generation. Phase transitions
// go to emit in order: a phase is always completed before the next
// phase activates, and generating always activates before the first
// answer fragment. On the retrieval path, searching completes
// immediately before generating activates; on every path generating
// completes on the first non-empty answer fragment, which is also the
// TTFT mark.
//
// Failure handling is two-tier. A failure whose text implicates the
// retrieval/tool layer downgrades to the fixed fallback sentence,
// which is committed to memory like a real answer. Anything else is a
// hard failure: an error returns and memory is not committed.
//
// # Inputs
//
//   - ctx: Caller context. A turn-budget timeout is layered on top.
//   - req: Validated request; EnsureDefaults is applied here.
//   - emit: Event sink. Pass NullEmitter{} on the blocking path.
//
// # Outputs
//
//   - *datatypes.ChatResponse: The completed turn. Nil on hard failure.
//   - error: InputError for caller mistakes, GenerationError otherwise.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *datatypes.ChatRequest, emit EventEmitter) (*datatypes.ChatResponse, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "orchestrator.ProcessTurn")
	defer span.End()

	req.EnsureDefaults()
	if err := datatypes.Validate(req); err != nil {
		return nil, &InputError{Message: "invalid chat request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, TurnBudget)
	defer cancel()

	profile, err := o.tenants.Get(ctx, req.TenantID)
	if err != nil {
		return nil, &InputError{Message: "unknown tenant", Err: err}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("tenant.id", profile.ID),
		attribute.String("session.id", sessionID),
	)

	emit.Progress(datatypes.StepProcessing, datatypes.StatusActive)
	router := o.routerFor(profile.Keywords)
	routed := router.Route(ctx, req.Query, len(req.History) > 0)
	span.SetAttributes(attribute.String("intent", string(routed)))
	slog.Debug("Turn routed", "tenant_id", profile.ID, "session_id", sessionID, "intent", routed)

	emit.Progress(datatypes.StepProcessing, datatypes.StatusComplete)

	var result datatypes.RetrievalResult
	retrieved := routed == intent.IntentNeedsRetrieval
	if retrieved {
		emit.Progress(datatypes.StepSearching, datatypes.StatusActive)
		result, _ = o.retriever.Retrieve(ctx, profile.Namespace, req.Query)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRetrievedChunks(len(result.Chunks))
		}
		emit.Progress(datatypes.StepSearching, datatypes.StatusComplete)
	}
	emit.Progress(datatypes.StepGenerating, datatypes.StatusActive)
	if sources := result.SourcesOf(); len(sources) > 0 {
		emit.Sources(sources)
	}

	messages := o.buildMessages(profile, req, routed, result.ContextText)

	client, err := o.clients.Get(llm.ClientKey{
		Model:       profile.Model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model client unavailable")
		return nil, &GenerationError{Message: "model client unavailable", Err: err}
	}

	answer, ttftMillis, err := o.generate(ctx, client, profile, messages, started, emit)
	if err != nil {
		if IsToolSoftFailure(err) {
			slog.Warn("Turn soft-failed, committing fallback answer",
				"tenant_id", profile.ID, "session_id", sessionID, "error", err)
			answer = FallbackAnswer
			emit.Progress(datatypes.StepGenerating, datatypes.StatusComplete)
			if tokenErr := emit.Token(answer); tokenErr != nil {
				return nil, &GenerationError{Message: "client gone during fallback", Err: tokenErr}
			}
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
			if m := observability.DefaultMetrics; m != nil {
				m.RecordTurn(string(routed), false)
			}
			return nil, &GenerationError{Message: "generation failed", Err: err}
		}
	}

	updated := append(append([]datatypes.Message{}, req.History...),
		datatypes.Message{Role: datatypes.RoleUser, Content: req.Query},
		datatypes.Message{Role: datatypes.RoleAssistant, Content: answer},
	)

	resp := &datatypes.ChatResponse{
		Success:       true,
		Answer:        answer,
		SessionID:     sessionID,
		UpdatedMemory: memory.Trim(updated, memory.PersistWindow),
		Sources:       result.SourcesOf(),
		TTFTMillis:    ttftMillis,
	}
	if req.EvalMode {
		resp.Chunks = result.Chunks
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordTurn(string(routed), true)
	}

	slog.Info("Turn completed",
		"tenant_id", profile.ID,
		"session_id", sessionID,
		"intent", routed,
		"retrieved_chunks", len(result.Chunks),
		"ttft_ms", ttftMillis,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return resp, nil
}

// buildMessages assembles the model conversation for the routed intent.
func (o *Orchestrator) buildMessages(profile *datatypes.TenantProfile, req *datatypes.ChatRequest, routed intent.Intent, contextText string) []datatypes.Message {
	var system string
	switch routed {
	case intent.IntentTrivial:
		system = prompt.BuildTrivial(profile)
	case intent.IntentFollowUp:
		var hit bool
		system, hit = o.prompts.Static(profile)
		recordPromptCache(hit)
	default:
		static, hit := o.prompts.Static(profile)
		recordPromptCache(hit)
		system = prompt.WithContext(static, contextText)
	}

	messages := make([]datatypes.Message, 0, memory.PromptWindow+2)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleSystem, Content: system})
	messages = append(messages, memory.Trim(req.History, memory.PromptWindow)...)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: req.Query})
	return messages
}

func recordPromptCache(hit bool) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordPromptCache(hit)
	}
}

// generate streams the answer, marking TTFT and completing the
// generating phase on the first non-empty fragment.
func (o *Orchestrator) generate(ctx context.Context, client llm.LLMClient, profile *datatypes.TenantProfile, messages []datatypes.Message, started time.Time, emit EventEmitter) (string, int64, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.generate")
	defer span.End()

	temperature := profile.Temperature
	maxTokens := profile.MaxTokens
	params := llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	var answer []byte
	var ttftMillis int64
	first := true

	err := client.ChatStream(ctx, messages, params, func(event llm.StreamEvent) error {
		if event.Type != llm.StreamEventToken || event.Content == "" {
			return nil
		}
		if first {
			first = false
			ttftMillis = time.Since(started).Milliseconds()
			emit.Progress(datatypes.StepGenerating, datatypes.StatusComplete)
		}
		answer = append(answer, event.Content...)
		return emit.Token(event.Content)
	})
	if err != nil {
		return "", 0, err
	}
	span.SetAttributes(attribute.Int64("ttft_ms", ttftMillis))
	return string(answer), ttftMillis, nil
}
