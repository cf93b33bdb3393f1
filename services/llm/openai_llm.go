// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

var openaiTracer = otel.Tracer("ragline.llm.openai")

// OpenAIClient is the OpenAI-compatible backend, usable against the
// hosted API or any server speaking the same protocol (vLLM, LiteLLM).
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key and model.
// baseURL overrides the hosted endpoint when non-empty.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai model is empty")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// NewOpenAIClientFromEnv creates a client from OPENAI_API_KEY,
// OPENAI_BASE_URL (optional), and OPENAI_MODEL.
func NewOpenAIClientFromEnv() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		slog.Warn("OPENAI_MODEL not set, using default", "default_model", openai.GPT4oMini)
		model = openai.GPT4oMini
	}
	slog.Info("Initializing OpenAI client", "model", model,
		"base_url_override", os.Getenv("OPENAI_BASE_URL") != "")
	return NewOpenAIClient(apiKey, os.Getenv("OPENAI_BASE_URL"), model)
}

// WithModel returns a shallow copy bound to a different model name,
// sharing the underlying API client.
func (c *OpenAIClient) WithModel(model string) *OpenAIClient {
	clone := *c
	clone.model = model
	return &clone
}

func (c *OpenAIClient) buildRequest(messages []datatypes.Message, params GenerationParams, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:  c.model,
		Stream: stream,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}

// Generate implements the LLMClient interface by sending the prompt as
// a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {
	return c.Chat(ctx, []datatypes.Message{{Role: datatypes.RoleUser, Content: prompt}}, params)
}

// Chat implements the LLMClient interface.
func (c *OpenAIClient) Chat(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (string, error) {

	ctx, span := openaiTracer.Start(ctx, "OpenAIClient.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(messages, params, false))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI chat completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements the LLMClient interface.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := openaiTracer.Start(ctx, "OpenAIClient.ChatStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(messages, params, true))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("openai stream start failed: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			_ = callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
			return fmt.Errorf("openai stream receive failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := callback(StreamEvent{Type: StreamEventToken, Content: content}); err != nil {
				return fmt.Errorf("stream callback aborted: %w", err)
			}
		}
	}

	return callback(StreamEvent{Type: StreamEventDone})
}

var _ LLMClient = (*OpenAIClient)(nil)
