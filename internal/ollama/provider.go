// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"io"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
)

// =============================================================================
// PROVIDER ADAPTER
// =============================================================================

// Provider exposes a Client as a streaming provider.Provider.
type Provider struct {
	client *Client
}

// NewProvider wraps client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Name returns "ollama".
func (p *Provider) Name() string {
	return "ollama"
}

// Stream opens a streaming chat for req.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	reader, err := p.client.ChatStream(ctx, req.Model, toMessages(req))
	if err != nil {
		return nil, err
	}
	return &chatStream{reader: reader}, nil
}

// Complete runs a non-streaming chat. Used when streaming is disabled and
// the reply is paced locally instead.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	resp, err := p.client.Chat(ctx, req.Model, toMessages(req))
	if err != nil {
		return provider.Response{}, err
	}
	return provider.Response{Text: resp.Message.Content, Reasoning: resp.Message.Thinking}, nil
}

func toMessages(req provider.Request) []Message {
	messages := make([]Message, 0, len(req.History)+1)
	for _, h := range req.History {
		messages = append(messages, Message{Role: h.Role.String(), Content: h.Content})
	}
	return append(messages, Message{Role: model.RoleUser.String(), Content: req.Prompt})
}

type chatStream struct {
	reader *StreamReader
}

// Next skips chunks that carry neither text nor thinking.
func (s *chatStream) Next(ctx context.Context) (provider.Event, error) {
	for {
		if ctx.Err() != nil {
			return provider.Event{}, transportError(ctx.Err())
		}
		chunk, err := s.reader.Next()
		if err != nil {
			if err != io.EOF && ctx.Err() != nil {
				return provider.Event{}, transportError(ctx.Err())
			}
			return provider.Event{}, err
		}
		if chunk.Content == "" && chunk.Thinking == "" {
			continue
		}
		return provider.Event{Text: chunk.Content, Reasoning: chunk.Thinking}, nil
	}
}

func (s *chatStream) Close() error {
	return s.reader.Close()
}
