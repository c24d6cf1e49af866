// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"io"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
)

// =============================================================================
// PROVIDER ADAPTER
// =============================================================================

// Provider exposes an OpenRouterClient as a streaming provider.Provider.
type Provider struct {
	client *OpenRouterClient
}

// NewProvider wraps client.
func NewProvider(client *OpenRouterClient) *Provider {
	return &Provider{client: client}
}

// Name returns "openrouter".
func (p *Provider) Name() string {
	return "openrouter"
}

// Stream opens a streaming completion for req.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	reader, err := p.client.ChatStream(ctx, req.Model, toMessages(req))
	if err != nil {
		return nil, err
	}
	return &chatStream{reader: reader}, nil
}

// Complete runs a non-streaming completion.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	resp, err := p.client.Chat(ctx, req.Model, toMessages(req))
	if err != nil {
		return provider.Response{}, err
	}
	return provider.Response{Text: resp.GetContent(), Reasoning: resp.GetReasoning()}, nil
}

func toMessages(req provider.Request) []ChatMessage {
	messages := make([]ChatMessage, 0, len(req.History)+1)
	for _, h := range req.History {
		messages = append(messages, ChatMessage{Role: h.Role.String(), Content: h.Content})
	}
	return append(messages, ChatMessage{Role: model.RoleUser.String(), Content: req.Prompt})
}

type chatStream struct {
	reader *StreamReader
}

// Next skips chunks that carry neither content nor reasoning, such as the
// opening role-only delta.
func (s *chatStream) Next(ctx context.Context) (provider.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return provider.Event{}, cancelErr(err)
		}
		chunk, err := s.reader.Next()
		if err != nil {
			if err != io.EOF && ctx.Err() != nil {
				return provider.Event{}, cancelErr(ctx.Err())
			}
			return provider.Event{}, err
		}
		ev := provider.Event{Text: chunk.GetContent(), Reasoning: chunk.GetReasoning()}
		if ev.IsEmpty() {
			continue
		}
		return ev, nil
	}
}

// cancelErr marks a cancelled context as a provider cancellation. Deadlines
// stay ordinary errors.
func cancelErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return errors.Join(provider.ErrCancelled, err)
	}
	return err
}

func (s *chatStream) Close() error {
	return s.reader.Close()
}
