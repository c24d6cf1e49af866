// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides OpenRouter integration for cloud inference.
//
// OpenRouter exposes many vendors' models behind one OpenAI-compatible
// chat completions API. Reasoning models return their thinking in a
// separate "reasoning" field, which this package surfaces as reasoning
// events.
//
// # Key Types
//
//   - OpenRouterClient: HTTP client with retry for non-streaming calls
//   - StreamReader: decodes the SSE response of a streaming call
//   - Provider: adapts the client to provider.Provider
//
// # Usage
//
//	client := cloud.NewClient(cloud.Config{APIKey: key})
//	p := cloud.NewProvider(client)
//	s, err := p.Stream(ctx, provider.Request{Model: "anthropic/claude-sonnet-4.5", Prompt: "Hello"})
//
// API keys are never logged; APIKeyMasked returns a fingerprint instead.
package cloud
