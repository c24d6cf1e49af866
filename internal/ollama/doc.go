// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// The client speaks /api/chat in both streaming (NDJSON) and non-streaming
// form. Reasoning models report their chain of thought in the message's
// "thinking" field when the request sets "think": true; the stream reader
// surfaces it separately from the answer text.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - StreamReader: NDJSON reader yielding one StreamChunk per line
//   - Provider: adapter exposing the client as a provider.Provider
//
// # Usage
//
//	client := ollama.NewClient(ollama.DefaultConfig())
//	p := ollama.NewProvider(client)
//	s, err := p.Stream(ctx, provider.Request{Prompt: "Hello", Model: "qwen3"})
//	for {
//	    ev, err := s.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    fmt.Print(ev.Text)
//	}
package ollama
