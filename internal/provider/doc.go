// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the transport contract between the stream
// controller and a language-model backend.
//
// A Provider turns a Request (prompt, model id, prior history) into a Stream
// of Events. Each Event carries either answer text or reasoning text. The
// stream is lazy and pull-based: the consumer calls Next until io.EOF.
// Cancellation is carried by the context passed to Stream and Next; a
// provider reports it with an error for which IsCancellation returns true.
//
// # Implementations
//
//   - Paced: adapts a Completer that returns a whole response into a stream
//     of whitespace-delimited tokens, one per tick
//   - Echo: offline Completer that answers with the prompt
//   - Scripted: deterministic stream for tests and demos
//
// Network transports live in the ollama and cloud packages.
package provider
