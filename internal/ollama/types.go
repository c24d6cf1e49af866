// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role     string `json:"role"`               // "user", "assistant", "system"
	Content  string `json:"content"`            // The message content
	Thinking string `json:"thinking,omitempty"` // Reasoning trace, assistant only
}

// ChatRequest is the request body for /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`             // Model name (e.g., "qwen3:8b")
	Messages []Message `json:"messages"`          // Conversation history
	Stream   bool      `json:"stream"`            // Enable streaming
	Think    *bool     `json:"think,omitempty"`   // Ask reasoning models to expose thinking
	Options  *Options  `json:"options,omitempty"` // Model parameters
}

// Options contains model parameters for inference.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"` // 0.0-2.0, default 0.8
	NumCtx      int     `json:"num_ctx,omitempty"`     // Context window size
	Seed        int     `json:"seed,omitempty"`        // Random seed
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is one /api/chat response object. In streaming mode each
// NDJSON line is one ChatResponse.
type ChatResponse struct {
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	Message         Message   `json:"message"`
	Done            bool      `json:"done"`
	DoneReason      string    `json:"done_reason,omitempty"`
	TotalDuration   int64     `json:"total_duration,omitempty"`    // nanoseconds
	PromptEvalCount int       `json:"prompt_eval_count,omitempty"` // tokens in prompt
	EvalCount       int       `json:"eval_count,omitempty"`        // tokens generated
	EvalDuration    int64     `json:"eval_duration,omitempty"`     // nanoseconds

	// Error is set on mid-stream failures.
	Error string `json:"error,omitempty"`
}

// TokensPerSecond calculates the generation speed from a response.
func (r *ChatResponse) TokensPerSecond() float64 {
	if r.EvalDuration == 0 {
		return 0
	}
	return float64(r.EvalCount) / (float64(r.EvalDuration) / 1e9)
}

// ModelInfo contains information about a locally installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single line of a streaming response.
type StreamChunk struct {
	Content  string
	Thinking string

	Done       bool
	DoneReason string
	Model      string

	// Populated on the final chunk
	TotalDuration    time.Duration
	PromptTokens     int
	CompletionTokens int
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// OllamaError is the error body returned by the Ollama API.
type OllamaError struct {
	Error string `json:"error"`
}
