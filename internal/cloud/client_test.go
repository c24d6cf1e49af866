// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: testKey, ReasoningEffort: "low"})
}

func sse(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "data: %s\n\n", e)
	}
	return b.String()
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := ": OPENROUTER PROCESSING\n\nevent: message\ndata: {\"a\":1}\r\n\r\ndata: line1\ndata: line2\n\nid: 7\ndata: tail"
	r := NewSSEReader(strings.NewReader(input))

	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "message", typ)
	assert.Equal(t, `{"a":1}`, string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(data))

	_, _, err = r.ReadEvent()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReader_ChunkTooLarge(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxChunkSize+1) + "\n\n"
	_, _, err := NewSSEReader(strings.NewReader(input)).ReadEvent()
	assert.ErrorIs(t, err, ErrChunkTooLarge)
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReader_ReasoningThenContent(t *testing.T) {
	body := sse(
		`{"choices":[{"delta":{"role":"assistant","content":""}}]}`,
		`{"choices":[{"delta":{"reasoning":"Thinking"}}]}`,
		`not json`,
		`{"choices":[{"delta":{"content":"Hello"}}]}`,
		`[DONE]`,
		`{"choices":[{"delta":{"content":"ignored"}}]}`,
	)
	r := newStreamReader(io.NopCloser(strings.NewReader(body)))

	c, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "assistant", c.Choices[0].Delta.Role)

	c, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Thinking", c.GetReasoning())

	c, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Hello", c.GetContent())
	assert.Equal(t, 5, r.Delivered())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamReader_FinishReasonEndsStream(t *testing.T) {
	body := sse(
		`{"choices":[{"delta":{"content":"bye"},"finish_reason":"stop"}]}`,
		`{"choices":[{"delta":{"content":"late"}}]}`,
	)
	r := newStreamReader(io.NopCloser(strings.NewReader(body)))

	c, err := r.Next()
	require.NoError(t, err)
	assert.True(t, c.IsDone())
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamReader_MidStreamError(t *testing.T) {
	body := sse(
		`{"choices":[{"delta":{"content":"part"}}]}`,
		`{"error":{"code":502,"message":"upstream overloaded"}}`,
	)
	r := newStreamReader(io.NopCloser(strings.NewReader(body)))

	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, 4, streamErr.Partial)
	assert.Contains(t, err.Error(), "upstream overloaded")

	var orErr *OpenRouterError
	require.ErrorAs(t, err, &orErr)
	assert.Equal(t, "502", orErr.Code)
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestChat_SendsHeadersAndReasoning(t *testing.T) {
	var got ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "parley", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"Hi","reasoning":"Brief"},"finish_reason":"stop"}]}`))
	})

	resp, err := client.Chat(context.Background(), "openai/gpt-4o", []ChatMessage{{Role: "user", Content: "Hello"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi", resp.GetContent())
	assert.Equal(t, "Brief", resp.GetReasoning())

	assert.Equal(t, "openai/gpt-4o", got.Model)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Reasoning)
	assert.Equal(t, "low", got.Reasoning.Effort)
}

func TestChat_NotConfigured(t *testing.T) {
	client := NewClient(Config{})
	assert.False(t, client.IsConfigured())
	assert.Equal(t, DefaultOpenRouterURL, client.BaseURL())

	_, err := client.Chat(context.Background(), "m", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.ChatStream(context.Background(), "m", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"auth", http.StatusUnauthorized, `{"error":{"code":401,"message":"bad key"}}`, ErrAuthFailed},
		{"credits", http.StatusPaymentRequired, `{"error":{"message":"top up"}}`, ErrInsufficientCredits},
		{"model", http.StatusNotFound, ``, ErrModelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Chat(context.Background(), "m", nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChat_BadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_request","message":"messages required"}}`))
	})

	_, err := client.Chat(context.Background(), "m", nil)
	var orErr *OpenRouterError
	require.ErrorAs(t, err, &orErr)
	assert.Equal(t, http.StatusBadRequest, orErr.Status)
	assert.Equal(t, "invalid_request", orErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChat_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	resp, err := client.Chat(context.Background(), "m", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.GetContent())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "3")
	err := parseRetryAfter(rec.Result())
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "rate limited, retry after 3s", err.Error())
}

func TestCalculateBackoff_Capped(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, retryBaseDelay*2, c.calculateBackoff(1))
	assert.Equal(t, retryMaxDelay, c.calculateBackoff(10))
}

func TestAPIKeyMasked(t *testing.T) {
	assert.Equal(t, "[not set]", NewClient(Config{}).APIKeyMasked())
	masked := NewClient(Config{APIKey: testKey}).APIKeyMasked()
	assert.NotContains(t, masked, "sk-or")
	assert.Contains(t, masked, "fingerprint=")
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"openai/gpt-4o","name":"GPT-4o","context_length":128000}]}`))
	})
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "openai/gpt-4o", models[0].ID)
	assert.Equal(t, 128000, models[0].ContextSize)
}

// =============================================================================
// PROVIDER TESTS
// =============================================================================

func TestProvider_StreamCollect(t *testing.T) {
	var got ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sse(
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"reasoning":"Plan. "}}]}`,
			`{"choices":[{"delta":{"content":"Hello "}}]}`,
			`{"choices":[{"delta":{"content":"there"}}]}`,
			`[DONE]`,
		))
	})
	p := NewProvider(client)
	assert.Equal(t, "openrouter", p.Name())

	s, err := p.Stream(context.Background(), provider.Request{
		Model:   "m",
		Prompt:  "Hi",
		History: []model.HistoryEntry{{Role: model.RoleAssistant, Content: "Earlier"}},
	})
	require.NoError(t, err)

	text, reasoning, err := provider.Collect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
	assert.Equal(t, "Plan. ", reasoning)

	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "assistant", got.Messages[0].Role)
	assert.Equal(t, ChatMessage{Role: "user", Content: "Hi"}, got.Messages[1])
}

func TestProvider_StreamCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sse(`{"choices":[{"delta":{"content":"first"}}]}`))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewProvider(client).Stream(ctx, provider.Request{Model: "m", Prompt: "Hi"})
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", ev.Text)

	cancel()
	_, err = s.Next(ctx)
	require.Error(t, err)
	assert.True(t, provider.IsCancellation(err))
}

func TestProvider_Complete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Full","reasoning":"Why"}}]}`))
	})
	resp, err := NewProvider(client).Complete(context.Background(), provider.Request{Model: "m", Prompt: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, provider.Response{Text: "Full", Reasoning: "Why"}, resp)
}

func TestProvider_OpenErrorIsNotCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := NewProvider(client).Stream(context.Background(), provider.Request{Model: "m"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.False(t, provider.IsCancellation(err))
}
