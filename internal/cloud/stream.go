// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxChunkSize is the maximum allowed size for a single SSE event (64KB).
const MaxChunkSize = 64 * 1024

// ErrChunkTooLarge is returned when an SSE event exceeds MaxChunkSize.
var ErrChunkTooLarge = errors.New("openrouter: stream chunk too large")

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single chunk from the streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
			Role      string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// GetReasoning returns the reasoning from the first choice's delta.
func (c *StreamChunk) GetReasoning() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Reasoning
	}
	return ""
}

// GetFinishReason returns the finish reason if streaming is complete.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// IsDone returns true if the stream has finished.
func (c *StreamChunk) IsDone() bool {
	return c.GetFinishReason() != ""
}

// StreamError is an error raised mid-stream, carrying how much content had
// already been delivered.
type StreamError struct {
	Partial int
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial > 0 {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", e.Partial, e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// RateLimitError represents a rate limit error with retry information.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
	}
	return "rate limited"
}

// Is allows RateLimitError to be compared with ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// parseRetryAfter reads a Retry-After header as seconds or an HTTP date.
func parseRetryAfter(resp *http.Response) *RateLimitError {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Duration(seconds) * time.Second}
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Until(t)}
	}
	return nil
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next SSE event and returns its type and data. Comment
// lines (": OPENROUTER PROCESSING") and unknown fields are skipped. Returns
// io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		size += len(line)
		if size > MaxChunkSize {
			return "", nil, ErrChunkTooLarge
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			size = 0
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
	}
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader yields decoded chunks from an open SSE response.
type StreamReader struct {
	body      io.ReadCloser
	sse       *SSEReader
	delivered int
	done      bool
	closeOnce sync.Once
}

// ChatStream opens a streaming chat completion.
func (c *OpenRouterClient) ChatStream(ctx context.Context, model string, messages []ChatMessage) (*StreamReader, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	resp, err := c.post(ctx, c.streamClient, c.newRequest(model, messages, true))
	if err != nil {
		return nil, err
	}
	return newStreamReader(resp.Body), nil
}

func newStreamReader(body io.ReadCloser) *StreamReader {
	return &StreamReader{body: body, sse: NewSSEReader(body)}
}

// Next returns the next chunk. It returns io.EOF after [DONE], after a
// chunk carrying a finish reason, or when the body ends. Malformed chunks
// are skipped; an error object inside a chunk becomes a StreamError.
func (r *StreamReader) Next() (*StreamChunk, error) {
	for {
		if r.done {
			return nil, io.EOF
		}

		_, data, err := r.sse.ReadEvent()
		if err != nil {
			if err == io.EOF {
				r.done = true
				return nil, io.EOF
			}
			return nil, &StreamError{Partial: r.delivered, Err: err}
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			r.done = true
			return nil, io.EOF
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}

		if chunk.Error != nil {
			r.done = true
			return nil, &StreamError{
				Partial: r.delivered,
				Err:     &OpenRouterError{Code: chunk.Error.codeString(), Message: chunk.Error.Message},
			}
		}

		r.delivered += len(chunk.GetContent())
		if chunk.IsDone() {
			r.done = true
		}
		return &chunk, nil
	}
}

// Delivered returns the number of content bytes yielded so far.
func (r *StreamReader) Delivered() int {
	return r.delivered
}

// Close closes the underlying response body.
func (r *StreamReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.body.Close()
	})
	return err
}
