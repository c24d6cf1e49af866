// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// maxLineSize bounds one NDJSON line.
const maxLineSize = 1024 * 1024

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader reads newline-delimited JSON chat responses.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	model   string
	done    bool

	closeOnce sync.Once
}

// NewStreamReader creates a new stream reader over body.
func NewStreamReader(body io.ReadCloser) *StreamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamReader{body: body, scanner: scanner}
}

// Next returns the next chunk. It returns io.EOF after the chunk with
// done=true or when the body ends.
func (s *StreamReader) Next() (*StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var response ChatResponse
		if err := json.Unmarshal(line, &response); err != nil {
			// Skip malformed lines
			continue
		}
		if response.Error != "" {
			s.done = true
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: response.Error}
		}
		if response.Model != "" {
			s.model = response.Model
		}

		chunk := &StreamChunk{
			Content:    response.Message.Content,
			Thinking:   response.Message.Thinking,
			Done:       response.Done,
			DoneReason: response.DoneReason,
			Model:      s.model,
		}
		if response.Done {
			s.done = true
			chunk.TotalDuration = time.Duration(response.TotalDuration)
			chunk.PromptTokens = response.PromptEvalCount
			chunk.CompletionTokens = response.EvalCount
		}
		return chunk, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, transportError(err)
	}
	return nil, io.EOF
}

// Process reads the stream and calls fn for each chunk until done.
func (s *StreamReader) Process(ctx context.Context, fn func(StreamChunk)) error {
	for {
		if err := ctx.Err(); err != nil {
			return transportError(err)
		}
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(*chunk)
	}
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}

// Close releases the response body.
func (s *StreamReader) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
