// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"io"
	"sync"
	"time"
	"unicode"

	"golang.org/x/time/rate"
)

// DefaultTokenDelay is the pause between tokens of a paced stream.
const DefaultTokenDelay = 15 * time.Millisecond

// =============================================================================
// COMPLETER
// =============================================================================

// Response is a complete, non-streamed reply.
type Response struct {
	Text      string
	Reasoning string
}

// Completer is a backend that only returns whole responses.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// =============================================================================
// PACED PROVIDER
// =============================================================================

// Paced turns a Completer into a Provider. The reasoning, if any, is emitted
// as one event; the text follows one whitespace-delimited token per tick.
type Paced struct {
	completer Completer
	delay     time.Duration
}

// NewPaced wraps c. A non-positive delay emits tokens back to back.
func NewPaced(c Completer, delay time.Duration) *Paced {
	return &Paced{completer: c, delay: delay}
}

// Name returns the wrapped completer's name.
func (p *Paced) Name() string {
	return p.completer.Name()
}

// Stream fetches the whole response, then replays it.
func (p *Paced) Stream(ctx context.Context, req Request) (Stream, error) {
	resp, err := p.completer.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxErr(ctx)
		}
		return nil, err
	}
	return NewReplay(resp, p.delay), nil
}

// =============================================================================
// REPLAY STREAM
// =============================================================================

// Replay streams a fixed response at a steady pace.
type Replay struct {
	mu        sync.Mutex
	reasoning string
	tokens    []string
	limiter   *rate.Limiter
	closed    bool
}

// NewReplay creates a stream over resp with delay between text tokens.
func NewReplay(resp Response, delay time.Duration) *Replay {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Replay{
		reasoning: resp.Reasoning,
		tokens:    Tokenize(resp.Text),
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Next returns the next event, waiting out the pacing delay.
func (r *Replay) Next(ctx context.Context) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Event{}, ctxErr(ctx)
	}
	if r.closed {
		return Event{}, io.EOF
	}
	if r.reasoning != "" {
		ev := Event{Reasoning: r.reasoning}
		r.reasoning = ""
		return ev, nil
	}
	if len(r.tokens) == 0 {
		return Event{}, io.EOF
	}
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return Event{}, ctxErr(ctx)
		}
		return Event{}, err
	}
	tok := r.tokens[0]
	r.tokens = r.tokens[1:]
	return Event{Text: tok}, nil
}

// Close stops the stream.
func (r *Replay) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Tokenize splits s into alternating runs of whitespace and non-whitespace.
// Concatenating the tokens yields s.
func Tokenize(s string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = space
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
