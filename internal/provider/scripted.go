// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"io"
	"sync"
	"time"
)

// =============================================================================
// SCRIPT STEPS
// =============================================================================

// Step is one instruction in a scripted stream.
type Step struct {
	event Event
	delay time.Duration
	err   error
	hold  <-chan struct{}
}

// Text emits an answer event.
func Text(s string) Step { return Step{event: Event{Text: s}} }

// Reasoning emits a reasoning event.
func Reasoning(s string) Step { return Step{event: Event{Reasoning: s}} }

// Sleep pauses the stream, honoring cancellation.
func Sleep(d time.Duration) Step { return Step{delay: d} }

// Fail makes Next return err.
func Fail(err error) Step { return Step{err: err} }

// Hold blocks the stream until ch is closed or the context is done.
func Hold(ch <-chan struct{}) Step { return Step{hold: ch} }

// =============================================================================
// SCRIPTED PROVIDER
// =============================================================================

// Scripted replays the same steps for every request and records requests.
type Scripted struct {
	name  string
	steps []Step

	mu       sync.Mutex
	requests []Request
	openErr  error
}

// NewScripted creates a provider that plays steps on every Stream call.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{name: "scripted", steps: steps}
}

// FailOpen makes Stream itself return err.
func (p *Scripted) FailOpen(err error) *Scripted {
	p.mu.Lock()
	p.openErr = err
	p.mu.Unlock()
	return p
}

// Name returns "scripted".
func (p *Scripted) Name() string {
	return p.name
}

// Stream records req and returns a fresh stream over the script.
func (p *Scripted) Stream(ctx context.Context, req Request) (Stream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	openErr := p.openErr
	p.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}
	return &scriptStream{steps: p.steps}, nil
}

// Requests returns every request received so far.
func (p *Scripted) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

type scriptStream struct {
	steps []Step
	pos   int
}

func (s *scriptStream) Next(ctx context.Context) (Event, error) {
	for s.pos < len(s.steps) {
		if ctx.Err() != nil {
			return Event{}, ctxErr(ctx)
		}
		step := s.steps[s.pos]
		s.pos++

		switch {
		case step.err != nil:
			return Event{}, step.err
		case step.hold != nil:
			select {
			case <-step.hold:
			case <-ctx.Done():
				return Event{}, ctxErr(ctx)
			}
		case step.delay > 0:
			t := time.NewTimer(step.delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return Event{}, ctxErr(ctx)
			}
		default:
			return step.event, nil
		}
	}
	return Event{}, io.EOF
}

func (s *scriptStream) Close() error {
	s.pos = len(s.steps)
	return nil
}
