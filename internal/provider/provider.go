// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"io"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrCancelled is returned by streams that stop because the caller cancelled.
var ErrCancelled = errors.New("provider: stream cancelled")

// IsCancellation reports whether err means the caller asked the stream to
// stop, as opposed to a transport failure.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// =============================================================================
// CONTRACT
// =============================================================================

// Event is one unit of streamed output. Exactly one of Text or Reasoning is
// expected to be set; an event with both is applied reasoning first.
type Event struct {
	Text      string
	Reasoning string
}

// IsEmpty reports whether the event carries nothing.
func (e Event) IsEmpty() bool {
	return e.Text == "" && e.Reasoning == ""
}

// Request is what a provider needs to produce one reply.
type Request struct {
	Prompt  string
	Model   string
	History []model.HistoryEntry
}

// Stream is a lazily produced sequence of events.
type Stream interface {
	// Next blocks for the next event. It returns io.EOF after the last event.
	Next(ctx context.Context) (Event, error)

	// Close releases the stream. It is safe to call more than once.
	Close() error
}

// Provider opens streams.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// =============================================================================
// HELPERS
// =============================================================================

// Collect drains s and returns the concatenated text and reasoning.
func Collect(ctx context.Context, s Stream) (text, reasoning string, err error) {
	defer s.Close()
	var t, r []byte
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return string(t), string(r), nil
		}
		if err != nil {
			return string(t), string(r), err
		}
		t = append(t, ev.Text...)
		r = append(r, ev.Reasoning...)
	}
}

// ctxErr maps a done context to the cancellation sentinel when appropriate.
func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.Canceled) {
		return errors.Join(ErrCancelled, err)
	}
	return err
}
