// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"time"
)

// Echo is an offline Completer that replies with the prompt it was given.
type Echo struct{}

// NewEcho returns a paced echo provider.
func NewEcho(delay time.Duration) *Paced {
	return NewPaced(Echo{}, delay)
}

// Name returns "echo".
func (Echo) Name() string {
	return "echo"
}

// Complete echoes the prompt.
func (Echo) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return Response{
		Reasoning: fmt.Sprintf("Echoing %d characters with %d prior messages as context for %s.",
			len([]rune(req.Prompt)), len(req.History), req.Model),
		Text: req.Prompt,
	}, nil
}
