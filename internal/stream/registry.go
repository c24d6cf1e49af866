// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK REGISTRY
// =============================================================================

// Registry maps session ids to the cancel handle of their in-flight stream.
// At most one entry exists per session.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	token   string
	cancel  context.CancelFunc
	started time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire registers cancel for sessionID. It fails if the session already
// has an entry. The returned token must be passed to Release.
func (r *Registry) Acquire(sessionID string, cancel context.CancelFunc) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.entries[sessionID]; busy {
		return "", false
	}
	token := uuid.NewString()
	r.entries[sessionID] = &entry{token: token, cancel: cancel, started: time.Now()}
	return token, true
}

// Release removes the entry for sessionID if it still belongs to token and
// cancels its context. A stale token is ignored, so a finished stream never
// removes a newer stream's entry.
func (r *Registry) Release(sessionID, token string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok && e.token == token {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if ok && e.token == token {
		e.cancel()
	}
}

// Cancel signals the stream for sessionID and removes it immediately.
// Returns false when nothing was registered.
func (r *Registry) Cancel(sessionID string) bool {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if ok {
		e.cancel()
	}
	return ok
}

// CancelAll signals every registered stream and empties the registry.
// Returns how many were cancelled.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	return len(entries)
}

// Has reports whether sessionID has a stream in flight.
func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sessionID]
	return ok
}

// Len returns the number of streams in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sessions returns the ids of sessions with a stream in flight, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Elapsed returns how long the stream for sessionID has been running.
func (r *Registry) Elapsed(sessionID string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return 0, false
	}
	return time.Since(e.started), true
}
