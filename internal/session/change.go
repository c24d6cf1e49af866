// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sort"
	"sync"
)

// =============================================================================
// CHANGE EVENTS
// =============================================================================

// ChangeKind identifies what a store mutation touched.
type ChangeKind int

const (
	SessionCreated ChangeKind = iota
	SessionDeleted
	SessionRenamed
	ActiveChanged
	MessageAppended
	MessageUpdated
	ModelChanged
	AttachmentsChanged
	SidePanelChanged
)

// String returns the name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case SessionCreated:
		return "session_created"
	case SessionDeleted:
		return "session_deleted"
	case SessionRenamed:
		return "session_renamed"
	case ActiveChanged:
		return "active_changed"
	case MessageAppended:
		return "message_appended"
	case MessageUpdated:
		return "message_updated"
	case ModelChanged:
		return "model_changed"
	case AttachmentsChanged:
		return "attachments_changed"
	case SidePanelChanged:
		return "side_panel_changed"
	default:
		return "unknown"
	}
}

// Change describes one applied mutation.
// For MessageUpdated, the deltas carry exactly what was appended.
type Change struct {
	Kind      ChangeKind
	SessionID string
	MessageID string

	ContentDelta   string
	ReasoningDelta string
	Error          string
}

// Listener receives store changes.
type Listener func(Change)

// =============================================================================
// LISTENER REGISTRY
// =============================================================================

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

// snapshot returns listeners in registration order.
func (l *listeners) snapshot() []Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.fns) == 0 {
		return nil
	}
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.fns[id])
	}
	return out
}

func (l *listeners) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}
	fns := l.snapshot()
	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
