// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/parley/internal/util"
)

// DefaultTitle is the title of a session before its first user message.
const DefaultTitle = "New Chat"

// TitleEllipsis is appended to auto-generated titles that were cut short.
const TitleEllipsis = "…"

// DefaultTitleRunes is the auto-title length used when none is configured.
const DefaultTitleRunes = 50

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a single conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session. A blank title becomes DefaultTitle.
func NewSession(title string) *Session {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MessageCount returns the number of messages in the ledger.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// IsEmpty returns true if the ledger has no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// LastMessage returns a pointer to the trailing message, or nil.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Touch bumps UpdatedAt.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// Matches reports whether query (case-insensitive) occurs in the title or in
// any message content. A blank query matches everything.
func (s *Session) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Title), q) {
		return true
	}
	for _, m := range s.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		clone.Messages[i] = m.Clone()
	}
	return &clone
}

// =============================================================================
// TITLES AND HISTORY
// =============================================================================

// AutoTitle derives a session title from the first user message: the first
// maxRunes runes, plus TitleEllipsis when the content was longer.
// Returns "" when content is blank.
func AutoTitle(content string, maxRunes int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if maxRunes <= 0 {
		maxRunes = DefaultTitleRunes
	}
	return util.Clip(content, maxRunes, TitleEllipsis)
}

// HistoryEntry is the {role, content} pair a transport receives as context.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// BuildHistory maps messages to history entries, keeping only the trailing
// limit entries. A non-positive limit keeps everything.
func BuildHistory(messages []Message, limit int) []HistoryEntry {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	history := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		history = append(history, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return history
}

// BuildPrompt composes the outgoing user prompt: each file rendered as a
// delimited block, blocks joined by a blank line, then the typed content.
func BuildPrompt(content string, files []AttachedFile) string {
	if len(files) == 0 {
		return content
	}
	blocks := make([]string, 0, len(files))
	for _, f := range files {
		blocks = append(blocks, f.Block())
	}
	return strings.Join(blocks, "\n\n") + "\n\n" + content
}
