// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the ledger roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHED FILE
// =============================================================================

// AttachedFile is a text file attached to a user message.
// Content is fully materialized; there is no chunked upload.
type AttachedFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}

// Block renders the file as a delimited prompt block.
func (f AttachedFile) Block() string {
	return "--- File: " + f.Name + " ---\n" + f.Content
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a session ledger.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content accumulated so far. Grows by concatenation while streaming.
	Content string `json:"content"`

	// Reasoning is the chain-of-thought stream, kept apart from Content.
	Reasoning string `json:"reasoning"`

	// Duration is the reasoning wall time in seconds, one decimal.
	// Nil until a stream with reasoning finalizes.
	Duration *float64 `json:"duration,omitempty"`

	// Error is set when the transport failed for this message.
	Error string `json:"error,omitempty"`

	Files []AttachedFile `json:"files,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string, files []AttachedFile) *Message {
	if files == nil {
		files = []AttachedFile{}
	}
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Files:     files,
		Timestamp: time.Now(),
	}
}

// NewPlaceholder creates the empty assistant message that a stream grows.
func NewPlaceholder() *Message {
	return NewMessage(RoleAssistant, "", nil)
}

// HasError reports whether the message carries a transport error.
func (m *Message) HasError() bool {
	return m.Error != ""
}

// IsEmpty returns true if the message has neither content nor reasoning.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Reasoning == ""
}

// Preview returns a truncated single-line preview of the message content.
func (m *Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	if m.Duration != nil {
		d := *m.Duration
		m.Duration = &d
	}
	if m.Files != nil {
		files := make([]AttachedFile, len(m.Files))
		copy(files, m.Files)
		m.Files = files
	}
	return m
}

// =============================================================================
// PATCH
// =============================================================================

// Patch is a shallow update to the trailing assistant message.
// Deltas are appended; Error and Duration overwrite when non-nil.
type Patch struct {
	ContentDelta   string
	ReasoningDelta string
	Error          *string
	Duration       *float64
}

// IsZero reports whether applying the patch would change nothing.
func (p Patch) IsZero() bool {
	return p.ContentDelta == "" && p.ReasoningDelta == "" && p.Error == nil && p.Duration == nil
}

// Apply merges the patch into m.
func (m *Message) Apply(p Patch) {
	m.Content += p.ContentDelta
	m.Reasoning += p.ReasoningDelta
	if p.Error != nil {
		m.Error = *p.Error
	}
	if p.Duration != nil {
		d := *p.Duration
		m.Duration = &d
	}
}

// ContentPatch appends text to the content.
func ContentPatch(delta string) Patch {
	return Patch{ContentDelta: delta}
}

// ReasoningPatch appends text to the reasoning.
func ReasoningPatch(delta string) Patch {
	return Patch{ReasoningDelta: delta}
}

// ErrorPatch overwrites the error text.
func ErrorPatch(text string) Patch {
	return Patch{Error: &text}
}

// DurationPatch overwrites the reasoning duration.
func DurationPatch(seconds float64) Patch {
	return Patch{Duration: &seconds}
}

// =============================================================================
// REASONING DURATION
// =============================================================================

// ReasoningSeconds converts a reasoning interval to seconds rounded to one
// decimal place.
func ReasoningSeconds(start, end time.Time) float64 {
	d := end.Sub(start).Seconds()
	if d < 0 {
		d = 0
	}
	return math.Round(d*10) / 10
}

// FormatDuration renders a reasoning duration for display, e.g. "Thought for 2.4s".
func FormatDuration(seconds float64) string {
	return "Thought for " + strconv.FormatFloat(seconds, 'f', 1, 64) + "s"
}
