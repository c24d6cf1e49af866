// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the format-neutral view of one session that every exporter
// renders. Attached file contents are omitted; only their metadata is kept.
type Transcript struct {
	ID         string              `json:"id" yaml:"id"`
	Title      string              `json:"title" yaml:"title"`
	Model      string              `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAt  time.Time           `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" yaml:"updated_at"`
	ExportedAt time.Time           `json:"exported_at" yaml:"exported_at"`
	Messages   []TranscriptMessage `json:"messages" yaml:"messages"`
}

// TranscriptMessage is one ledger entry.
type TranscriptMessage struct {
	ID        string    `json:"id" yaml:"id"`
	Role      string    `json:"role" yaml:"role"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Content   string    `json:"content" yaml:"content"`
	Reasoning string    `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	// Duration is the reasoning time in seconds
	Duration *float64  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	Files    []FileRef `json:"files,omitempty" yaml:"files,omitempty"`
}

// FileRef describes an attachment without its content.
type FileRef struct {
	Name     string `json:"name" yaml:"name"`
	Size     int64  `json:"size" yaml:"size"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
}

// NewTranscript converts a session snapshot. modelID is the model that was
// selected when exporting and may be empty.
func NewTranscript(sess *model.Session, modelID string, now time.Time) *Transcript {
	if sess == nil {
		return nil
	}

	messages := make([]TranscriptMessage, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		tm := TranscriptMessage{
			ID:        msg.ID,
			Role:      msg.Role.String(),
			Timestamp: msg.Timestamp,
			Content:   msg.Content,
			Reasoning: msg.Reasoning,
			Error:     msg.Error,
		}
		if msg.Duration != nil {
			d := *msg.Duration
			tm.Duration = &d
		}
		for _, f := range msg.Files {
			tm.Files = append(tm.Files, FileRef{Name: f.Name, Size: f.Size, MimeType: f.MimeType})
		}
		messages = append(messages, tm)
	}

	return &Transcript{
		ID:         sess.ID,
		Title:      sess.Title,
		Model:      modelID,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
		ExportedAt: now,
		Messages:   messages,
	}
}
