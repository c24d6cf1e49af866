// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the whole transcript as one indented JSON document.
type JSONExporter struct{}

// Export converts a transcript to JSON format.
func (e *JSONExporter) Export(t *Transcript, w io.Writer) error {
	if t == nil {
		return ErrNilTranscript
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// Extension returns the file extension for JSON.
func (e *JSONExporter) Extension() string {
	return "json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// =============================================================================
// JSONL EXPORTER
// =============================================================================

// JSONLExporter writes one message per line, each tagged with the session
// id and title so lines from several exports can be concatenated.
type JSONLExporter struct{}

type jsonlLine struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	TranscriptMessage
}

// Export converts a transcript to JSONL format.
func (e *JSONLExporter) Export(t *Transcript, w io.Writer) error {
	if t == nil {
		return ErrNilTranscript
	}
	enc := json.NewEncoder(w)
	for _, msg := range t.Messages {
		line := jsonlLine{SessionID: t.ID, Title: t.Title, TranscriptMessage: msg}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}
	return nil
}

// Extension returns the file extension for JSONL.
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}

// MimeType returns the MIME type for JSONL.
func (e *JSONLExporter) MimeType() string {
	return "application/jsonl"
}
