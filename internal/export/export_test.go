// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/parley/internal/model"
)

var (
	created  = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	exported = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

func sampleSession() *model.Session {
	dur := 2.4
	return &model.Session{
		ID:        "sess-1",
		Title:     "Deploy: a *plan*",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
		Messages: []model.Message{
			{
				ID:        "m1",
				Role:      model.RoleUser,
				Timestamp: created,
				Content:   "How do I deploy?",
				Files:     []model.AttachedFile{{Name: "app.yaml", Size: 42, MimeType: "text/yaml", Content: "secret: x"}},
			},
			{
				ID:        "m2",
				Role:      model.RoleAssistant,
				Timestamp: created.Add(time.Second),
				Content:   "Use the pipeline.",
				Reasoning: "User wants steps.",
				Duration:  &dur,
			},
			{
				ID:        "m3",
				Role:      model.RoleAssistant,
				Timestamp: created.Add(2 * time.Second),
				Content:   "Partial",
				Error:     "Failed to get response. Please try again.",
			},
		},
	}
}

func sampleTranscript() *Transcript {
	return NewTranscript(sampleSession(), "claude-sonnet-4-5", exported)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func TestNewTranscript(t *testing.T) {
	tr := sampleTranscript()
	require.NotNil(t, tr)
	assert.Equal(t, "sess-1", tr.ID)
	assert.Equal(t, "claude-sonnet-4-5", tr.Model)
	require.Len(t, tr.Messages, 3)

	assert.Equal(t, []FileRef{{Name: "app.yaml", Size: 42, MimeType: "text/yaml"}}, tr.Messages[0].Files)
	require.NotNil(t, tr.Messages[1].Duration)
	assert.Equal(t, 2.4, *tr.Messages[1].Duration)
	assert.Nil(t, tr.Messages[2].Duration)

	assert.Nil(t, NewTranscript(nil, "", exported))
}

func TestNewTranscript_CopiesDuration(t *testing.T) {
	sess := sampleSession()
	tr := NewTranscript(sess, "", exported)
	*sess.Messages[1].Duration = 9
	assert.Equal(t, 2.4, *tr.Messages[1].Duration)
}

// =============================================================================
// LOOKUP
// =============================================================================

func TestFor(t *testing.T) {
	tests := []struct {
		format string
		ext    string
		mime   string
	}{
		{"md", "md", "text/markdown"},
		{"Markdown", "md", "text/markdown"},
		{"json", "json", "application/json"},
		{"jsonl", "jsonl", "application/jsonl"},
		{"yaml", "yaml", "application/yaml"},
		{" yml ", "yaml", "application/yaml"},
	}
	for _, tt := range tests {
		exp, err := For(tt.format)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, exp.Extension(), tt.format)
		assert.Equal(t, tt.mime, exp.MimeType(), tt.format)
	}

	_, err := For("html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jsonl")
}

func TestExporters_RejectNil(t *testing.T) {
	for _, format := range []string{"md", "json", "jsonl", "yaml"} {
		exp, err := For(format)
		require.NoError(t, err)
		assert.ErrorIs(t, exp.Export(nil, &bytes.Buffer{}), ErrNilTranscript, format)
	}
}

// =============================================================================
// FORMATS
// =============================================================================

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(sampleTranscript(), &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.Contains(t, out, `title: "Deploy: a *plan*"`)
	assert.Contains(t, out, "# Deploy: a \\*plan\\*")
	assert.Contains(t, out, "### You <sub>09:30:00</sub>")
	assert.Contains(t, out, "*Attached: `app.yaml`*")
	assert.Contains(t, out, "<summary>Thought for 2.4s</summary>")
	assert.Contains(t, out, "User wants steps.")
	assert.Contains(t, out, "> **Error:** Failed to get response. Please try again.")
	assert.NotContains(t, out, "secret: x")
}

func TestMarkdownExporter_NoMetadataEmpty(t *testing.T) {
	tr := &Transcript{Title: "Empty", ExportedAt: exported}
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{NoMetadata: true}).Export(tr, &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Empty"))
	assert.Contains(t, out, "*No messages.*")
	assert.NotContains(t, out, "Session Information")
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a\nb: c"`, escapeYAML("a\nb: c"))
	assert.Equal(t, `" padded"`, escapeYAML(" padded"))
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(sampleTranscript(), &buf))

	var got Transcript
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Deploy: a *plan*", got.Title)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "User wants steps.", got.Messages[1].Reasoning)
	assert.NotContains(t, buf.String(), `"reasoning": ""`)
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLExporter{}).Export(sampleTranscript(), &buf))

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "sess-1", lines[0]["session_id"])
	assert.Equal(t, "user", lines[0]["role"])
	assert.Equal(t, 2.4, lines[1]["duration"])
	assert.Equal(t, "Failed to get response. Please try again.", lines[2]["error"])
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLExporter{}).Export(sampleTranscript(), &buf))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Deploy: a *plan*", got["title"])
	assert.Equal(t, "claude-sonnet-4-5", got["model"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 3)
}

// =============================================================================
// FILES
// =============================================================================

func TestToFile_GeneratedName(t *testing.T) {
	dir := t.TempDir() + string(filepath.Separator)
	exp, err := For("md")
	require.NoError(t, err)

	path, err := ToFile(sampleTranscript(), exp, dir)
	require.NoError(t, err)
	assert.Equal(t, "chat_Deploy-_a_-plan-_20250301_100000.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Use the pipeline.")
}

func TestToFile_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chat.json")
	exp, err := For("json")
	require.NoError(t, err)

	got, err := ToFile(sampleTranscript(), exp, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.FileExists(t, path)

	_, err = ToFile(nil, exp, path)
	assert.ErrorIs(t, err, ErrNilTranscript)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "chat", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Equal(t, 50, len([]rune(sanitizeFilename(strings.Repeat("é", 80)))))
}
