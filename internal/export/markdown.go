// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown with YAML frontmatter.
// Reasoning is folded into a <details> block under each answer.
type MarkdownExporter struct {
	// NoMetadata drops the frontmatter and session information block.
	NoMetadata bool
}

// Export converts a transcript to Markdown format.
func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	if t == nil {
		return ErrNilTranscript
	}

	var sb strings.Builder

	if !e.NoMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.Title))
		if t.Model != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(t.Model))
		}
		fmt.Fprintf(&sb, "date: %s\n", t.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "updated: %s\n", t.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", t.ExportedAt.Format(time.RFC3339))
		sb.WriteString("generator: parley\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))

	if !e.NoMetadata {
		sb.WriteString("## Session Information\n\n")
		if t.Model != "" {
			fmt.Fprintf(&sb, "- **Model**: %s\n", t.Model)
		}
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(t.CreatedAt))
		fmt.Fprintf(&sb, "- **Last Updated**: %s\n", formatTimestamp(t.UpdatedAt))
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(t.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	if len(t.Messages) == 0 {
		sb.WriteString("*No messages.*\n")
	}

	for i, msg := range t.Messages {
		fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", roleLabel(msg.Role), formatShortTimestamp(msg.Timestamp))

		if len(msg.Files) > 0 {
			names := make([]string, 0, len(msg.Files))
			for _, f := range msg.Files {
				names = append(names, "`"+f.Name+"`")
			}
			fmt.Fprintf(&sb, "*Attached: %s*\n\n", strings.Join(names, ", "))
		}

		if msg.Reasoning != "" {
			summary := "Reasoning"
			if msg.Duration != nil {
				summary = model.FormatDuration(*msg.Duration)
			}
			fmt.Fprintf(&sb, "<details>\n<summary>%s</summary>\n\n%s\n\n</details>\n\n", summary, strings.TrimSpace(msg.Reasoning))
		}

		if content := strings.TrimSpace(msg.Content); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}

		if msg.Error != "" {
			fmt.Fprintf(&sb, "> **Error:** %s\n\n", msg.Error)
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Extension returns the file extension for Markdown.
func (e *MarkdownExporter) Extension() string {
	return "md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(role string) string {
	if r := model.Role(role); r.Valid() {
		return r.DisplayName()
	}
	if role == "" {
		return "Unknown"
	}
	runes := []rune(role)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
