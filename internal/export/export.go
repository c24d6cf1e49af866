// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// ErrNilTranscript is returned when there is nothing to export.
var ErrNilTranscript = errors.New("export: transcript is nil")

// Exporter defines the interface for transcript exporters.
type Exporter interface {
	// Export writes t in the target format.
	Export(t *Transcript, w io.Writer) error

	// Extension returns the file extension without the dot (e.g. "md").
	Extension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

var exporters = map[string]func() Exporter{
	"md":       func() Exporter { return &MarkdownExporter{} },
	"markdown": func() Exporter { return &MarkdownExporter{} },
	"json":     func() Exporter { return &JSONExporter{} },
	"jsonl":    func() Exporter { return &JSONLExporter{} },
	"yaml":     func() Exporter { return &YAMLExporter{} },
	"yml":      func() Exporter { return &YAMLExporter{} },
}

// For returns the exporter registered for format (case-insensitive).
func For(format string) (Exporter, error) {
	if ctor, ok := exporters[strings.ToLower(strings.TrimSpace(format))]; ok {
		return ctor(), nil
	}
	return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats(), ", "))
}

// Formats lists the accepted format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports t to path. When path is empty or names a directory (ends
// in a separator), a file name is generated from the title and export time.
// Returns the path written.
func ToFile(t *Transcript, exporter Exporter, path string) (string, error) {
	if t == nil {
		return "", ErrNilTranscript
	}

	var buf bytes.Buffer
	if err := exporter.Export(t, &buf); err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" || strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		path = filepath.Join(path, FileName(t, exporter))
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// FileName builds "chat_<title>_<timestamp>.<ext>".
func FileName(t *Transcript, exporter Exporter) string {
	stamp := t.ExportedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return fmt.Sprintf("chat_%s_%s.%s", sanitizeFilename(t.Title), stamp.Format("20060102_150405"), exporter.Extension())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.Clip(s, 50, "")

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "chat"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
