// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/parley/internal/model"
)

// MaxAttachmentSize is the largest file that can be attached (256KB).
const MaxAttachmentSize = 256 * 1024

// =============================================================================
// ATTACHMENTS
// =============================================================================

// loadAttachment reads path as a text attachment. Binary files and files
// over MaxAttachmentSize are rejected.
func loadAttachment(path string) (model.AttachedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.AttachedFile{}, fmt.Errorf("file not found: %s", path)
		}
		return model.AttachedFile{}, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return model.AttachedFile{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxAttachmentSize {
		return model.AttachedFile{}, fmt.Errorf("file too large: %d bytes (max %d bytes)", info.Size(), MaxAttachmentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.AttachedFile{}, fmt.Errorf("failed to read file: %w", err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return model.AttachedFile{}, fmt.Errorf("%s is not a text file", path)
	}

	return model.AttachedFile{
		Name:     filepath.Base(path),
		Size:     int64(len(data)),
		MimeType: detectMimeType(path, data),
		Content:  string(data),
	}, nil
}

// loadAttachments reads every path, stopping at the first failure.
func loadAttachments(paths []string) ([]model.AttachedFile, error) {
	files := make([]model.AttachedFile, 0, len(paths))
	for _, p := range paths {
		f, err := loadAttachment(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// detectMimeType prefers the extension and falls back to sniffing.
func detectMimeType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// codeBlock is one fenced block from a reply.
type codeBlock struct {
	Language string
	Code     string
}

var fenceRegex = regexp.MustCompile("(?s)```([^\\n`]*)\\n(.*?)```")

// extractCodeBlocks returns the fenced code blocks of content in order.
func extractCodeBlocks(content string) []codeBlock {
	matches := fenceRegex.FindAllStringSubmatch(content, -1)
	blocks := make([]codeBlock, 0, len(matches))
	for _, m := range matches {
		lang := strings.TrimSpace(m[1])
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, codeBlock{Language: lang, Code: strings.TrimSpace(m[2])})
	}
	return blocks
}

// lastAssistant returns the newest assistant message of sess, if any.
func lastAssistant(sess *model.Session) *model.Message {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == model.RoleAssistant {
			return &sess.Messages[i]
		}
	}
	return nil
}
