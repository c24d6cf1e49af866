// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// MODEL SELECTION
// =============================================================================

// Model returns the selected model id.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedModel
}

// SetModel selects a model. Blank ids are ignored.
func (s *Store) SetModel(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	s.mu.Lock()
	if s.selectedModel == id {
		s.mu.Unlock()
		return true
	}
	s.selectedModel = id
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: ModelChanged}})
	return true
}

// =============================================================================
// ATTACHMENT BUFFER
// =============================================================================

// Attachments returns a copy of the pending attachment buffer.
func (s *Store) Attachments() []model.AttachedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFiles(s.attachments)
}

// AttachFiles appends files to the pending attachment buffer.
func (s *Store) AttachFiles(files ...model.AttachedFile) {
	if len(files) == 0 {
		return
	}
	s.mu.Lock()
	s.attachments = append(s.attachments, files...)
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: AttachmentsChanged}})
}

// RemoveAttachment drops the attachment at index i. Out-of-range is a no-op.
func (s *Store) RemoveAttachment(i int) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.attachments) {
		s.mu.Unlock()
		return false
	}
	s.attachments = append(s.attachments[:i:i], s.attachments[i+1:]...)
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: AttachmentsChanged}})
	return true
}

// ClearAttachments empties the pending attachment buffer.
func (s *Store) ClearAttachments() {
	s.mu.Lock()
	if len(s.attachments) == 0 {
		s.mu.Unlock()
		return
	}
	s.attachments = []model.AttachedFile{}
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: AttachmentsChanged}})
}

// =============================================================================
// SIDE PANEL
// =============================================================================

// SidePanel is a code snippet opened next to the conversation.
type SidePanel struct {
	Title    string
	Language string
	Code     string
}

// OpenSidePanel shows p, replacing anything already open.
func (s *Store) OpenSidePanel(p SidePanel) {
	s.mu.Lock()
	s.sidePanel = &p
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: SidePanelChanged}})
}

// CloseSidePanel clears the side panel.
func (s *Store) CloseSidePanel() {
	s.mu.Lock()
	if s.sidePanel == nil {
		s.mu.Unlock()
		return
	}
	s.sidePanel = nil
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: SidePanelChanged}})
}

// SidePanel returns the open side panel, if any.
func (s *Store) SidePanel() (SidePanel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sidePanel == nil {
		return SidePanel{}, false
	}
	return *s.sidePanel, true
}
