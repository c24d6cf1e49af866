// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo is an entry in the selectable model catalog.
type ModelInfo struct {
	// ID is the model identifier sent to the transport
	ID string `json:"id" toml:"id"`

	// Label is the human-readable display name
	Label string `json:"label" toml:"label"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description" toml:"description"`
}

// Provider guesses the vendor from the model id.
func (m ModelInfo) Provider() string {
	id := strings.ToLower(m.ID)
	switch {
	case strings.HasPrefix(id, "claude"):
		return "Anthropic"
	case strings.HasPrefix(id, "gpt"), strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"):
		return "OpenAI"
	case strings.Contains(id, "/"):
		return strings.SplitN(m.ID, "/", 2)[0]
	default:
		return "Local"
	}
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// DefaultModelID is the model selected on a fresh start.
const DefaultModelID = "claude-sonnet-4-5"

// DefaultCatalog is the built-in list of selectable models, in display order.
var DefaultCatalog = []ModelInfo{
	{ID: "claude-haiku-4-5", Label: "Claude Haiku 4.5", Description: "Fast & efficient"},
	{ID: "claude-sonnet-4-5", Label: "Claude Sonnet 4.5", Description: "Balanced power"},
	{ID: "claude-opus-4-6", Label: "Claude Opus 4.6", Description: "Maximum capability"},
	{ID: "gpt-4o", Label: "GPT-4o", Description: "OpenAI flagship"},
	{ID: "gpt-4o-mini", Label: "GPT-4o Mini", Description: "Small & fast"},
}

// Catalog is an ordered list of models.
type Catalog []ModelInfo

// Find looks up a model by exact ID, then by case-insensitive label.
func (c Catalog) Find(idOrLabel string) (ModelInfo, bool) {
	for _, info := range c {
		if info.ID == idOrLabel {
			return info, true
		}
	}
	for _, info := range c {
		if strings.EqualFold(info.Label, idOrLabel) {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// Label returns the display label for id, or id itself when unknown.
func (c Catalog) Label(id string) string {
	if info, ok := c.Find(id); ok {
		return info.Label
	}
	return id
}

// IDs returns the model ids in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, info := range c {
		ids = append(ids, info.ID)
	}
	return ids
}
