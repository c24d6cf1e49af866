// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	a := NewMessage(RoleUser, "hi", nil)
	b := NewMessage(RoleUser, "hi", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotNil(t, a.Files)
	assert.Nil(t, a.Duration)
	assert.False(t, a.HasError())
}

func TestNewPlaceholder(t *testing.T) {
	p := NewPlaceholder()
	assert.Equal(t, RoleAssistant, p.Role)
	assert.True(t, p.IsEmpty())
	assert.Empty(t, p.Error)
}

func TestMessage_Apply(t *testing.T) {
	m := NewPlaceholder()

	m.Apply(ReasoningPatch("think "))
	m.Apply(ReasoningPatch("more"))
	m.Apply(ContentPatch("Hello"))
	m.Apply(ContentPatch(", world"))
	m.Apply(DurationPatch(1.2))

	assert.Equal(t, "think more", m.Reasoning)
	assert.Equal(t, "Hello, world", m.Content)
	require.NotNil(t, m.Duration)
	assert.Equal(t, 1.2, *m.Duration)

	m.Apply(ErrorPatch("boom"))
	assert.Equal(t, "boom", m.Error)
	assert.Equal(t, "Hello, world", m.Content, "error must not clear content")
}

func TestPatch_IsZero(t *testing.T) {
	assert.True(t, Patch{}.IsZero())
	assert.False(t, ContentPatch("x").IsZero())
	assert.False(t, ErrorPatch("").IsZero())
}

func TestMessage_CloneIsDeep(t *testing.T) {
	m := NewMessage(RoleUser, "hi", []AttachedFile{{Name: "a.txt", Content: "A"}})
	d := 2.0
	m.Duration = &d

	c := m.Clone()
	c.Files[0].Name = "changed"
	*c.Duration = 9

	assert.Equal(t, "a.txt", m.Files[0].Name)
	assert.Equal(t, 2.0, *m.Duration)
}

func TestMessage_Preview(t *testing.T) {
	m := NewMessage(RoleUser, "line one\nline two", nil)
	assert.Equal(t, "line one line two", m.Preview(50))
	assert.Equal(t, "line ...", m.Preview(8))
}

func TestReasoningSeconds(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"rounds down", 1240 * time.Millisecond, 1.2},
		{"rounds up", 1250 * time.Millisecond, 1.3},
		{"zero", 0, 0},
		{"negative clamps", -time.Second, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReasoningSeconds(start, start.Add(tc.elapsed)))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "Thought for 2.4s", FormatDuration(2.4))
	assert.Equal(t, "Thought for 0.0s", FormatDuration(0))
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewSession(t *testing.T) {
	s := NewSession("")
	assert.Equal(t, DefaultTitle, s.Title)
	assert.True(t, s.IsEmpty())
	assert.NotNil(t, s.Messages)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)

	named := NewSession("Plans")
	assert.Equal(t, "Plans", named.Title)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("")
	s.Messages = append(s.Messages, *NewMessage(RoleUser, "hi", nil))

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages = append(c.Messages, *NewPlaceholder())

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Len(t, s.Messages, 1)
}

func TestSession_Matches(t *testing.T) {
	s := NewSession("Go Concurrency")
	s.Messages = append(s.Messages, *NewMessage(RoleUser, "Explain channels", nil))

	assert.True(t, s.Matches(""))
	assert.True(t, s.Matches("  "))
	assert.True(t, s.Matches("concurrency"))
	assert.True(t, s.Matches("CHANNELS"))
	assert.False(t, s.Matches("mutex"))
}

func TestAutoTitle(t *testing.T) {
	assert.Equal(t, "Hello", AutoTitle("Hello", 50))
	assert.Equal(t, "", AutoTitle("   ", 50))

	long := strings.Repeat("a", 60)
	got := AutoTitle(long, 50)
	assert.Equal(t, strings.Repeat("a", 50)+TitleEllipsis, got)

	exact := strings.Repeat("b", 50)
	assert.Equal(t, exact, AutoTitle(exact, 50))

	assert.Equal(t, strings.Repeat("c", DefaultTitleRunes)+TitleEllipsis, AutoTitle(strings.Repeat("c", 70), 0))
}

func TestBuildHistory(t *testing.T) {
	var msgs []Message
	for i := 0; i < 25; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		m := NewMessage(role, string(rune('a'+i)), nil)
		m.Reasoning = "hidden"
		msgs = append(msgs, *m)
	}

	history := BuildHistory(msgs, 20)
	require.Len(t, history, 20)
	assert.Equal(t, string(rune('a'+5)), history[0].Content)
	assert.Equal(t, string(rune('a'+24)), history[19].Content)

	assert.Len(t, BuildHistory(msgs, 0), 25)
	assert.Empty(t, BuildHistory(nil, 20))
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "just text", BuildPrompt("just text", nil))

	files := []AttachedFile{
		{Name: "a.txt", Content: "alpha"},
		{Name: "b.go", Content: "package b"},
	}
	want := "--- File: a.txt ---\nalpha\n\n--- File: b.go ---\npackage b\n\nreview these"
	assert.Equal(t, want, BuildPrompt("review these", files))
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestDefaultCatalog(t *testing.T) {
	c := Catalog(DefaultCatalog)
	require.Len(t, c, 5)

	info, ok := c.Find(DefaultModelID)
	require.True(t, ok)
	assert.Equal(t, "Claude Sonnet 4.5", info.Label)

	for _, m := range c {
		assert.NotEmpty(t, m.ID)
		assert.NotEmpty(t, m.Label)
		assert.NotEmpty(t, m.Description)
	}
}

func TestCatalog_Find(t *testing.T) {
	c := Catalog(DefaultCatalog)

	info, ok := c.Find("gpt 4o mini")
	assert.False(t, ok)

	info, ok = c.Find("gpt-4o mini")
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", info.ID)

	assert.Equal(t, "unknown-model", c.Label("unknown-model"))
	assert.Equal(t, "GPT-4o", c.Label("gpt-4o"))
}

func TestModelInfo_Provider(t *testing.T) {
	assert.Equal(t, "Anthropic", ModelInfo{ID: "claude-opus-4-6"}.Provider())
	assert.Equal(t, "OpenAI", ModelInfo{ID: "gpt-4o"}.Provider())
	assert.Equal(t, "meta-llama", ModelInfo{ID: "meta-llama/llama-3"}.Provider())
	assert.Equal(t, "Local", ModelInfo{ID: "qwen3"}.Provider())
}
