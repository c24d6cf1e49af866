// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_CreatesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestAtomicWriteFile_EmptyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, AtomicWriteFile(path, nil, 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestClip(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		max    int
		marker string
		want   string
	}{
		{"short", "hello", 10, "…", "hello"},
		{"exact", "hello", 5, "…", "hello"},
		{"long", "hello world", 5, "…", "hello…"},
		{"multibyte", "日本語のテキスト", 3, "…", "日本語…"},
		{"zero", "hello", 0, "…", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clip(tc.in, tc.max, tc.marker))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello", 5))
	assert.Equal(t, "he...", TruncateRunes("hello world", 5))
	assert.Equal(t, "hel", TruncateRunes("hello", 3))
	assert.Equal(t, "", TruncateRunes("hello", 0))
	assert.Equal(t, "日本...", TruncateRunes("日本語のテキスト", 5))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", SingleLine("  a\n\tb   c \n"))
}

func TestFitWidth(t *testing.T) {
	assert.Equal(t, "hello", FitWidth("hello", 10))
	assert.Equal(t, "hel...", FitWidth("hello world", 6))
	assert.Equal(t, 2, StringWidth("日"))
	assert.LessOrEqual(t, StringWidth(FitWidth("日本語のテキスト", 7)), 7)
}

func TestPadWidth(t *testing.T) {
	assert.Equal(t, "ab   ", PadWidth("ab", 5))
	assert.Equal(t, 6, StringWidth(PadWidth("日本", 6)))
	assert.Equal(t, 4, StringWidth(PadWidth("日本語", 4)))
}
