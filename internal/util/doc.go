// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across parley.
//
// # Key Functions
//
// String Utilities:
//   - Clip: rune-safe prefix with a caller-chosen marker
//   - TruncateRunes: rune-safe truncation with "..."
//   - FitWidth, PadWidth: column fitting by display width (CJK aware)
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.Clip(firstMessage, 50, "…")
//	cell := util.FitWidth(title, 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
