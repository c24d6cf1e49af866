// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes session transcripts to files.
//
// # Supported Formats
//
//   - md: human-readable, reasoning folded into <details>
//   - json: one indented document
//   - jsonl: one message per line
//   - yaml: same shape as json
//
// # Usage
//
//	t := export.NewTranscript(store.Active(), store.Model(), time.Now())
//	exp, err := export.For("md")
//	path, err := export.ToFile(t, exp, "")
package export
