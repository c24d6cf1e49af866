// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// This package defines the core domain types shared by the session store,
// the stream controller and the transports.
//
// # Key Types
//
//   - Session: one conversation thread with its title and message ledger
//   - Message: a single user or assistant turn, with streamed content,
//     reasoning, reasoning duration and an optional error
//   - AttachedFile: a fully materialized text attachment
//   - Patch: an in-place update applied to the trailing assistant message
//   - ModelInfo: an entry in the selectable model catalog
//
// # Usage
//
//	sess := model.NewSession("")
//	msg := model.NewMessage(model.RoleUser, "Hello!", nil)
//	sess.Messages = append(sess.Messages, *msg)
//
// Messages are plain values. Ownership and mutation rules live in the
// session package; nothing here is safe for concurrent mutation.
package model
