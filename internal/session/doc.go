// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the canonical chat state: the session list, the active
// session id, and each session's message ledger.
//
// # Store
//
// Store is the single write path for chat data. Every operation is total and
// synchronous: unknown session ids are silently ignored so that a stream
// racing with a delete can never corrupt the store. At least one session
// always exists; deleting the last one synthesizes a fresh empty session.
//
// Only the trailing message of a ledger is mutable, and only while it is an
// assistant message. MutateLastAssistant drops patches that would land on a
// user message; MutateMessage also pins the write to one placeholder id and
// drops it once the writer's context is done.
//
// Readers receive deep copies. Views that need to follow updates register a
// listener with Subscribe; listeners run after the store lock is released.
//
// # Usage
//
//	store := session.NewStore(session.DefaultConfig())
//	ex, ok := store.AppendExchange(store.ActiveID(), "hello", nil, 20)
//	store.MutateLastAssistant(ex.SessionID, model.ContentPatch("Hi!"))
package session
