// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives one request/response exchange from user input to a
// finished assistant message.
//
// A send moves through Idle, Preparing, Streaming and ends in one of
// Finalized, Cancelled or Errored:
//
//   - Preparing appends the user message and an empty assistant placeholder
//     to the session as one unit, snapshots the prior history (last 20
//     entries) and builds the outbound prompt with attached files inlined.
//   - Streaming pulls events from the provider and applies each one to the
//     placeholder through the session store. Reasoning and text go to
//     separate fields; the reasoning interval runs from the first reasoning
//     event to the first text event.
//   - Finalized stores the reasoning duration. Cancelled stores nothing.
//     Errored writes the failure text to the placeholder and keeps whatever
//     content had already arrived.
//
// Each session has at most one stream in flight, tracked by a Registry keyed
// by session id. Sessions stream independently of each other.
package stream
