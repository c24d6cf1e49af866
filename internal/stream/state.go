// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "errors"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned when a session already has a stream in flight.
	ErrBusy = errors.New("stream: session is already streaming")

	// ErrNoProvider is returned when the controller has no provider.
	ErrNoProvider = errors.New("stream: no provider configured")
)

// GenericErrorText is written to a failed message when the failure has no
// message of its own.
const GenericErrorText = "Failed to get response. Please try again."

// =============================================================================
// STATE
// =============================================================================

// State is a step of the send state machine.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateStreaming
	StateFinalized
	StateCancelled
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a send.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateCancelled || s == StateErrored
}

// Result describes how a send ended.
type Result struct {
	State     State
	SessionID string

	// UserID and MessageID identify the appended pair. Empty when the send
	// was ignored.
	UserID    string
	MessageID string

	// Events is the number of provider events applied.
	Events int

	// Duration is the recorded reasoning time in seconds, if any.
	Duration *float64

	// Err is the transport failure for StateErrored.
	Err error
}

// Ignored reports whether the send was dropped before touching the store.
func (r Result) Ignored() bool {
	return r.State == StateIdle
}
