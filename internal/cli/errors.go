// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for parley commands.
//
// Commands always return errors; Execute displays them once and maps
// them to an exit code.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/ollama"
	"github.com/jeranaias/parley/internal/provider"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the cloud provider rejected or lacks credentials
	ExitAuthError = 4
	// ExitNetworkError indicates the provider could not be reached
	ExitNetworkError = 5
	// ExitCancelled indicates the user interrupted a reply (128 + SIGINT)
	ExitCancelled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "ask", "export")
	Action  string // Action being performed (e.g., "read", "write")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError represents invalid input on the command line.
type UsageError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ReplyError reports a reply that ended in the errored state. The
// message text has already been shown inline by the time it surfaces.
type ReplyError struct {
	Err error
}

func (e *ReplyError) Error() string {
	if e.Err == nil {
		return "reply failed"
	}
	return "reply failed: " + e.Err.Error()
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

// errCancelled is returned when a one-shot reply was interrupted.
var errCancelled = errors.New("reply cancelled")

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewUsageError creates a usage error with an optional example.
func NewUsageError(field, value, reason, example string) error {
	return &UsageError{Field: field, Value: value, Reason: reason, Example: example}
}

// =============================================================================
// DISPLAY AND EXIT CODES
// =============================================================================

// DisplayError writes err in the standard format. Cancellations and
// already-displayed reply failures print nothing.
func DisplayError(w io.Writer, err error) {
	if err == nil || errors.Is(err, errCancelled) {
		return
	}
	var reply *ReplyError
	if errors.As(err, &reply) {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, errCancelled) || provider.IsCancellation(err) {
		return ExitCancelled
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var verrs config.ValidateErrors
	if errors.As(err, &verrs) {
		return ExitConfigError
	}

	if errors.Is(err, cloud.ErrNotConfigured) || errors.Is(err, cloud.ErrAuthFailed) {
		return ExitAuthError
	}

	if ollama.IsNotRunning(err) || ollama.IsTimeout(err) {
		return ExitNetworkError
	}

	return ExitGeneralError
}
