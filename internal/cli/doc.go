// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the parley command tree.
//
// Running parley with no subcommand starts the interactive chat. The
// other commands are one-shot:
//
//	parley ask "question"      stream one reply, or export it with --format
//	parley export prompts.txt  run prompts as one chat and export it
//	parley models [--remote]   list the catalog or the provider's models
//	parley config show|path|init
//	parley doctor              check config and provider connectivity
//	parley version
//
// # Wiring
//
// Every command that talks to a model builds an App: the loaded config,
// a charmbracelet logger, a session.Store and a stream.Controller over the
// provider named in the config. The chat REPL subscribes a live view to
// the store so reasoning and reply text print as they arrive; slash
// commands are dispatched through the commands package.
//
// # Exit Codes
//
// Errors are printed once by Execute and mapped to exit codes by
// GetExitCode: 2 for usage errors, 3 for invalid config, 4 for missing or
// rejected credentials, 5 for an unreachable provider and 130 when a reply
// was cancelled.
package cli
