// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the chat REPL.
//
// The package knows nothing about chat itself: the application registers
// commands whose handlers close over its own state.
//
// # Key Types
//
//   - Registry: Commands by name and alias
//   - Parser: Quote-aware parsing, argument validation and dispatch
//   - Completer: Tab completion for command names and arguments
//
// # Usage
//
//	reg := commands.NewRegistry()
//	reg.Register(&commands.Command{Name: "/quit", Handler: quit})
//	err := commands.NewParser(reg).Run("/quit")
//
// Get completions:
//
//	lines := commands.NewCompleter(reg).Lines("/qu")
//	// Returns ["/quit"]
package commands
