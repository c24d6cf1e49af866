// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PARLEY_*, OPENROUTER_API_KEY)
//   - ~/.parley/config.toml, or the file named by --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Watch reloads the file on change:
//
//	w, err := config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
