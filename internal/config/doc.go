// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nova.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NOVA_*, GEMINI_API_KEY)
//   - ~/.nova/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	key := cfg.Gemini.APIKey
//	persona := cfg.Chat.DefaultPersona
package config
