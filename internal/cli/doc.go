// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and command handlers for nova.
//
// # Commands
//
//   - register: create a local account
//   - login: authenticate against the local account store
//   - logout: clear the active login
//   - chat: interactive chat REPL (default)
//   - sessions: list saved chat sessions
//   - status: show account and configuration status
//   - version, help
//
// The chat REPL supports slash commands for session management (/new,
// /sessions, /switch, /delete), turn control (/regen, /search, /attach)
// and per-session settings (/model, /persona).
package cli
