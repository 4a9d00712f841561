// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared dependencies for nova CLI command handlers.
package cli

import (
	"go.uber.org/zap"

	"github.com/lawsonmorris/nova-cli/internal/auth"
	"github.com/lawsonmorris/nova-cli/internal/config"
	"github.com/lawsonmorris/nova-cli/internal/gemini"
	"github.com/lawsonmorris/nova-cli/internal/storage"
)

// App bundles the wired subsystems the command handlers run against.
// Gemini may be nil when no API key is configured; commands that need the
// remote model report that instead of failing at startup.
type App struct {
	Config   *config.Config
	Auth     *auth.Store
	Sessions *storage.SessionStore
	Gemini   *gemini.Client
	Log      *zap.Logger
}

// NewApp creates the command-handler dependency bundle.
func NewApp(cfg *config.Config, authStore *auth.Store, sessions *storage.SessionStore, client *gemini.Client, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		Config:   cfg,
		Auth:     authStore,
		Sessions: sessions,
		Gemini:   client,
		Log:      log,
	}
}
