// nova - Gemini-powered chat for the command line.
//
// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lawsonmorris/nova-cli/internal/auth"
	"github.com/lawsonmorris/nova-cli/internal/cli"
	"github.com/lawsonmorris/nova-cli/internal/config"
	"github.com/lawsonmorris/nova-cli/internal/gemini"
	"github.com/lawsonmorris/nova-cli/internal/kvstore"
	"github.com/lawsonmorris/nova-cli/internal/logging"
	"github.com/lawsonmorris/nova-cli/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	// Commands that need no wiring.
	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()
		return
	case cli.CmdHelp:
		cli.PrintUsage()
		return
	}

	app, cleanup, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	var runErr error
	switch cmd {
	case cli.CmdChat:
		runErr = cli.HandleChat(app, args)
	case cli.CmdRegister:
		runErr = cli.HandleRegister(app, args)
	case cli.CmdLogin:
		runErr = cli.HandleLogin(app, args)
	case cli.CmdLogout:
		runErr = cli.HandleLogout(app, args)
	case cli.CmdSessions:
		runErr = cli.HandleSessions(app, args)
	case cli.CmdStatus:
		runErr = cli.HandleStatus(app, args)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		cleanup()
		os.Exit(1)
	}
}

// buildApp wires configuration, logging, storage and the Gemini client.
func buildApp() (*cli.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.New(dataDir, cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	kv, err := kvstore.Open(filepath.Join(dataDir, "db"), log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	authStore := auth.NewStore(kv, log)
	sessions := storage.NewSessionStore(kv, log)

	// The remote client is optional: account and session commands work
	// without an API key.
	var client *gemini.Client
	if cfg.Gemini.APIKey != "" {
		clientCfg := gemini.DefaultClientConfig(cfg.Gemini.APIKey)
		if cfg.Gemini.MinRequestGapMs > 0 {
			clientCfg.MinRequestGap = time.Duration(cfg.Gemini.MinRequestGapMs) * time.Millisecond
		}
		if cfg.Gemini.ThinkingBudget > 0 {
			clientCfg.ThinkingBudget = int32(cfg.Gemini.ThinkingBudget)
		}
		client, err = gemini.NewClient(context.Background(), clientCfg, log)
		if err != nil {
			log.Warn("failed to initialize Gemini client", zap.Error(err))
			client = nil
		}
	}

	cleanup := func() {
		if err := kv.Close(); err != nil {
			log.Warn("failed to close local store", zap.Error(err))
		}
		_ = log.Sync()
	}
	return cli.NewApp(cfg, authStore, sessions, client, log), cleanup, nil
}
