// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lawsonmorris/nova-cli/internal/storage"
)

// Completer produces a single non-streamed completion. Implemented by
// gemini.Client; tests substitute fakes.
type Completer interface {
	GenerateTitle(ctx context.Context, userMessage string) (string, error)
}

// DefaultTitleTimeout bounds one title-generation attempt.
const DefaultTitleTimeout = 30 * time.Second

// =============================================================================
// TITLE GENERATOR
// =============================================================================

// TitleGenerator renames a session after its first exchange with a short
// model-generated label.
//
// Enrichment is strictly best-effort: any failure is logged and leaves the
// interim title untouched. It never surfaces an error to the user and never
// blocks a conversation turn.
type TitleGenerator struct {
	completer Completer
	sessions  *storage.SessionStore
	timeout   time.Duration
	log       *zap.Logger
}

// NewTitleGenerator creates a title generator.
func NewTitleGenerator(completer Completer, sessions *storage.SessionStore, log *zap.Logger) *TitleGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &TitleGenerator{
		completer: completer,
		sessions:  sessions,
		timeout:   DefaultTitleTimeout,
		log:       log,
	}
}

// Enrich requests a title for the session whose first user message was
// firstUserText and persists it. Runs on its own deadline, detached from
// the turn that scheduled it, so navigating away cannot abort enrichment.
func (g *TitleGenerator) Enrich(ownerID, sessionID, firstUserText string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	title, err := g.completer.GenerateTitle(ctx, firstUserText)
	if err != nil {
		g.log.Warn("title enrichment failed, keeping interim title",
			zap.String("session", sessionID), zap.Error(err))
		return
	}

	title = cleanTitle(title)
	if title == "" {
		return
	}

	// Re-read by ID: the session may have moved on while the model was
	// thinking, and the title write must not clobber newer messages.
	sess := g.sessions.Get(ownerID, sessionID)
	if sess == nil {
		g.log.Debug("session deleted before title arrived",
			zap.String("session", sessionID))
		return
	}

	sess.Title = title
	if err := g.sessions.Save(sess); err != nil {
		g.log.Warn("failed to persist generated title",
			zap.String("session", sessionID), zap.Error(err))
	}
}

// cleanTitle trims whitespace and strips quote characters the model tends
// to wrap titles in despite being told not to.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'`+"“”‘’")
	return strings.TrimSpace(title)
}
