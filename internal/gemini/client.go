// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini provides the client for the remote generative-text service.
//
// The client wraps the Gemini SDK behind the session engine's own request
// and fragment types so the rest of the engine never touches SDK types, and
// tests can substitute a fake.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/lawsonmorris/nova-cli/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the remote model client.
type ClientConfig struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// MinRequestGap is the minimum interval enforced between remote calls
	// (default: 100ms).
	MinRequestGap time.Duration

	// ThinkingBudget is the token budget for extended reasoning, applied
	// only when the pro model is selected (default: 1024).
	ThinkingBudget int32
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:         apiKey,
		MinRequestGap:  100 * time.Millisecond,
		ThinkingBudget: 1024,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Gemini API. It is safe for concurrent use; a shared
// rate limiter spaces out remote calls.
type Client struct {
	genai   *genai.Client
	config  ClientConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a remote model client with the given configuration.
func NewClient(ctx context.Context, cfg ClientConfig, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrRemote)
	}
	if cfg.MinRequestGap <= 0 {
		cfg.MinRequestGap = 100 * time.Millisecond
	}
	if cfg.ThinkingBudget == 0 {
		cfg.ThinkingBudget = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}

	return &Client{
		genai:   client,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.MinRequestGap), 1),
		log:     log,
	}, nil
}

// =============================================================================
// TITLE GENERATION
// =============================================================================

// titlePrompt is the single-shot completion prompt used to label a session
// after its first exchange.
const titlePrompt = `Generate a short, engaging, and descriptive title (max 6 words) for a chat session that starts with this message: %q. Do not use quotes.`

// GenerateTitle requests a short descriptive label for a session whose first
// user message is userMessage. The response is whitespace-trimmed; quote
// stripping is left to the caller.
func (c *Client) GenerateTitle(ctx context.Context, userMessage string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemote, err)
	}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx,
		model.ModelFast.String(),
		genai.Text(fmt.Sprintf(titlePrompt, userMessage)),
		nil,
	)
	if err != nil {
		c.log.Warn("title generation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrRemote, err)
	}

	title := strings.TrimSpace(resp.Text())
	if title == "" {
		return "", fmt.Errorf("%w: empty title response", ErrRemote)
	}
	c.log.Debug("title generated",
		zap.String("title", title),
		zap.Duration("took", time.Since(start)))
	return title, nil
}

// Close releases resources held by the underlying SDK client.
func (c *Client) Close() error {
	// The SDK client holds no closable resources today; the method exists
	// so callers can treat the client like the stores they already close.
	return nil
}
