// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives conversation turns against the remote model and keeps
// session state, in-flight streaming updates and persisted storage
// consistent under interruption, regeneration and concurrent actions.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lawsonmorris/nova-cli/internal/gemini"
	"github.com/lawsonmorris/nova-cli/internal/model"
	"github.com/lawsonmorris/nova-cli/internal/storage"
	"github.com/lawsonmorris/nova-cli/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrStreamBusy indicates a stream is already active for the session.
	ErrStreamBusy = errors.New("a response is already streaming for this session")
	// ErrInvalidState indicates regenerate was called without a completed
	// model response at the tail of the session.
	ErrInvalidState = errors.New("session has no model response to regenerate")
)

// Diagnostic suffixes appended to partial output when a stream fails.
const (
	streamErrorSuffix     = "\n\n*Error: Something went wrong. Please try again.*"
	regenerateErrorSuffix = "\n\n*Error: Regeneration failed.*"
)

// interimTitleRunes is how much of the first user message becomes the
// session title until the generated one arrives.
const interimTitleRunes = 30

// =============================================================================
// STATE MACHINE
// =============================================================================

// State is the lifecycle of one conversation turn.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFinalizing
	StateCompleted
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether the state ends a turn.
func (s State) terminal() bool {
	return s == StateIdle || s == StateCompleted || s == StateFailed
}

// =============================================================================
// INTERFACES
// =============================================================================

// Streamer opens a fragment stream for one conversation turn. Implemented
// by gemini.Client; tests substitute fakes.
type Streamer interface {
	StreamMessage(ctx context.Context, req gemini.StreamRequest) (<-chan gemini.Fragment, <-chan error)
}

// UpdateFunc observes the placeholder message each time accumulated stream
// output changes. The message is a copy; mutating it has no effect.
type UpdateFunc func(sessionID string, msg model.Message)

// Options carries per-turn settings.
type Options struct {
	// WebSearch enables search augmentation for this turn.
	WebSearch bool
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs the submit/regenerate pipeline for chat sessions.
//
// A turn is synchronous from the caller's point of view: Submit returns once
// the turn reaches Completed or Failed. Partial output is observable only
// through the update callback. At most one stream may be active per session;
// turns for different sessions do not block each other.
type Orchestrator struct {
	streamer Streamer
	sessions *storage.SessionStore
	titles   *TitleGenerator
	onUpdate UpdateFunc
	log      *zap.Logger

	mu     sync.Mutex
	active map[string]State // sessionID -> non-terminal state
}

// NewOrchestrator creates an orchestrator. titles may be nil to disable
// asynchronous title enrichment; onUpdate may be nil when nothing observes
// partial output.
func NewOrchestrator(streamer Streamer, sessions *storage.SessionStore, titles *TitleGenerator, onUpdate UpdateFunc, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		streamer: streamer,
		sessions: sessions,
		titles:   titles,
		onUpdate: onUpdate,
		log:      log,
		active:   make(map[string]State),
	}
}

// State returns the current turn state for a session (StateIdle when no
// turn is active).
func (o *Orchestrator) State(sessionID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.active[sessionID]; ok {
		return s
	}
	return StateIdle
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit runs one conversation turn: it persists the user message, streams
// the model response into a placeholder message and finalizes the session.
//
// The user turn is persisted before the stream opens, so a streaming
// failure can lose at most the in-progress reply, never the user's own
// message. Returns ErrStreamBusy when a turn is already active for the
// session. A remote failure is recovered into a persisted error-marked
// message and is not returned as an error.
func (o *Orchestrator) Submit(ctx context.Context, sess *model.ChatSession, text string, attachments []model.Attachment, opts Options) error {
	if err := o.acquire(sess.ID, StateSending); err != nil {
		return err
	}
	defer o.release(sess.ID)

	firstExchange := sess.UserTurns() == 0

	sess.Messages = append(sess.Messages, model.NewUserMessage(text, attachments))
	if firstExchange {
		sess.Title = interimTitle(text)
	}
	sess.Touch()
	if err := o.sessions.Save(sess); err != nil {
		o.setState(sess.ID, StateFailed)
		return err
	}

	return o.run(ctx, sess, text, attachments, opts, firstExchange, streamErrorSuffix)
}

// =============================================================================
// REGENERATE
// =============================================================================

// Regenerate discards the session's last model response and replays the
// user turn that produced it through the same pipeline.
//
// Valid only when the last message is model-authored and preceded by a user
// message; fails with ErrInvalidState otherwise. The removed response is
// never re-sent as history.
func (o *Orchestrator) Regenerate(ctx context.Context, sess *model.ChatSession, opts Options) error {
	if err := o.acquire(sess.ID, StateSending); err != nil {
		return err
	}
	defer o.release(sess.ID)

	n := len(sess.Messages)
	if n == 0 || sess.Messages[n-1].Role != model.RoleModel {
		return ErrInvalidState
	}
	if n < 2 || sess.Messages[n-2].Role != model.RoleUser {
		return ErrInvalidState
	}

	prev := sess.Messages[n-2]
	sess.Messages = sess.Messages[:n-1]

	return o.run(ctx, sess, prev.Text, prev.Attachments, opts, false, regenerateErrorSuffix)
}

// =============================================================================
// PIPELINE
// =============================================================================

// run streams the model response for the user turn already at the tail of
// sess.Messages, appending and filling the placeholder message.
func (o *Orchestrator) run(ctx context.Context, sess *model.ChatSession, text string, attachments []model.Attachment, opts Options, firstExchange bool, errorSuffix string) error {
	// The finalization write must target the session the stream was opened
	// for, no matter what the caller is displaying by then.
	sessionID, ownerID := sess.ID, sess.OwnerID

	o.setState(sessionID, StateStreaming)

	history := append([]model.Message(nil), sess.Messages[:len(sess.Messages)-1]...)
	sess.Messages = append(sess.Messages, model.NewPlaceholderMessage())
	placeholder := &sess.Messages[len(sess.Messages)-1]
	o.publish(sessionID, *placeholder)

	fragments, errs := o.streamer.StreamMessage(ctx, gemini.StreamRequest{
		History:     history,
		Text:        text,
		Attachments: attachments,
		Model:       sess.Model,
		Persona:     sess.Persona,
		WebSearch:   opts.WebSearch,
	})

	var acc strings.Builder
	var grounding *model.GroundingMetadata

	for frag := range fragments {
		acc.WriteString(frag.TextDelta)
		// Last-write-wins on citations: a later non-empty delta replaces
		// the accumulated value in full, an empty one never clears it.
		if !frag.Grounding.IsEmpty() {
			grounding = frag.Grounding
		}
		placeholder.Text = acc.String()
		placeholder.GroundingMetadata = grounding
		o.publish(sessionID, *placeholder)
	}

	streamErr := <-errs

	if streamErr != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Abandoned mid-flight: keep whatever arrived, unmarked.
			o.setState(sessionID, StateFinalizing)
			sess.Touch()
			if err := o.sessions.Save(sess); err != nil {
				o.log.Error("failed to persist cancelled turn",
					zap.String("session", sessionID), zap.Error(err))
			}
			o.setState(sessionID, StateFailed)
			return ctx.Err()
		}

		placeholder.Text = acc.String() + errorSuffix
		placeholder.IsError = true
		sess.Touch()
		if err := o.sessions.Save(sess); err != nil {
			o.log.Error("failed to persist degraded turn",
				zap.String("session", sessionID), zap.Error(err))
		}
		o.setState(sessionID, StateFailed)
		o.publish(sessionID, *placeholder)
		o.log.Warn("stream failed, partial output preserved",
			zap.String("session", sessionID),
			zap.Int("accumulated", acc.Len()),
			zap.Error(streamErr))
		return nil
	}

	o.setState(sessionID, StateFinalizing)
	sess.Touch()
	if err := o.sessions.Save(sess); err != nil {
		o.setState(sessionID, StateFailed)
		return err
	}
	o.setState(sessionID, StateCompleted)

	if firstExchange && o.titles != nil {
		// Fire-and-forget: enrichment must never block or fail the turn.
		go o.titles.Enrich(ownerID, sessionID, text)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// acquire registers a turn for the session, rejecting concurrent turns.
func (o *Orchestrator) acquire(sessionID string, initial State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.active[sessionID]; ok && !s.terminal() {
		return ErrStreamBusy
	}
	o.active[sessionID] = initial
	return nil
}

// setState records the turn state for a session.
func (o *Orchestrator) setState(sessionID string, s State) {
	o.mu.Lock()
	o.active[sessionID] = s
	o.mu.Unlock()
}

// release clears the turn registration once it reached a terminal state.
func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.active, sessionID)
	o.mu.Unlock()
}

// publish hands a snapshot of the streaming message to the observer.
func (o *Orchestrator) publish(sessionID string, msg model.Message) {
	if o.onUpdate != nil {
		o.onUpdate(sessionID, msg)
	}
}

// interimTitle derives the provisional session title from the first user
// message, matching what the title generator falls back to.
func interimTitle(text string) string {
	title := strings.ReplaceAll(text, "\n", " ")
	truncated := util.TruncateRunesNoEllipsis(title, interimTitleRunes)
	if truncated != title {
		truncated += "..."
	}
	return truncated
}
