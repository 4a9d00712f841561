// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat session persistence for the Nova session
// engine.
//
// Sessions are stored per owner as a single JSON array under
// "sessions_<ownerId>" in the key-value store. Every save rewrites the
// owner's whole list; the store performs no internal caching, so a list
// after any save or delete always reflects the mutation.
package storage

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/lawsonmorris/nova-cli/internal/kvstore"
	"github.com/lawsonmorris/nova-cli/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SessionsKeyPrefix is the key-value store prefix for per-owner session lists.
const SessionsKeyPrefix = "sessions_"

// WelcomeMessageID is the fixed ID of the seeded welcome message.
const WelcomeMessageID = "welcome"

// WelcomeText is the model-authored message every new session starts with.
const WelcomeText = "# Hello, I'm Nova.\n\n" +
	"I can help you with analysis, creative writing, coding, and researching the web.\n\n" +
	"How can I assist you today?"

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore handles chat session persistence for all accounts.
type SessionStore struct {
	kv  *kvstore.Store
	log *zap.Logger
}

// NewSessionStore creates a session store over the given key-value store.
func NewSessionStore(kv *kvstore.Store, log *zap.Logger) *SessionStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionStore{kv: kv, log: log}
}

// Create builds a new session seeded with the welcome message, persists it
// and returns it.
func (s *SessionStore) Create(ownerID string, m model.AiModel, p model.Persona) (*model.ChatSession, error) {
	sess := model.NewChatSession(ownerID, m, p)

	welcome := model.NewMessage(model.RoleModel, WelcomeText)
	welcome.ID = WelcomeMessageID
	sess.Messages = append(sess.Messages, welcome)

	if err := s.Save(sess); err != nil {
		return nil, err
	}
	s.log.Info("session created",
		zap.String("session", sess.ID),
		zap.String("owner", ownerID),
		zap.String("model", sess.Model.String()))
	return sess, nil
}

// List returns all sessions for the owner, most recently updated first.
// Missing or unreadable storage degrades to an empty list, never an error.
func (s *SessionStore) List(ownerID string) []*model.ChatSession {
	var sessions []*model.ChatSession
	if err := s.kv.Get(s.key(ownerID), &sessions); err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.log.Warn("session list unreadable, treating as empty",
				zap.String("owner", ownerID), zap.Error(err))
		}
		return []*model.ChatSession{}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt > sessions[j].UpdatedAt
	})
	return sessions
}

// Save upserts the session by ID: an existing record is replaced in place,
// a new one is prepended. The caller supplies the complete desired state:
// this is a full-record overwrite, not a field patch.
func (s *SessionStore) Save(sess *model.ChatSession) error {
	sessions := s.List(sess.OwnerID)

	replaced := false
	for i := range sessions {
		if sessions[i].ID == sess.ID {
			sessions[i] = sess
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append([]*model.ChatSession{sess}, sessions...)
	}

	return s.kv.Set(s.key(sess.OwnerID), sessions)
}

// Delete removes the session and returns the owner's remaining sessions so
// callers can re-select a successor.
func (s *SessionStore) Delete(ownerID, sessionID string) []*model.ChatSession {
	sessions := s.List(ownerID)

	filtered := sessions[:0]
	for _, sess := range sessions {
		if sess.ID != sessionID {
			filtered = append(filtered, sess)
		}
	}

	if err := s.kv.Set(s.key(ownerID), filtered); err != nil {
		s.log.Error("failed to delete session",
			zap.String("session", sessionID), zap.Error(err))
	}
	return filtered
}

// Get returns the owner's session with the given ID, or nil.
func (s *SessionStore) Get(ownerID, sessionID string) *model.ChatSession {
	for _, sess := range s.List(ownerID) {
		if sess.ID == sessionID {
			return sess
		}
	}
	return nil
}

// key returns the storage key for an owner's session list.
func (s *SessionStore) key(ownerID string) string {
	return SessionsKeyPrefix + ownerID
}
