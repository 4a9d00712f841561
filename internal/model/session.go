// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// session.go - Chat sessions and the model/persona enums.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MODEL SELECTION
// =============================================================================

// AiModel identifies the remote generative model backing a session.
type AiModel string

const (
	// ModelFast is the low-latency default model.
	ModelFast AiModel = "gemini-2.5-flash"
	// ModelPro is the slower, higher-quality model with extended reasoning.
	ModelPro AiModel = "gemini-3-pro-preview"
)

// String returns the wire name of the model.
func (m AiModel) String() string {
	return string(m)
}

// Valid reports whether the value is a known model.
func (m AiModel) Valid() bool {
	return m == ModelFast || m == ModelPro
}

// ParseAiModel maps a user-facing name ("fast", "pro" or a full wire name)
// to an AiModel. Unknown names fall back to ModelFast.
func ParseAiModel(s string) AiModel {
	switch s {
	case "fast", string(ModelFast):
		return ModelFast
	case "pro", string(ModelPro):
		return ModelPro
	default:
		return ModelFast
	}
}

// =============================================================================
// PERSONA
// =============================================================================

// Persona names a system-prompt configuration that alters the model's
// response style. The prompt text itself lives in the gemini package as a
// lookup table; adding a persona is a table entry, not a new type.
type Persona string

const (
	PersonaStandard Persona = "standard"
	PersonaGenZ     Persona = "gen_z"
	PersonaWriter   Persona = "writer"
	PersonaCoder    Persona = "coder"
)

// String returns the string representation of the persona.
func (p Persona) String() string {
	return string(p)
}

// Valid reports whether the value is a known persona.
func (p Persona) Valid() bool {
	switch p {
	case PersonaStandard, PersonaGenZ, PersonaWriter, PersonaCoder:
		return true
	default:
		return false
	}
}

// ParsePersona maps a user-facing name to a Persona, falling back to
// PersonaStandard for unknown names.
func ParsePersona(s string) Persona {
	p := Persona(s)
	if p.Valid() {
		return p
	}
	return PersonaStandard
}

// =============================================================================
// CHAT SESSION TYPE
// =============================================================================

// ChatSession holds one complete conversation for one account.
//
// Sessions are persisted as whole records: every save replaces the full
// session, never a patch of individual fields. UpdatedAt is a wall-clock
// Unix-millisecond timestamp used only for sort order.
type ChatSession struct {
	ID       string    `json:"id"`
	OwnerID  string    `json:"userId"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`

	// Model configuration, updated to the latest used settings on each turn.
	Model   AiModel `json:"model"`
	Persona Persona `json:"persona"`

	UpdatedAt int64 `json:"updatedAt"`
}

// NewChatSession creates a new session owned by the given account.
func NewChatSession(ownerID string, m AiModel, p Persona) *ChatSession {
	return &ChatSession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     "New Conversation",
		Messages:  make([]Message, 0, 4),
		Model:     m,
		Persona:   p,
		UpdatedAt: time.Now().UnixMilli(),
	}
}

// Touch bumps UpdatedAt to now.
func (s *ChatSession) Touch() {
	s.UpdatedAt = time.Now().UnixMilli()
}

// LastMessage returns a pointer to the most recent message, or nil.
func (s *ChatSession) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// FirstUserMessage returns the earliest user message, or nil.
func (s *ChatSession) FirstUserMessage() *Message {
	for i := range s.Messages {
		if s.Messages[i].Role == RoleUser {
			return &s.Messages[i]
		}
	}
	return nil
}

// UserTurns counts the user-authored messages in the session.
func (s *ChatSession) UserTurns() int {
	n := 0
	for i := range s.Messages {
		if s.Messages[i].Role == RoleUser {
			n++
		}
	}
	return n
}
