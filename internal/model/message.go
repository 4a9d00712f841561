// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// message.go - Messages, attachments and grounding metadata.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleModel:
		return "Nova"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is an opaque binary payload carried on a user message.
// Data is base64-encoded by the producer and treated as immutable content.
type Attachment struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// =============================================================================
// GROUNDING METADATA
// =============================================================================

// GroundingChunk is a single citation source attached to a model response.
type GroundingChunk struct {
	Web *GroundingWeb `json:"web,omitempty"`
}

// GroundingWeb is the web-source form of a grounding chunk.
type GroundingWeb struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// GroundingMetadata is the citation list attached to a model message when
// web search was used. Once a message carries non-empty metadata, a later
// empty delta never clears it; a later non-empty delta replaces it in full.
type GroundingMetadata struct {
	GroundingChunks  []GroundingChunk  `json:"groundingChunks,omitempty"`
	SearchEntryPoint *SearchEntryPoint `json:"searchEntryPoint,omitempty"`
}

// SearchEntryPoint carries the rendered search suggestion block, passed
// through untouched for the presentation layer.
type SearchEntryPoint struct {
	RenderedContent string `json:"renderedContent,omitempty"`
}

// IsEmpty reports whether the metadata carries no citation data at all.
func (g *GroundingMetadata) IsEmpty() bool {
	return g == nil || (len(g.GroundingChunks) == 0 && g.SearchEntryPoint == nil)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat session.
//
// A message with RoleModel and empty Text is a pending placeholder: it is
// inserted when a turn is submitted and filled in as stream fragments arrive.
type Message struct {
	// Identity
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds

	// Content
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// IsError marks a model message whose stream failed mid-flight. The
	// accumulated partial text is preserved with a diagnostic suffix.
	IsError bool `json:"isError,omitempty"`

	// GroundingMetadata carries citations when web search was enabled.
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        generateMessageID(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewUserMessage creates a new user message with optional attachments.
func NewUserMessage(text string, attachments []Attachment) Message {
	msg := NewMessage(RoleUser, text)
	msg.Attachments = attachments
	return msg
}

// NewPlaceholderMessage creates an empty model message to be filled in by
// an active stream.
func NewPlaceholderMessage() Message {
	return NewMessage(RoleModel, "")
}

// IsPlaceholder reports whether the message is a pending model placeholder.
func (m *Message) IsPlaceholder() bool {
	return m.Role == RoleModel && m.Text == ""
}

// Preview returns a truncated preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Text)
	if len(runes) <= maxLen {
		return m.Text
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateMessageID creates a unique message ID.
func generateMessageID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
