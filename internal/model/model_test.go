// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello")

	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID should start with 'msg_', got %q", msg.ID)
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Text != "Hello" {
		t.Errorf("Text = %q, want %q", msg.Text, "Hello")
	}
	if msg.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := NewMessage(RoleUser, "x")
		if seen[msg.ID] {
			t.Fatalf("Duplicate message ID generated: %q", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestMessage_IsPlaceholder(t *testing.T) {
	placeholder := NewPlaceholderMessage()
	if !placeholder.IsPlaceholder() {
		t.Error("Empty model message should be a placeholder")
	}

	placeholder.Text = "Hello"
	if placeholder.IsPlaceholder() {
		t.Error("Model message with text should not be a placeholder")
	}

	user := NewMessage(RoleUser, "")
	if user.IsPlaceholder() {
		t.Error("User message should never be a placeholder")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{"short text unchanged", "Hi", 10, "Hi"},
		{"long text truncated", "Hello, World! This is long.", 10, "Hello, " + "..."},
		{"unicode safe", "héllo wörld çafé test", 10, "héllo w..."},
		{"exact length unchanged", "1234567890", 10, "1234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewMessage(RoleUser, tt.text)
			got := msg.Preview(tt.maxLen)
			if got != tt.want {
				t.Errorf("Preview(%d) = %q, want %q", tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestRole_DisplayName(t *testing.T) {
	if got := RoleUser.DisplayName(); got != "You" {
		t.Errorf("RoleUser.DisplayName() = %q, want %q", got, "You")
	}
	if got := RoleModel.DisplayName(); got != "Nova" {
		t.Errorf("RoleModel.DisplayName() = %q, want %q", got, "Nova")
	}
}

// =============================================================================
// GROUNDING METADATA TESTS
// =============================================================================

func TestGroundingMetadata_IsEmpty(t *testing.T) {
	var nilMeta *GroundingMetadata
	if !nilMeta.IsEmpty() {
		t.Error("nil metadata should be empty")
	}

	empty := &GroundingMetadata{}
	if !empty.IsEmpty() {
		t.Error("zero-value metadata should be empty")
	}

	withChunk := &GroundingMetadata{
		GroundingChunks: []GroundingChunk{
			{Web: &GroundingWeb{URI: "https://example.com", Title: "Example"}},
		},
	}
	if withChunk.IsEmpty() {
		t.Error("metadata with chunks should not be empty")
	}

	withEntry := &GroundingMetadata{
		SearchEntryPoint: &SearchEntryPoint{RenderedContent: "<div/>"},
	}
	if withEntry.IsEmpty() {
		t.Error("metadata with search entry point should not be empty")
	}
}

// =============================================================================
// ACCOUNT TESTS
// =============================================================================

func TestAccount_SessionUser(t *testing.T) {
	acct := Account{
		ID:           "u1",
		Name:         "Law",
		Email:        "law@example.com",
		PasswordHash: "deadbeef",
		Salt:         "cafe",
		AvatarURL:    "https://example.com/a.png",
	}

	user := acct.SessionUser()
	if user.ID != acct.ID || user.Name != acct.Name || user.Email != acct.Email || user.AvatarURL != acct.AvatarURL {
		t.Errorf("SessionUser projection mismatch: %+v", user)
	}

	// The projection must not leak credential material through serialization.
	data, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "deadbeef") || strings.Contains(string(data), "cafe") {
		t.Errorf("SessionUser JSON leaks credentials: %s", data)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Law@Example.COM", "law@example.com"},
		{"  law@example.com  ", "law@example.com"},
		{"law@example.com", "law@example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// CHAT SESSION TESTS
// =============================================================================

func TestNewChatSession(t *testing.T) {
	sess := NewChatSession("u1", ModelFast, PersonaStandard)

	if sess.ID == "" {
		t.Error("Expected generated session ID")
	}
	if sess.OwnerID != "u1" {
		t.Errorf("OwnerID = %q, want %q", sess.OwnerID, "u1")
	}
	if sess.Title != "New Conversation" {
		t.Errorf("Title = %q, want %q", sess.Title, "New Conversation")
	}
	if sess.UpdatedAt == 0 {
		t.Error("UpdatedAt should be set")
	}
}

func TestChatSession_LastMessage(t *testing.T) {
	sess := NewChatSession("u1", ModelFast, PersonaStandard)
	if sess.LastMessage() != nil {
		t.Error("Empty session should have no last message")
	}

	sess.Messages = append(sess.Messages, NewMessage(RoleUser, "Hi"))
	sess.Messages = append(sess.Messages, NewMessage(RoleModel, "Hello"))

	last := sess.LastMessage()
	if last == nil || last.Text != "Hello" {
		t.Errorf("LastMessage = %+v, want model 'Hello'", last)
	}

	// The pointer must alias the slice element so in-place streaming
	// mutations are visible on the session.
	last.Text = "Hello!"
	if sess.Messages[1].Text != "Hello!" {
		t.Error("LastMessage should alias the underlying message")
	}
}

func TestChatSession_FirstUserMessage(t *testing.T) {
	sess := NewChatSession("u1", ModelFast, PersonaStandard)
	sess.Messages = append(sess.Messages, NewMessage(RoleModel, "welcome"))
	if sess.FirstUserMessage() != nil {
		t.Error("Session with only model messages has no first user message")
	}

	sess.Messages = append(sess.Messages, NewMessage(RoleUser, "first"))
	sess.Messages = append(sess.Messages, NewMessage(RoleUser, "second"))

	first := sess.FirstUserMessage()
	if first == nil || first.Text != "first" {
		t.Errorf("FirstUserMessage = %+v, want 'first'", first)
	}
}

func TestChatSession_UserTurns(t *testing.T) {
	sess := NewChatSession("u1", ModelFast, PersonaStandard)
	sess.Messages = append(sess.Messages, NewMessage(RoleModel, "welcome"))
	if sess.UserTurns() != 0 {
		t.Errorf("UserTurns = %d, want 0", sess.UserTurns())
	}
	sess.Messages = append(sess.Messages, NewMessage(RoleUser, "hi"))
	sess.Messages = append(sess.Messages, NewMessage(RoleModel, "hello"))
	if sess.UserTurns() != 1 {
		t.Errorf("UserTurns = %d, want 1", sess.UserTurns())
	}
}

// =============================================================================
// ENUM TESTS
// =============================================================================

func TestParseAiModel(t *testing.T) {
	tests := []struct {
		in   string
		want AiModel
	}{
		{"fast", ModelFast},
		{"pro", ModelPro},
		{string(ModelFast), ModelFast},
		{string(ModelPro), ModelPro},
		{"unknown", ModelFast},
		{"", ModelFast},
	}
	for _, tt := range tests {
		if got := ParseAiModel(tt.in); got != tt.want {
			t.Errorf("ParseAiModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePersona(t *testing.T) {
	tests := []struct {
		in   string
		want Persona
	}{
		{"standard", PersonaStandard},
		{"gen_z", PersonaGenZ},
		{"writer", PersonaWriter},
		{"coder", PersonaCoder},
		{"unknown", PersonaStandard},
		{"", PersonaStandard},
	}
	for _, tt := range tests {
		if got := ParsePersona(tt.in); got != tt.want {
			t.Errorf("ParsePersona(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
