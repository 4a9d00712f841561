// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// types.go - Request and fragment types of the streaming contract.
package gemini

import (
	"errors"

	"github.com/lawsonmorris/nova-cli/internal/model"
)

// ErrRemote indicates a transport or model failure from the remote service.
var ErrRemote = errors.New("remote model failure")

// =============================================================================
// FRAGMENT
// =============================================================================

// Fragment is one incremental unit of a streamed response: a text delta and,
// when web search produced citations, a grounding delta.
//
// The end of a response is signalled by closure of the fragment channel, not
// by a sentinel fragment.
type Fragment struct {
	TextDelta string
	Grounding *model.GroundingMetadata
}

// =============================================================================
// STREAM REQUEST
// =============================================================================

// StreamRequest describes one conversation turn sent to the remote model.
type StreamRequest struct {
	// History is the prior conversation, excluding the new user turn and
	// any pending placeholder.
	History []model.Message

	// Text and Attachments form the new user turn.
	Text        string
	Attachments []model.Attachment

	// Model and Persona select the generation configuration.
	Model   model.AiModel
	Persona model.Persona

	// WebSearch enables the search-augmentation tool, which may attach
	// grounding metadata to fragments.
	WebSearch bool
}
