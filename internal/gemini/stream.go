// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// stream.go - Fragment streaming for conversation turns.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lawsonmorris/nova-cli/internal/model"
)

// =============================================================================
// STREAMING
// =============================================================================

// StreamMessage opens a fragment stream for one conversation turn.
//
// The returned fragment channel closes when the response is exhausted; at
// most one error is delivered on the error channel. Cancelling ctx tears the
// stream down and releases the underlying response; the caller keeps
// whatever fragments were already received.
func (c *Client) StreamMessage(ctx context.Context, req StreamRequest) (<-chan Fragment, <-chan error) {
	fragments := make(chan Fragment, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errs)

		if err := c.limiter.Wait(ctx); err != nil {
			errs <- fmt.Errorf("%w: %v", ErrRemote, err)
			return
		}

		contents := historyContents(req.History)
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: turnParts(req.Text, req.Attachments),
		})

		cfg := c.generateConfig(req)

		c.log.Debug("stream opened",
			zap.String("model", req.Model.String()),
			zap.String("persona", req.Persona.String()),
			zap.Int("history", len(req.History)),
			zap.Bool("web_search", req.WebSearch))

		for resp, err := range c.genai.Models.GenerateContentStream(ctx, req.Model.String(), contents, cfg) {
			if err != nil {
				errs <- fmt.Errorf("%w: %v", ErrRemote, err)
				return
			}

			frag := Fragment{
				TextDelta: resp.Text(),
				Grounding: groundingFromResponse(resp),
			}
			if frag.TextDelta == "" && frag.Grounding.IsEmpty() {
				continue
			}

			select {
			case fragments <- frag:
			case <-ctx.Done():
				errs <- fmt.Errorf("%w: %v", ErrRemote, ctx.Err())
				return
			}
		}
	}()

	return fragments, errs
}

// generateConfig builds the SDK generation config for a request: persona
// system instruction, optional search tool, and extended reasoning for the
// pro model.
func (c *Client) generateConfig(req StreamRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemInstruction(req.Persona)}},
		},
	}
	if req.WebSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.Model == model.ModelPro {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(c.config.ThinkingBudget),
		}
	}
	return cfg
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// historyContents serializes prior messages into SDK role/part form.
// Attachments become inline-data parts ahead of the text part; a message
// with neither text nor decodable attachments is padded with a single-space
// part because the API rejects empty content.
func historyContents(history []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for i := range history {
		msg := &history[i]
		parts := turnParts(msg.Text, msg.Attachments)
		contents = append(contents, &genai.Content{
			Role:  string(msg.Role),
			Parts: parts,
		})
	}
	return contents
}

// turnParts builds the part list for one message: inline attachments first,
// then the text, with the single-space fallback for empty messages.
func turnParts(text string, attachments []model.Attachment) []*genai.Part {
	parts := make([]*genai.Part, 0, len(attachments)+1)
	for _, att := range attachments {
		data, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			// Attachment payloads are produced upstream; a malformed one is
			// dropped rather than failing the whole turn.
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: att.MimeType, Data: data},
		})
	}
	if text != "" {
		parts = append(parts, &genai.Part{Text: text})
	}
	if len(parts) == 0 {
		parts = append(parts, &genai.Part{Text: " "})
	}
	return parts
}

// groundingFromResponse converts the first candidate's grounding metadata,
// or nil when the chunk carries none.
func groundingFromResponse(resp *genai.GenerateContentResponse) *model.GroundingMetadata {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata

	meta := &model.GroundingMetadata{}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		meta.GroundingChunks = append(meta.GroundingChunks, model.GroundingChunk{
			Web: &model.GroundingWeb{URI: chunk.Web.URI, Title: chunk.Web.Title},
		})
	}
	if gm.SearchEntryPoint != nil && gm.SearchEntryPoint.RenderedContent != "" {
		meta.SearchEntryPoint = &model.SearchEntryPoint{
			RenderedContent: gm.SearchEntryPoint.RenderedContent,
		}
	}
	if meta.IsEmpty() {
		return nil
	}
	return meta
}
