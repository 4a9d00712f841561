// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/lawsonmorris/nova-cli/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports sessions to Markdown format.
type MarkdownExporter struct {
	opts *Options
}

// NewMarkdownExporter creates a Markdown exporter with the given options.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{opts: opts}
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// Export converts a session to Markdown.
func (e *MarkdownExporter) Export(sess *model.ChatSession) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("nil session")
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", sess.Title))

	if e.opts.IncludeMetadata {
		e.writeMetadata(&sb, sess)
	}

	for i := range sess.Messages {
		e.writeMessage(&sb, &sess.Messages[i])
	}

	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from nova*\n")

	return []byte(sb.String()), nil
}

// writeMetadata writes the session metadata header.
func (e *MarkdownExporter) writeMetadata(sb *strings.Builder, sess *model.ChatSession) {
	sb.WriteString("## Session Info\n\n")
	sb.WriteString(fmt.Sprintf("- **Model**: %s\n", sess.Model))
	sb.WriteString(fmt.Sprintf("- **Persona**: %s\n", sess.Persona))
	sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(sess.Messages)))
	sb.WriteString(fmt.Sprintf("- **Updated**: %s\n", formatTimestamp(sess.UpdatedAt)))
	sb.WriteString("\n---\n\n")
}

// writeMessage writes a single message with role header and content.
func (e *MarkdownExporter) writeMessage(sb *strings.Builder, msg *model.Message) {
	header := msg.Role.DisplayName()
	if e.opts.IncludeTimestamps {
		header = fmt.Sprintf("%s (%s)", header, formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString(fmt.Sprintf("### %s\n\n", header))

	if msg.IsError {
		sb.WriteString("> ⚠️ This response ended with an error.\n\n")
	}

	if msg.Text != "" {
		sb.WriteString(msg.Text)
		if !strings.HasSuffix(msg.Text, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(msg.Attachments) > 0 {
		sb.WriteString(fmt.Sprintf("*%d attachment(s)*\n\n", len(msg.Attachments)))
	}

	if sources := groundingSources(msg.GroundingMetadata); len(sources) > 0 {
		sb.WriteString("**Sources:**\n\n")
		for _, src := range sources {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", src.title, src.uri))
		}
		sb.WriteString("\n")
	}
}

// =============================================================================
// GROUNDING HELPERS
// =============================================================================

type groundingSource struct {
	title string
	uri   string
}

// groundingSources extracts citation links from grounding metadata,
// skipping chunks without a web source.
func groundingSources(g *model.GroundingMetadata) []groundingSource {
	if g.IsEmpty() {
		return nil
	}
	sources := make([]groundingSource, 0, len(g.GroundingChunks))
	for _, chunk := range g.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		sources = append(sources, groundingSource{title: title, uri: chunk.Web.URI})
	}
	return sources
}
