// Package feed implements the dedup/history/ordering algorithm that turns
// the raw messages extracted from every span of a trace into a single
// linear conversation timeline free of context-duplicated messages
// (spec.md §4.4, "the most intricate algorithm in the system").
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"manifold/internal/otelspan"
)

// identity computes the block identity hash H(role, normalized_content,
// tool_use_id?). Two occurrences with the same identity are "the same
// message" for dedup purposes.
func identity(m otelspan.RawMessage) string {
	var sb strings.Builder
	sb.WriteString(string(m.Role))
	sb.WriteByte('|')
	sb.WriteString(normalizedContent(m.Content))
	sb.WriteByte('|')
	sb.WriteString(primaryToolID(m.Content))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// normalizedContent serializes a message's content blocks into a
// canonical string for identity hashing: kind plus the field that
// carries its meaning, whitespace-trimmed so formatting differences
// across re-extractions don't split one logical message into two
// identities.
func normalizedContent(blocks []otelspan.ContentBlock) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(string(b.Kind))
		sb.WriteByte(':')
		switch b.Kind {
		case otelspan.BlockText, otelspan.BlockThinking, otelspan.BlockRefusal:
			sb.WriteString(strings.TrimSpace(b.Text))
		case otelspan.BlockImage, otelspan.BlockAudio, otelspan.BlockVideo, otelspan.BlockDocument, otelspan.BlockDataRef:
			sb.WriteString(b.MediaType)
			sb.WriteByte(':')
			sb.WriteString(b.URI)
		case otelspan.BlockToolUse:
			sb.WriteString(b.ToolName)
			sb.WriteByte(':')
			sb.WriteString(strings.TrimSpace(b.ToolArgJSON))
		case otelspan.BlockToolResult:
			sb.WriteString(strings.TrimSpace(b.ResultJSON))
		}
	}
	return sb.String()
}

// primaryToolID returns the first tool_use_id this message's content
// carries, from either a ToolUse or a ToolResult block, or "" if none.
func primaryToolID(blocks []otelspan.ContentBlock) string {
	for _, b := range blocks {
		switch b.Kind {
		case otelspan.BlockToolUse:
			if b.ToolUseID != "" {
				return b.ToolUseID
			}
		case otelspan.BlockToolResult:
			if b.ToolResultForID != "" {
				return b.ToolResultForID
			}
		}
	}
	return ""
}

// hasThinking reports whether any block in the message is a Thinking
// block, used by the quality score's "+5 enrichment" term.
func hasThinking(blocks []otelspan.ContentBlock) bool {
	for _, b := range blocks {
		if b.Kind == otelspan.BlockThinking {
			return true
		}
	}
	return false
}

// toolUseIDs returns every ToolUse.ToolUseID carried by the message.
func toolUseIDs(blocks []otelspan.ContentBlock) []string {
	var ids []string
	for _, b := range blocks {
		if b.Kind == otelspan.BlockToolUse && b.ToolUseID != "" {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}

// toolResultFor returns the ToolResultForID of the message's ToolResult
// block, if it has one.
func toolResultFor(blocks []otelspan.ContentBlock) (string, bool) {
	for _, b := range blocks {
		if b.Kind == otelspan.BlockToolResult {
			return b.ToolResultForID, true
		}
	}
	return "", false
}
