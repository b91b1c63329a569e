package sideml

import (
	"encoding/json"
	"strings"

	"manifold/internal/otelspan"
)

// WireMessage is the literal, provider-shaped payload extraction hands to
// Normalize: a role string as the source spelled it, a provider tag used
// to pick a decoder, and a content value that is whatever JSON shape that
// provider emits (a string, an array of parts/blocks, or a single object).
type WireMessage struct {
	Role         string
	Provider     string
	Content      any
	FinishReason string
	Model        string
	ToolCalls    any // OpenAI-style top-level tool_calls array, when present alongside Content
}

// Normalize converts a WireMessage into the unified ChatMessage shape.
// It is a pure function: the same WireMessage always normalizes to the
// same ChatMessage, with no I/O and no dependency on extraction order.
func Normalize(msg WireMessage) otelspan.ChatMessage {
	provider := NormalizeProvider(msg.Provider)

	var blocks []otelspan.ContentBlock
	switch provider {
	case "anthropic":
		blocks = decodeAnthropicContent(msg.Content)
	case "bedrock":
		blocks = decodeBedrockContent(msg.Content)
	case "google":
		blocks = decodeGeminiContent(msg.Content)
	default:
		blocks = decodeOpenAICompatContent(msg.Content)
	}

	if msg.ToolCalls != nil {
		blocks = append(blocks, decodeOpenAIToolCalls(msg.ToolCalls)...)
	}

	return otelspan.ChatMessage{
		Role:         canonicalRole(msg.Role),
		Blocks:       blocks,
		FinishReason: canonicalFinishReason(msg.FinishReason),
		Model:        msg.Model,
	}
}

func canonicalRole(raw string) otelspan.ChatRole {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "system":
		return otelspan.RoleSystem
	case "user", "human":
		return otelspan.RoleUser
	case "assistant", "ai", "model":
		return otelspan.RoleAssistant
	case "tool", "function":
		return otelspan.RoleTool
	case "developer":
		return otelspan.RoleDeveloper
	default:
		return otelspan.RoleUser
	}
}

func canonicalFinishReason(raw string) *otelspan.FinishReason {
	var reason otelspan.FinishReason
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil
	case "stop", "end_turn", "stop_sequence", "completed":
		reason = otelspan.FinishStop
	case "length", "max_tokens", "max_output_tokens":
		reason = otelspan.FinishLength
	case "content_filter", "safety":
		reason = otelspan.FinishContentFilter
	case "tool_calls", "tool_use", "function_call":
		reason = otelspan.FinishToolUse
	case "error":
		reason = otelspan.FinishError
	default:
		reason = otelspan.FinishStop
	}
	return &reason
}

// wrapAsText is the fallback for any content value that isn't a
// recognized block shape: its JSON representation becomes a single Text
// block, per spec.md §4.3 ("Data values that are 'plain' ... are wrapped
// as Text of their JSON representation").
func wrapAsText(value any) otelspan.ContentBlock {
	switch v := value.(type) {
	case string:
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: v}
	case nil:
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: ""}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: ""}
		}
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: string(b)}
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
