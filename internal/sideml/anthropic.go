package sideml

import "manifold/internal/otelspan"

// decodeAnthropicContent handles the Anthropic Messages API content shape:
// an array of typed blocks ({type:"text"|"thinking"|"tool_use"|"tool_result"|"image"}),
// or occasionally a bare string for simple user turns.
func decodeAnthropicContent(content any) []otelspan.ContentBlock {
	switch v := content.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []otelspan.ContentBlock{{Kind: otelspan.BlockText, Text: v}}
	case []any:
		blocks := make([]otelspan.ContentBlock, 0, len(v))
		for _, part := range v {
			m, ok := asMap(part)
			if !ok {
				blocks = append(blocks, wrapAsText(part))
				continue
			}
			blocks = append(blocks, decodeAnthropicBlock(m))
		}
		return blocks
	case nil:
		return nil
	default:
		return []otelspan.ContentBlock{wrapAsText(v)}
	}
}

func decodeAnthropicBlock(m map[string]any) otelspan.ContentBlock {
	switch stringField(m, "type") {
	case "text":
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: stringField(m, "text")}
	case "thinking", "redacted_thinking":
		text := stringField(m, "thinking")
		if text == "" {
			text = stringField(m, "data")
		}
		return otelspan.ContentBlock{Kind: otelspan.BlockThinking, Text: text}
	case "tool_use":
		args := ""
		if input, ok := m["input"]; ok {
			args = wrapAsText(input).Text
		}
		return otelspan.ContentBlock{
			Kind:        otelspan.BlockToolUse,
			ToolUseID:   stringField(m, "id"),
			ToolName:    stringField(m, "name"),
			ToolArgJSON: args,
		}
	case "tool_result":
		resultText := flattenAnthropicToolResultContent(m["content"])
		return otelspan.ContentBlock{
			Kind:            otelspan.BlockToolResult,
			ToolResultForID: stringField(m, "tool_use_id"),
			IsError:         boolField(m, "is_error"),
			ResultJSON:      resultText,
		}
	case "image":
		mediaType := ""
		uri := ""
		if src, ok := asMap(m["source"]); ok {
			mediaType = stringField(src, "media_type")
			if data := stringField(src, "data"); data != "" {
				uri = data
			} else {
				uri = stringField(src, "url")
			}
		}
		return otelspan.ContentBlock{Kind: otelspan.BlockImage, MediaType: mediaType, URI: uri}
	default:
		return wrapAsText(m)
	}
}

// flattenAnthropicToolResultContent handles tool_result.content being
// either a plain string or a nested array of text/image blocks.
func flattenAnthropicToolResultContent(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var out string
		for _, part := range v {
			if m, ok := asMap(part); ok && stringField(m, "type") == "text" {
				out += stringField(m, "text")
			}
		}
		return out
	default:
		return wrapAsText(content).Text
	}
}
