package sideml

import "manifold/internal/otelspan"

// decodeBedrockContent handles the AWS Bedrock Converse / Strands Agents
// content shape: a list of blocks keyed by camelCase variant name
// ({"text":...}, {"toolUse":{...}}, {"toolResult":{...}}, {"image":{...}}).
func decodeBedrockContent(content any) []otelspan.ContentBlock {
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
			blocks = append(blocks, decodeBedrockBlock(m))
		}
		return blocks
	case nil:
		return nil
	default:
		return []otelspan.ContentBlock{wrapAsText(v)}
	}
}

func decodeBedrockBlock(m map[string]any) otelspan.ContentBlock {
	if text, ok := m["text"].(string); ok {
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: text}
	}
	if toolUse, ok := asMap(m["toolUse"]); ok {
		args := ""
		if input, ok := toolUse["input"]; ok {
			args = wrapAsText(input).Text
		}
		return otelspan.ContentBlock{
			Kind:        otelspan.BlockToolUse,
			ToolUseID:   stringField(toolUse, "toolUseId"),
			ToolName:    stringField(toolUse, "name"),
			ToolArgJSON: args,
		}
	}
	if toolResult, ok := asMap(m["toolResult"]); ok {
		status := stringField(toolResult, "status")
		resultText := ""
		if parts, ok := asSlice(toolResult["content"]); ok {
			for _, p := range parts {
				if pm, ok := asMap(p); ok {
					if t, ok := pm["text"].(string); ok {
						resultText += t
					}
				}
			}
		}
		return otelspan.ContentBlock{
			Kind:            otelspan.BlockToolResult,
			ToolResultForID: stringField(toolResult, "toolUseId"),
			IsError:         status == "error",
			ResultJSON:      resultText,
		}
	}
	if image, ok := asMap(m["image"]); ok {
		format := stringField(image, "format")
		uri := ""
		if src, ok := asMap(image["source"]); ok {
			uri = stringField(src, "bytes")
		}
		return otelspan.ContentBlock{Kind: otelspan.BlockImage, MediaType: "image/" + format, URI: uri}
	}
	return wrapAsText(m)
}
