package sideml

import "manifold/internal/otelspan"

// decodeGeminiContent handles the Google Gemini/Vertex AI "parts" shape:
// {"parts": [{"text":...}, {"inline_data":{...}}, {"file_data":{...}},
// {"functionCall":{...}}, {"functionResponse":{...}}]}, or a bare parts
// array without the wrapping object.
func decodeGeminiContent(content any) []otelspan.ContentBlock {
	parts := content
	if m, ok := asMap(content); ok {
		if p, ok := m["parts"]; ok {
			parts = p
		}
	}
	switch v := parts.(type) {
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
			blocks = append(blocks, decodeGeminiPart(m))
		}
		return blocks
	case nil:
		return nil
	default:
		return []otelspan.ContentBlock{wrapAsText(v)}
	}
}

func decodeGeminiPart(m map[string]any) otelspan.ContentBlock {
	if text, ok := m["text"].(string); ok {
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: text}
	}
	if inline, ok := asMap(m["inline_data"]); ok {
		return otelspan.ContentBlock{
			Kind:      mimeToBlockKind(stringField(inline, "mime_type")),
			MediaType: stringField(inline, "mime_type"),
			URI:       stringField(inline, "data"),
		}
	}
	if file, ok := asMap(m["file_data"]); ok {
		return otelspan.ContentBlock{
			Kind:      mimeToBlockKind(stringField(file, "mime_type")),
			MediaType: stringField(file, "mime_type"),
			URI:       stringField(file, "file_uri"),
		}
	}
	if call, ok := asMap(m["functionCall"]); ok {
		args := ""
		if a, ok := call["args"]; ok {
			args = wrapAsText(a).Text
		}
		return otelspan.ContentBlock{
			Kind:        otelspan.BlockToolUse,
			ToolName:    stringField(call, "name"),
			ToolArgJSON: args,
		}
	}
	if resp, ok := asMap(m["functionResponse"]); ok {
		resultText := ""
		if r, ok := resp["response"]; ok {
			resultText = wrapAsText(r).Text
		}
		return otelspan.ContentBlock{
			Kind:            otelspan.BlockToolResult,
			ToolResultForID: stringField(resp, "name"),
			ResultJSON:      resultText,
		}
	}
	return wrapAsText(m)
}

func mimeToBlockKind(mime string) otelspan.BlockKind {
	switch {
	case len(mime) >= 6 && mime[:6] == "image/":
		return otelspan.BlockImage
	case len(mime) >= 6 && mime[:6] == "audio/":
		return otelspan.BlockAudio
	case len(mime) >= 6 && mime[:6] == "video/":
		return otelspan.BlockVideo
	default:
		return otelspan.BlockDocument
	}
}
