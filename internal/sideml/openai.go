package sideml

import "manifold/internal/otelspan"

// decodeOpenAICompatContent handles the OpenAI wire shape and the many
// OpenAI-compatible dialects (Groq, Mistral, DeepSeek, xAI, Together,
// Perplexity, Ollama, OpenRouter, HuggingFace, Vercel AI SDK, and the
// agent frameworks that proxy through an OpenAI-shaped chat completion):
// content is either a plain string, or an array of typed parts
// ({type:"text"|"image_url"|"input_audio", ...}), or (for tool role
// messages) a tool result body paired with a tool_call_id sibling field
// carried on the WireMessage's ToolCalls/Content split by the extractor.
func decodeOpenAICompatContent(content any) []otelspan.ContentBlock {
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
			blocks = append(blocks, decodeOpenAIPart(m))
		}
		return blocks
	case map[string]any:
		// A tool-role message: {"tool_call_id": "...", "content": "..."}.
		if callID := stringField(v, "tool_call_id"); callID != "" {
			return []otelspan.ContentBlock{{
				Kind:            otelspan.BlockToolResult,
				ToolResultForID: callID,
				ResultJSON:      stringField(v, "content"),
			}}
		}
		return []otelspan.ContentBlock{wrapAsText(v)}
	case nil:
		return nil
	default:
		return []otelspan.ContentBlock{wrapAsText(v)}
	}
}

func decodeOpenAIPart(m map[string]any) otelspan.ContentBlock {
	switch stringField(m, "type") {
	case "text":
		return otelspan.ContentBlock{Kind: otelspan.BlockText, Text: stringField(m, "text")}
	case "image_url":
		url := ""
		if nested, ok := asMap(m["image_url"]); ok {
			url = stringField(nested, "url")
		}
		return otelspan.ContentBlock{Kind: otelspan.BlockImage, URI: url}
	case "input_audio":
		format := ""
		data := ""
		if nested, ok := asMap(m["input_audio"]); ok {
			format = stringField(nested, "format")
			data = stringField(nested, "data")
		}
		return otelspan.ContentBlock{Kind: otelspan.BlockAudio, MediaType: "audio/" + format, URI: data}
	case "refusal":
		return otelspan.ContentBlock{Kind: otelspan.BlockRefusal, Text: stringField(m, "refusal")}
	default:
		return wrapAsText(m)
	}
}

// decodeOpenAIToolCalls handles the assistant-message top-level
// "tool_calls": [{"id","type":"function","function":{"name","arguments"}}]
// array, which sits alongside (not inside) the content field.
func decodeOpenAIToolCalls(raw any) []otelspan.ContentBlock {
	calls, ok := asSlice(raw)
	if !ok {
		return nil
	}
	blocks := make([]otelspan.ContentBlock, 0, len(calls))
	for _, c := range calls {
		m, ok := asMap(c)
		if !ok {
			continue
		}
		id := stringField(m, "id")
		name := ""
		args := ""
		if fn, ok := asMap(m["function"]); ok {
			name = stringField(fn, "name")
			args = stringField(fn, "arguments")
		}
		blocks = append(blocks, otelspan.ContentBlock{
			Kind:        otelspan.BlockToolUse,
			ToolUseID:   id,
			ToolName:    name,
			ToolArgJSON: args,
		})
	}
	return blocks
}
