package sideml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/otelspan"
)

func TestNormalizeOpenAIPlainText(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:         "assistant",
		Provider:     "openai",
		Content:      "hello",
		FinishReason: "stop",
		Model:        "gpt-4o-mini",
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.RoleAssistant, msg.Role)
	assert.Equal(t, otelspan.BlockText, msg.Blocks[0].Kind)
	assert.Equal(t, "hello", msg.Blocks[0].Text)
	require.NotNil(t, msg.FinishReason)
	assert.Equal(t, otelspan.FinishStop, *msg.FinishReason)
}

func TestNormalizeOpenAIToolCalls(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "assistant",
		Provider: "openai",
		Content:  nil,
		ToolCalls: []any{
			map[string]any{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      "get_weather",
					"arguments": `{"city":"nyc"}`,
				},
			},
		},
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.BlockToolUse, msg.Blocks[0].Kind)
	assert.Equal(t, "call_1", msg.Blocks[0].ToolUseID)
	assert.Equal(t, "get_weather", msg.Blocks[0].ToolName)
}

func TestNormalizeOpenAIToolResultMessage(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "tool",
		Provider: "openai",
		Content: map[string]any{
			"tool_call_id": "call_1",
			"content":      "72F and sunny",
		},
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.BlockToolResult, msg.Blocks[0].Kind)
	assert.Equal(t, "call_1", msg.Blocks[0].ToolResultForID)
	assert.Equal(t, "72F and sunny", msg.Blocks[0].ResultJSON)
}

func TestNormalizeAnthropicBlocks(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "assistant",
		Provider: "anthropic",
		Content: []any{
			map[string]any{"type": "thinking", "thinking": "let me think"},
			map[string]any{"type": "text", "text": "the answer is 4"},
			map[string]any{
				"type":  "tool_use",
				"id":    "toolu_1",
				"name":  "calculator",
				"input": map[string]any{"a": 2, "b": 2},
			},
		},
	})
	require.Len(t, msg.Blocks, 3)
	assert.Equal(t, otelspan.BlockThinking, msg.Blocks[0].Kind)
	assert.Equal(t, otelspan.BlockText, msg.Blocks[1].Kind)
	assert.Equal(t, otelspan.BlockToolUse, msg.Blocks[2].Kind)
	assert.Equal(t, "toolu_1", msg.Blocks[2].ToolUseID)
}

func TestNormalizeAnthropicToolResult(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "user",
		Provider: "claude",
		Content: []any{
			map[string]any{
				"type":        "tool_result",
				"tool_use_id": "toolu_1",
				"content":     "4",
			},
		},
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.BlockToolResult, msg.Blocks[0].Kind)
	assert.Equal(t, "toolu_1", msg.Blocks[0].ToolResultForID)
	assert.Equal(t, "4", msg.Blocks[0].ResultJSON)
}

func TestNormalizeBedrockToolUse(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "assistant",
		Provider: "aws.bedrock",
		Content: []any{
			map[string]any{
				"toolUse": map[string]any{
					"toolUseId": "tu1",
					"name":      "lookup",
					"input":     map[string]any{"q": "weather"},
				},
			},
		},
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.BlockToolUse, msg.Blocks[0].Kind)
	assert.Equal(t, "tu1", msg.Blocks[0].ToolUseID)
}

func TestNormalizeGeminiFunctionCall(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "model",
		Provider: "gemini",
		Content: map[string]any{
			"parts": []any{
				map[string]any{"functionCall": map[string]any{"name": "search", "args": map[string]any{"q": "go"}}},
			},
		},
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.BlockToolUse, msg.Blocks[0].Kind)
	assert.Equal(t, "search", msg.Blocks[0].ToolName)
	assert.Equal(t, otelspan.RoleAssistant, msg.Role)
}

func TestNormalizeUnknownContentWrapsAsText(t *testing.T) {
	msg := Normalize(WireMessage{
		Role:     "user",
		Provider: "some-unknown-thing",
		Content:  map[string]any{"weird": "shape"},
	})
	require.Len(t, msg.Blocks, 1)
	assert.Equal(t, otelspan.BlockText, msg.Blocks[0].Kind)
	assert.Contains(t, msg.Blocks[0].Text, "weird")
}

func TestNormalizeProviderAliases(t *testing.T) {
	assert.Equal(t, "anthropic", NormalizeProvider("Claude"))
	assert.Equal(t, "bedrock", NormalizeProvider("aws.bedrock"))
	assert.Equal(t, "google", NormalizeProvider("vertex_ai"))
	assert.Equal(t, "openai", NormalizeProvider("azure_openai"))
	assert.Equal(t, "some-unmapped-provider", NormalizeProvider("Some-Unmapped-Provider"))
}
