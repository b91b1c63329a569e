package tracepipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

func testSpanContext() spanContext {
	return spanContext{
		traceID: "trace1", spanID: "span1",
		startUs: 1_000_000, endUs: 2_000_000,
		provider: "openai", model: "gpt-4o",
	}
}

func TestExtractReadsGenAIEvents(t *testing.T) {
	span := &tracepb.Span{
		Events: []*tracepb.Span_Event{
			{Name: "gen_ai.user.message", TimeUnixNano: 1_000_000_000, Attributes: []*commonpb.KeyValue{
				strAttr("content", "hello"),
			}},
			{Name: "gen_ai.assistant.message", TimeUnixNano: 1_500_000_000, Attributes: []*commonpb.KeyValue{
				strAttr("content", "hi there"),
			}},
		},
	}

	msgs := MessageExtractor{}.Extract(span, testSpanContext())
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.False(t, msgs[0].IsOutput)
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.True(t, msgs[1].IsOutput)
	assert.Equal(t, int64(2_000_000), msgs[1].BirthTime) // output birth time pinned to span end
}

func TestExtractIndexedGenAIAttributes(t *testing.T) {
	span := &tracepb.Span{
		Attributes: []*commonpb.KeyValue{
			strAttr("gen_ai.prompt.0.role", "system"),
			strAttr("gen_ai.prompt.0.content", "be nice"),
			strAttr("gen_ai.prompt.1.role", "user"),
			strAttr("gen_ai.prompt.1.content", "hi"),
			strAttr("gen_ai.completion.0.role", "assistant"),
			strAttr("gen_ai.completion.0.content", "hello!"),
		},
	}

	msgs := MessageExtractor{}.Extract(span, testSpanContext())
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", string(msgs[0].Role))
	assert.Equal(t, "user", string(msgs[1].Role))
	assert.Equal(t, "assistant", string(msgs[2].Role))
	assert.True(t, msgs[2].IsOutput)
}

func TestExtractOpenInferenceIndexedMessages(t *testing.T) {
	span := &tracepb.Span{
		Attributes: []*commonpb.KeyValue{
			strAttr("llm.input_messages.0.message.role", "user"),
			strAttr("llm.input_messages.0.message.content", "what is 2+2"),
			strAttr("llm.output_messages.0.message.role", "assistant"),
			strAttr("llm.output_messages.0.message.content", "4"),
		},
	}

	msgs := MessageExtractor{}.Extract(span, testSpanContext())
	require.Len(t, msgs, 2)
	assert.Equal(t, "what is 2+2", msgs[0].Content[0].Text)
	assert.True(t, msgs[1].IsOutput)
}

func TestExtractFallsBackToRawIOWhenNoStructuredSourcePresent(t *testing.T) {
	span := &tracepb.Span{
		Attributes: []*commonpb.KeyValue{
			strAttr("input.value", "raw input text"),
			strAttr("output.value", "raw output text"),
		},
	}

	msgs := MessageExtractor{}.Extract(span, testSpanContext())
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
}

func TestExtractPrefersStructuredSourceOverRawFallback(t *testing.T) {
	span := &tracepb.Span{
		Attributes: []*commonpb.KeyValue{
			strAttr("gen_ai.prompt.0.role", "user"),
			strAttr("gen_ai.prompt.0.content", "structured"),
			strAttr("input.value", "should be ignored"),
		},
	}

	msgs := MessageExtractor{}.Extract(span, testSpanContext())
	require.Len(t, msgs, 1)
	assert.Equal(t, "structured", msgs[0].Content[0].Text)
}

func TestExtractReturnsNothingForNonGenAISpan(t *testing.T) {
	span := &tracepb.Span{Name: "http.request"}
	msgs := MessageExtractor{}.Extract(span, testSpanContext())
	assert.Empty(t, msgs)
}
