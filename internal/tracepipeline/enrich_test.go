package tracepipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/otelspan"
	"manifold/internal/pricing"
)

func TestEnrichComputesCostFromPricingTable(t *testing.T) {
	table := pricing.New()
	table.Replace(map[string]pricing.ModelPricing{
		"gpt-4o": {InputPerToken: 0.000005, OutputPerToken: 0.000015},
	}, nil)

	e := &enricher{prices: table}
	out := e.enrich(Classified{
		Provider: "openai",
		Model:    "gpt-4o",
		Tokens:   otelspan.TokenUsage{Input: 1000, Output: 500},
	}, nil)

	require.False(t, out.CostMicros.IsZero())
	assert.Equal(t, "0.0125", out.CostMicros.String())
}

func TestEnrichPricesZeroOnModelMiss(t *testing.T) {
	e := &enricher{prices: pricing.New()}
	out := e.enrich(Classified{Provider: "openai", Model: "unknown-model"}, nil)
	assert.True(t, out.CostMicros.IsZero())
}

func TestEnrichBuildsPreviewsFromTextBlocksSplitByDirection(t *testing.T) {
	e := &enricher{prices: pricing.New()}
	messages := []otelspan.RawMessage{
		{Role: otelspan.RoleUser, Content: []otelspan.ContentBlock{{Kind: otelspan.BlockText, Text: "hello"}}, IsOutput: false},
		{Role: otelspan.RoleAssistant, Content: []otelspan.ContentBlock{{Kind: otelspan.BlockText, Text: "world"}}, IsOutput: true},
	}

	out := e.enrich(Classified{}, messages)
	assert.Equal(t, "hello", out.InputPreview)
	assert.Equal(t, "world", out.OutputPreview)
	require.Len(t, out.Messages, 2)
}

func TestEnrichTruncatesPreviewAtMaxLength(t *testing.T) {
	e := &enricher{prices: pricing.New()}
	long := strings.Repeat("a", PreviewMaxLength+500)
	messages := []otelspan.RawMessage{
		{Role: otelspan.RoleUser, Content: []otelspan.ContentBlock{{Kind: otelspan.BlockText, Text: long}}},
	}

	out := e.enrich(Classified{}, messages)
	assert.Len(t, out.InputPreview, PreviewMaxLength)
}

func TestEnrichCollectsUniqueToolNames(t *testing.T) {
	e := &enricher{prices: pricing.New()}
	messages := []otelspan.RawMessage{
		{Role: otelspan.RoleAssistant, Content: []otelspan.ContentBlock{
			{Kind: otelspan.BlockToolUse, ToolName: "search"},
			{Kind: otelspan.BlockToolUse, ToolName: "search"},
			{Kind: otelspan.BlockToolUse, ToolName: "calculator"},
		}},
	}

	out := e.enrich(Classified{}, messages)
	assert.Equal(t, []string{"search", "calculator"}, out.ToolNames)
}
