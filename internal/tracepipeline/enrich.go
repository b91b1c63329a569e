package tracepipeline

import (
	"strings"

	"github.com/shopspring/decimal"

	"manifold/internal/otelspan"
	"manifold/internal/pricing"
)

// Enriched is the final shape of one span after classification,
// extraction, deduping, and cost lookup — everything SpanRepository
// needs to persist a row.
type Enriched struct {
	Messages      []otelspan.ChatMessage
	ToolNames     []string
	CostMicros    decimal.Decimal
	InputPreview  string
	OutputPreview string
}

// enricher computes cost and previews from a span's classification and
// its final, ordered message set (post-feed.Timeline).
type enricher struct {
	prices *pricing.Table
}

// enrich implements spec.md §4.3's Enrich step: cost from token usage
// via the pricing engine, then input/output previews truncated to
// PreviewMaxLength.
func (e *enricher) enrich(c Classified, messages []otelspan.RawMessage) Enriched {
	out := Enriched{
		CostMicros: costOf(e.prices, c),
	}

	chat := make([]otelspan.ChatMessage, 0, len(messages))
	var input, output strings.Builder
	seenTools := map[string]bool{}

	for _, m := range messages {
		chat = append(chat, otelspan.ChatMessage{
			Role:         m.Role,
			Blocks:       m.Content,
			FinishReason: m.FinishReason,
			Model:        m.Model,
		})

		dst := &input
		if m.IsOutput {
			dst = &output
		}
		for _, b := range m.Content {
			switch b.Kind {
			case otelspan.BlockText, otelspan.BlockThinking, otelspan.BlockRefusal:
				appendTruncated(dst, b.Text)
			case otelspan.BlockToolUse:
				if b.ToolName != "" && !seenTools[b.ToolName] {
					seenTools[b.ToolName] = true
					out.ToolNames = append(out.ToolNames, b.ToolName)
				}
			}
		}
	}

	out.Messages = chat
	out.InputPreview = input.String()
	out.OutputPreview = output.String()
	return out
}

// appendTruncated adds text to b up to PreviewMaxLength total, a space
// separator between pieces.
func appendTruncated(b *strings.Builder, text string) {
	if text == "" || b.Len() >= PreviewMaxLength {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	remaining := PreviewMaxLength - b.Len()
	if len(text) > remaining {
		text = text[:remaining]
	}
	b.WriteString(text)
}

// costOf looks up pricing for the span's (provider, model) and converts
// accumulated token usage into a cost. A miss prices at zero rather than
// blocking ingestion — spec.md treats pricing as best-effort enrichment.
func costOf(prices *pricing.Table, c Classified) decimal.Decimal {
	if prices == nil {
		return decimal.Zero
	}
	mp, _, ok := prices.Lookup(c.Provider, c.Model)
	if !ok {
		return decimal.Zero
	}
	return pricing.Cost(mp, pricing.Usage{
		InputTokens:     c.Tokens.Input,
		OutputTokens:    c.Tokens.Output,
		CachedTokens:    c.Tokens.Cached,
		ReasoningTokens: c.Tokens.Reasoning,
	})
}
