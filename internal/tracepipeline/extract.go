package tracepipeline

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"manifold/internal/otelspan"
	"manifold/internal/sideml"
)

// MessageExtractor pulls literal message occurrences out of one span in
// the priority order spec.md §4.3 names. Unlike AttributeExtractor this
// is partial: a span with none of the six shapes present yields no
// messages, which is the common case for non-GenAI spans.
type MessageExtractor struct{}

// spanContext carries the owning-span provenance every RawMessage needs
// for the feed package's history rules (spec.md §4.4).
type spanContext struct {
	traceID, spanID, parentSpanID string
	startUs, endUs                int64
	observation                   otelspan.ObservationType
	isRoot                        bool
	provider, model               string
}

// Extract returns every raw message occurrence found on span, trying
// each source in turn; sources are not mutually exclusive; a span can
// carry both events and indexed attributes; all are returned in index
// order. entryIndex numbers occurrences within the call for downstream
// tie-breaking.
func (MessageExtractor) Extract(span *tracepb.Span, sc spanContext) []otelspan.RawMessage {
	attrs := attrMap(span.GetAttributes())
	entryIndex := 0
	var out []otelspan.RawMessage

	emit := func(msgIdx int, role, content, finishReason, toolCalls string, source otelspan.MessageSource, birthTime int64, isOutput bool) {
		chat := sideml.Normalize(sideml.WireMessage{
			Role:         role,
			Provider:     sc.provider,
			Content:      decodeJSONOrString(content),
			FinishReason: finishReason,
			Model:        sc.model,
			ToolCalls:    decodeJSONOrNil(toolCalls),
		})
		if isOutput {
			birthTime = sc.endUs
		}
		out = append(out, otelspan.RawMessage{
			Role:         chat.Role,
			Content:      chat.Blocks,
			FinishReason: chat.FinishReason,
			Model:        chat.Model,
			Source:       source,
			BirthTime:    birthTime,
			MessageIndex: msgIdx,
			EntryIndex:   entryIndex,
			IsOutput:     isOutput,
			SpanTraceID:  sc.traceID,
			SpanID:       sc.spanID,
			ParentSpanID: sc.parentSpanID,
			SpanStart:    sc.startUs,
			SpanEnd:      sc.endUs,
			Observation:  sc.observation,
			IsRootSpan:   sc.isRoot,
		})
		entryIndex++
	}

	// Priority 1: OTEL events gen_ai.*.message / gen_ai.choice.
	msgIdx := 0
	for _, ev := range span.GetEvents() {
		name := ev.GetName()
		if !strings.HasPrefix(name, "gen_ai.") || !strings.HasSuffix(name, ".message") {
			if name != "gen_ai.choice" {
				continue
			}
		}
		evAttrs := attrMap(ev.GetAttributes())
		isOutput := genAIOutputEvents[name]
		role := roleFromEventName(name, evAttrs)
		content := firstNonEmpty(evAttrs, "content", "message")
		emit(msgIdx, role, content, evAttrs["finish_reason"], evAttrs["tool_calls"], otelspan.SourceEventAttr, int64(ev.GetTimeUnixNano())/1000, isOutput)
		msgIdx++
	}

	// Priority 2: indexed gen_ai.prompt.N.* / gen_ai.completion.N.*.
	for _, occ := range indexedMessages(attrs, "gen_ai.prompt.") {
		emit(msgIdx, occ.role, occ.content, occ.finishReason, occ.toolCalls, otelspan.SourceInputAttr, sc.startUs, false)
		msgIdx++
	}
	for _, occ := range indexedMessages(attrs, "gen_ai.completion.") {
		emit(msgIdx, occ.role, occ.content, occ.finishReason, occ.toolCalls, otelspan.SourceOutputAttr, sc.endUs, true)
		msgIdx++
	}

	// Priority 3: OpenInference llm.input_messages.N.* / llm.output_messages.N.*.
	for _, occ := range indexedOpenInferenceMessages(attrs, "llm.input_messages.") {
		emit(msgIdx, occ.role, occ.content, occ.finishReason, occ.toolCalls, otelspan.SourceInputAttr, sc.startUs, false)
		msgIdx++
	}
	for _, occ := range indexedOpenInferenceMessages(attrs, "llm.output_messages.") {
		emit(msgIdx, occ.role, occ.content, occ.finishReason, occ.toolCalls, otelspan.SourceOutputAttr, sc.endUs, true)
		msgIdx++
	}

	// Priority 4: Logfire `events` JSON array attribute.
	if raw, ok := stringAttr(attrs, "events"); ok {
		for _, occ := range logfireEvents(raw) {
			emit(msgIdx, occ.role, occ.content, occ.finishReason, "", otelspan.SourceEventAttr, sc.startUs, false)
			msgIdx++
		}
	}

	// Priority 5: framework-specific flattened shapes (Vercel AI SDK).
	if raw, ok := stringAttr(attrs, "ai.prompt.messages"); ok {
		for _, occ := range logfireEvents(raw) {
			emit(msgIdx, occ.role, occ.content, occ.finishReason, "", otelspan.SourceFrameworkSpecific, sc.startUs, false)
			msgIdx++
		}
	}

	// Priority 6: raw input.value / output.value / raw_input / response.
	if len(out) == 0 {
		if v, ok := stringAttr(attrs, "input.value"); ok {
			emit(msgIdx, "user", v, "", "", otelspan.SourceRawIO, sc.startUs, false)
			msgIdx++
		}
		if v, ok := stringAttr(attrs, "raw_input"); ok {
			emit(msgIdx, "user", v, "", "", otelspan.SourceRawIO, sc.startUs, false)
			msgIdx++
		}
		if v, ok := stringAttr(attrs, "output.value"); ok {
			emit(msgIdx, "assistant", v, "", "", otelspan.SourceRawIO, sc.endUs, true)
			msgIdx++
		}
		if v, ok := stringAttr(attrs, "response"); ok {
			emit(msgIdx, "assistant", v, "", "", otelspan.SourceRawIO, sc.endUs, true)
			msgIdx++
		}
	}

	return out
}

func roleFromEventName(name string, evAttrs map[string]string) string {
	if r, ok := stringAttr(evAttrs, "role"); ok {
		return r
	}
	switch name {
	case "gen_ai.system.message":
		return "system"
	case "gen_ai.user.message":
		return "user"
	case "gen_ai.assistant.message":
		return "assistant"
	case "gen_ai.tool.message":
		return "tool"
	case "gen_ai.choice":
		if r, ok := stringAttr(evAttrs, "message.role"); ok {
			return r
		}
		return "assistant"
	default:
		return "user"
	}
}

type indexedOccurrence struct {
	role, content, finishReason, toolCalls string
}

var indexedFieldPattern = regexp.MustCompile(`^(\d+)\.(.+)$`)

// indexedMessages collects gen_ai.{prompt,completion}.N.* attributes
// into ordered per-index occurrences.
func indexedMessages(attrs map[string]string, prefix string) []indexedOccurrence {
	byIndex := map[int]*indexedOccurrence{}
	for key, value := range attrs {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		m := indexedFieldPattern.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if byIndex[idx] == nil {
			byIndex[idx] = &indexedOccurrence{}
		}
		switch m[2] {
		case "role":
			byIndex[idx].role = value
		case "content":
			byIndex[idx].content = value
		case "finish_reason":
			byIndex[idx].finishReason = value
		case "tool_calls":
			byIndex[idx].toolCalls = value
		}
	}
	return orderedOccurrences(byIndex)
}

// indexedOpenInferenceMessages collects llm.{input,output}_messages.N.message.*
// attributes (one extra "message." path segment vs gen_ai.*).
func indexedOpenInferenceMessages(attrs map[string]string, prefix string) []indexedOccurrence {
	byIndex := map[int]*indexedOccurrence{}
	for key, value := range attrs {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		parts := strings.SplitN(rest, ".", 3)
		if len(parts) < 3 || parts[1] != "message" {
			continue
		}
		idx, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		if byIndex[idx] == nil {
			byIndex[idx] = &indexedOccurrence{}
		}
		switch parts[2] {
		case "role":
			byIndex[idx].role = value
		case "content":
			byIndex[idx].content = value
		}
	}
	return orderedOccurrences(byIndex)
}

func orderedOccurrences(byIndex map[int]*indexedOccurrence) []indexedOccurrence {
	if len(byIndex) == 0 {
		return nil
	}
	indices := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	out := make([]indexedOccurrence, 0, len(indices))
	for _, i := range indices {
		out = append(out, *byIndex[i])
	}
	return out
}

// logfireEvents decodes a JSON array of {role, content} objects, the
// shape both the Logfire `events` attribute and the Vercel AI SDK
// `ai.prompt.messages` attribute use.
func logfireEvents(raw string) []indexedOccurrence {
	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	out := make([]indexedOccurrence, 0, len(items))
	for _, item := range items {
		role, _ := item["role"].(string)
		var content string
		switch c := item["content"].(type) {
		case string:
			content = c
		default:
			if b, err := json.Marshal(c); err == nil {
				content = string(b)
			}
		}
		out = append(out, indexedOccurrence{role: role, content: content})
	}
	return out
}

func decodeJSONOrString(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func decodeJSONOrNil(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}
