package tracepipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"manifold/internal/otelspan"
	"manifold/internal/sideml"
)

// AttributeExtractor reads span-level GenAI/semantic-convention
// attributes and classifies the span, independent of message content.
// Classification is total: every span produces some ObservationType,
// unlike MessageExtractor which is partial/best-effort per source
// (original_source/server/src/domain/traces/extract/mod.rs).
type AttributeExtractor struct{}

// Classified is everything AttributeExtractor derives from one span's
// attributes, ready to feed the Enrich stage and the persisted row.
type Classified struct {
	Observation otelspan.ObservationType
	Category    otelspan.SpanCategory
	Framework   string
	Provider    string
	Model       string
	Tokens      otelspan.TokenUsage
	Status      otelspan.SpanStatus
	Exception   otelspan.ExceptionInfo
	ToolDefs    []otelspan.ToolDefinition
}

func (AttributeExtractor) Classify(span *tracepb.Span) Classified {
	attrs := attrMap(span.GetAttributes())

	c := Classified{
		Status:      statusOf(span),
		Observation: classifyObservation(span.GetName(), attrs),
		Framework:   frameworkOf(attrs),
	}
	c.Category = otelspan.SpanCategory(strings.ToLower(string(c.Observation)))
	c.Provider = sideml.NormalizeProvider(firstNonEmpty(attrs, "gen_ai.system", "llm.system", "llm.provider"))
	c.Model = firstNonEmpty(attrs, "gen_ai.response.model", "gen_ai.request.model", "llm.model_name", "llm.response.model")
	c.Tokens = tokenUsageOf(attrs)
	c.Exception = exceptionOf(span)
	c.ToolDefs = toolDefsOf(attrs)
	return c
}

func statusOf(span *tracepb.Span) otelspan.SpanStatus {
	if span.GetStatus().GetCode() == tracepb.Status_STATUS_CODE_ERROR {
		return otelspan.StatusError
	}
	return otelspan.StatusOK
}

func classifyObservation(spanName string, attrs map[string]string) otelspan.ObservationType {
	if op, ok := stringAttr(attrs, "gen_ai.operation.name"); ok {
		switch strings.ToLower(op) {
		case "chat", "text_completion", "generate_content":
			return otelspan.ObservationGeneration
		case "embeddings":
			return otelspan.ObservationEmbedding
		case "execute_tool":
			return otelspan.ObservationTool
		}
	}
	if kind, ok := stringAttr(attrs, "openinference.span.kind"); ok {
		switch strings.ToUpper(kind) {
		case "LLM":
			return otelspan.ObservationGeneration
		case "TOOL":
			return otelspan.ObservationTool
		case "AGENT":
			return otelspan.ObservationAgent
		case "EMBEDDING":
			return otelspan.ObservationEmbedding
		case "RETRIEVER":
			return otelspan.ObservationRetriever
		case "CHAIN":
			return otelspan.ObservationChain
		}
	}
	if _, ok := stringAttr(attrs, "gen_ai.agent.name"); ok {
		return otelspan.ObservationAgent
	}
	if _, hasModel := stringAttr(attrs, "gen_ai.request.model"); hasModel {
		return otelspan.ObservationGeneration
	}
	if _, ok := stringAttr(attrs, "tool.name"); ok {
		return otelspan.ObservationTool
	}
	lower := strings.ToLower(spanName)
	switch {
	case strings.Contains(lower, "tool"):
		return otelspan.ObservationTool
	case strings.Contains(lower, "chat"), strings.Contains(lower, "completion"), strings.Contains(lower, "generate"):
		return otelspan.ObservationGeneration
	case strings.Contains(lower, "agent"):
		return otelspan.ObservationAgent
	case strings.Contains(lower, "retriev"):
		return otelspan.ObservationRetriever
	case strings.Contains(lower, "embed"):
		return otelspan.ObservationEmbedding
	case strings.Contains(lower, "chain"), strings.Contains(lower, "workflow"):
		return otelspan.ObservationChain
	default:
		return otelspan.ObservationSpan
	}
}

// frameworkOf recognizes the handful of agent framework attribute
// namespaces the corpus's instrumentation libraries emit.
func frameworkOf(attrs map[string]string) string {
	prefixes := []string{"langchain", "langgraph", "crewai", "autogen", "llama_index", "traceloop", "ai"}
	for key := range attrs {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p+".") {
				return p
			}
		}
	}
	return ""
}

func tokenUsageOf(attrs map[string]string) otelspan.TokenUsage {
	var u otelspan.TokenUsage
	if v, ok := intAttr(attrs, "gen_ai.usage.input_tokens"); ok {
		u.Input = v
	} else if v, ok := intAttr(attrs, "llm.token_count.prompt"); ok {
		u.Input = v
	}
	if v, ok := intAttr(attrs, "gen_ai.usage.output_tokens"); ok {
		u.Output = v
	} else if v, ok := intAttr(attrs, "llm.token_count.completion"); ok {
		u.Output = v
	}
	if v, ok := intAttr(attrs, "gen_ai.usage.cached_tokens"); ok {
		u.Cached = v
	} else if v, ok := intAttr(attrs, "llm.token_count.prompt_details.cache_read"); ok {
		u.Cached = v
	}
	if v, ok := intAttr(attrs, "gen_ai.usage.reasoning_tokens"); ok {
		u.Reasoning = v
	} else if v, ok := intAttr(attrs, "llm.token_count.completion_details.reasoning"); ok {
		u.Reasoning = v
	}
	if v, ok := intAttr(attrs, "llm.token_count.total"); ok {
		u.Total = v
	} else {
		u.Total = u.Input + u.Output
	}
	return u
}

func exceptionOf(span *tracepb.Span) otelspan.ExceptionInfo {
	for _, ev := range span.GetEvents() {
		if ev.GetName() != "exception" {
			continue
		}
		attrs := attrMap(ev.GetAttributes())
		return otelspan.ExceptionInfo{
			Type:       attrs["exception.type"],
			Message:    attrs["exception.message"],
			Stacktrace: attrs["exception.stacktrace"],
		}
	}
	return otelspan.ExceptionInfo{}
}

var toolFieldPattern = regexp.MustCompile(`^(\d+)\.tool\.(.+)$`)

// toolDefsOf extracts tool schema advertisements from the indexed
// llm.tools.N.tool.* attributes (OpenInference convention), the one
// wire shape a span carries tool definitions in rather than tool
// invocations (those live in message content blocks instead).
func toolDefsOf(attrs map[string]string) []otelspan.ToolDefinition {
	byIndex := map[int]*otelspan.ToolDefinition{}
	for key, value := range attrs {
		rest, ok := strings.CutPrefix(key, "llm.tools.")
		if !ok {
			continue
		}
		m := toolFieldPattern.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if byIndex[idx] == nil {
			byIndex[idx] = &otelspan.ToolDefinition{Source: otelspan.SourceInputAttr}
		}
		switch m[2] {
		case "name":
			byIndex[idx].Name = value
		case "description":
			byIndex[idx].Description = value
		case "parameters", "json_schema":
			byIndex[idx].ParamsJSON = value
		}
	}
	if len(byIndex) == 0 {
		return nil
	}
	indices := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	out := make([]otelspan.ToolDefinition, 0, len(indices))
	for _, i := range indices {
		out = append(out, *byIndex[i])
	}
	return out
}

func firstNonEmpty(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := stringAttr(attrs, k); ok {
			return v
		}
	}
	return ""
}
