// Package sideml is the pure normalizer that turns a provider-shaped
// WireMessage into the unified otelspan.ChatMessage shape, with
// provider detection and content-block decoding for every GenAI-adjacent
// wire format the reference corpus and the OTel semantic conventions name
// (spec.md §4.3 "Normalize (SideML)").
package sideml

import "strings"

// NormalizeProvider maps a raw gen_ai.system value (or a framework tag)
// onto a canonical provider name. Unknown values pass through lowercased
// unchanged, since an unrecognized provider is still useful for display
// and pricing family-prefix matching.
func NormalizeProvider(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := providerAliases[key]; ok {
		return canon
	}
	return key
}

// providerAliases covers the gen_ai.system values and framework-specific
// spellings observed across OTel GenAI semantic conventions, OpenInference,
// Logfire, and the major agent frameworks (spec.md: "≥20 gen_ai.system
// aliases").
var providerAliases = map[string]string{
	"openai":           "openai",
	"azure_openai":     "openai",
	"azure.ai.openai":  "openai",
	"azureopenai":      "openai",
	"anthropic":        "anthropic",
	"claude":           "anthropic",
	"aws.bedrock":      "bedrock",
	"bedrock":          "bedrock",
	"aws_bedrock":      "bedrock",
	"strands":          "bedrock",
	"aws.strands":      "bedrock",
	"vertex_ai":        "google",
	"vertexai":         "google",
	"vertex.ai":        "google",
	"gemini":           "google",
	"google":           "google",
	"google_genai":     "google",
	"google.generativeai": "google",
	"cohere":           "cohere",
	"mistral":          "mistral",
	"mistral_ai":       "mistral",
	"mistralai":        "mistral",
	"groq":             "groq",
	"together":         "together",
	"together_ai":      "together",
	"togetherai":       "together",
	"perplexity":       "perplexity",
	"deepseek":         "deepseek",
	"xai":              "xai",
	"x_ai":             "xai",
	"ollama":           "ollama",
	"huggingface":      "huggingface",
	"hf":               "huggingface",
	"openrouter":       "openrouter",
	"vercel_ai":        "vercel",
	"vercel.ai":        "vercel",
	"ai_sdk":           "vercel",
	"google_adk":       "google",
	"google.adk":       "google",
	"autogen":          "autogen",
	"crewai":           "crewai",
	"crew_ai":          "crewai",
	"langchain":        "langchain",
	"llamaindex":       "llamaindex",
	"llama_index":      "llamaindex",
}
