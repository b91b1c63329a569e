package pricing

// DefaultAliases maps common model-name variants emitted by SDKs and
// gateways to the canonical LiteLLM pricing key, for the alias lookup
// stage (spec.md §4.5 stage 3). Populated from the provider families most
// often seen as gen_ai.request.model values that don't match LiteLLM's
// naming verbatim.
var DefaultAliases = map[string]string{
	"gpt-4o":                    "gpt-4o",
	"gpt-4o-latest":             "gpt-4o",
	"gpt-4-turbo-preview":       "gpt-4-turbo",
	"gpt-4.1":                   "gpt-4.1",
	"claude-3-5-sonnet":         "claude-3-5-sonnet-20241022",
	"claude-3.5-sonnet":         "claude-3-5-sonnet-20241022",
	"claude-3-5-sonnet-latest":  "claude-3-5-sonnet-20241022",
	"claude-3-opus":             "claude-3-opus-20240229",
	"claude-sonnet-4":           "claude-sonnet-4-20250514",
	"gemini-1.5-pro-latest":     "gemini-1.5-pro",
	"gemini-1.5-flash-latest":   "gemini-1.5-flash",
	"gemini-2.0-flash-exp":      "gemini-2.0-flash",
	"llama-3.1-70b":             "meta.llama3-1-70b-instruct-v1:0",
	"llama-3.1-8b":              "meta.llama3-1-8b-instruct-v1:0",
	"mixtral-8x7b":              "mistral.mixtral-8x7b-instruct-v0:1",
}
