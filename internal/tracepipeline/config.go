package tracepipeline

import "time"

// PreviewMaxLength bounds the input/output preview strings computed
// during Enrich (spec.md §4.3).
const PreviewMaxLength = 2000

// FilesMaxConcurrentFinalization bounds how many inline data blocks are
// hashed and finalized into the file store at once per batch.
const FilesMaxConcurrentFinalization = 4

// DefaultMaxAttempts and DefaultBaseDelay govern the persist stage's
// exponential backoff: delay doubles each attempt starting from
// DefaultBaseDelay, capped at DefaultMaxAttempts tries before the batch
// is logged and acked anyway (spec.md §4.3 persist policy).
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay    = 100 * time.Millisecond
)

// genAIOutputEvents are event names whose message content was produced
// BY the owning span, not received as input — protected from history
// marking and timestamped at span end (spec.md §4.4).
var genAIOutputEvents = map[string]bool{
	"gen_ai.assistant.message": true,
	"gen_ai.choice":            true,
}

// minInlineDataBytes is the size threshold above which a base64 data
// block is extracted to the file store rather than left inline
// (spec.md §4.3: "base64 data blocks >= 1 KiB").
const minInlineDataBytes = 1024
