package otelspan

// BlockKind discriminates ContentBlock variants.
type BlockKind string

const (
	BlockText       BlockKind = "Text"
	BlockImage      BlockKind = "Image"
	BlockAudio      BlockKind = "Audio"
	BlockVideo      BlockKind = "Video"
	BlockDocument   BlockKind = "Document"
	BlockToolUse    BlockKind = "ToolUse"
	BlockToolResult BlockKind = "ToolResult"
	BlockThinking   BlockKind = "Thinking"
	BlockRefusal    BlockKind = "Refusal"
	BlockDataRef    BlockKind = "DataRef"
)

// ContentBlock is one element of a ChatMessage's content list. Only the
// fields relevant to Kind are populated; this mirrors the Rust source's
// tagged-enum ContentBlock with a flat Go struct (idiomatic for a type
// that is marshaled to/from JSON at the repository boundary).
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// Text / Thinking / Refusal
	Text string `json:"text,omitempty"`

	// Image / Audio / Video / Document / DataRef
	MediaType string `json:"media_type,omitempty"`
	URI       string `json:"uri,omitempty"` // raw bytes are rewritten to `#!B64!#[mime]::hash` by file extraction
	Data      []byte `json:"-"`             // only populated transiently during extraction, never persisted

	// ToolUse
	ToolUseID   string `json:"tool_use_id,omitempty"`
	ToolName    string `json:"tool_name,omitempty"`
	ToolArgJSON string `json:"tool_args,omitempty"`

	// ToolResult
	ToolResultForID string `json:"tool_result_for,omitempty"` // references a ToolUse.ToolUseID
	IsError         bool   `json:"is_error,omitempty"`
	ResultJSON      string `json:"result,omitempty"`
}

// ChatMessage is the unified SideML message shape: a role plus ordered
// content blocks, with optional finish metadata.
type ChatMessage struct {
	Role         ChatRole       `json:"role"`
	Blocks       []ContentBlock `json:"blocks"`
	FinishReason *FinishReason  `json:"finish_reason,omitempty"`
	Model        string         `json:"model,omitempty"`
}

// RawMessage is the pipeline-intermediate form produced by extraction,
// before SideML normalization. Source and BirthTime are provenance used
// by the feed dedup/history algorithm (internal/feed).
type RawMessage struct {
	Role         ChatRole
	Content      []ContentBlock
	FinishReason *FinishReason
	Model        string
	Source       MessageSource
	BirthTime    int64 // microseconds since epoch; the earliest event_time observed for this occurrence

	// MessageIndex/EntryIndex preserve source ordering for tie-breaks when
	// birth times coincide (spec.md §4.4 ordering rule).
	MessageIndex int
	EntryIndex   int

	// IsOutput marks a block produced BY the owning span (assistant
	// text/tool_use from events classified as GENAI_OUTPUT_EVENTS, choice
	// events, or output attributes). Output blocks are protected from
	// history marking and use the span's end time as their timestamp.
	IsOutput bool

	// SpanTraceID/SpanID/ParentSpanID/SpanStart/SpanEnd/Observation/IsRootSpan
	// identify the owning span so the feed pipeline can apply per-span
	// history rules (timestamp-based, accumulator-span, tool-span, etc).
	SpanTraceID  string
	SpanID       string
	ParentSpanID string
	SpanStart    int64
	SpanEnd      int64
	Observation  ObservationType
	IsRootSpan   bool
}
