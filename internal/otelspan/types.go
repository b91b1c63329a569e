// Package otelspan defines the normalized data model shared by every
// analytics backend: spans, raw (pre-normalization) messages, content
// blocks, and file references. These types carry semantic meaning, not
// wire-format shape — OTLP protobufs are converted into them by
// internal/tracepipeline and never leak past the extraction stage.
package otelspan

import (
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// ObservationType classifies a span by the kind of GenAI operation it represents.
type ObservationType string

const (
	ObservationGeneration ObservationType = "Generation"
	ObservationTool       ObservationType = "Tool"
	ObservationAgent      ObservationType = "Agent"
	ObservationEmbedding  ObservationType = "Embedding"
	ObservationChain      ObservationType = "Chain"
	ObservationRetriever  ObservationType = "Retriever"
	ObservationSpan       ObservationType = "Span"
)

// SpanCategory is a coarser grouping used for filter-options and stats rollups.
type SpanCategory string

// SpanStatus is the OTel-derived status of a span.
type SpanStatus string

const (
	StatusOK    SpanStatus = "OK"
	StatusError SpanStatus = "ERROR"
)

// ChatRole is the role of a chat message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleTool      ChatRole = "tool"
	RoleDeveloper ChatRole = "developer"
)

// FinishReason is why a generation stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "Stop"
	FinishLength        FinishReason = "Length"
	FinishContentFilter FinishReason = "ContentFilter"
	FinishToolUse       FinishReason = "ToolUse"
	FinishError         FinishReason = "Error"
)

// MessageSource records where a RawMessage was extracted from, in
// descending priority order (see internal/tracepipeline extraction).
type MessageSource string

const (
	SourceEventAttr         MessageSource = "EventAttr"
	SourceInputAttr         MessageSource = "InputAttr"
	SourceOutputAttr        MessageSource = "OutputAttr"
	SourceRawIO             MessageSource = "RawIO"
	SourceFrameworkSpecific MessageSource = "FrameworkSpecific"
)

// ExceptionInfo is the (type, message, stacktrace) triple OTel attaches to
// a failed span.
type ExceptionInfo struct {
	Type       string `json:"type,omitempty"`
	Message    string `json:"message,omitempty"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

// TokenUsage holds token counters for a single observation.
type TokenUsage struct {
	Input     int64 `json:"input,omitempty"`
	Output    int64 `json:"output,omitempty"`
	Total     int64 `json:"total,omitempty"`
	Cached    int64 `json:"cached,omitempty"`
	Reasoning int64 `json:"reasoning,omitempty"`
}

// Span is the analytics row: the normalized, persisted representation of
// one OTel span from a GenAI-shaped trace.
type Span struct {
	TraceID       string
	SpanID        string
	ParentSpanID  string
	ProjectID     string
	SessionID     string
	Name          string
	StartUs       int64 // microseconds since epoch
	EndUs         int64
	Status        SpanStatus
	Observation   ObservationType
	Category      SpanCategory
	Framework     string
	Provider      string
	Model         string
	Tokens        TokenUsage
	CostMicros    decimal.Decimal // scale 10^-6
	Exception     ExceptionInfo
	Messages      []ChatMessage
	ToolDefs      []ToolDefinition
	ToolNames     []string
	Tags          map[string]string
	InputPreview  string
	OutputPreview string
	IngestedAt    time.Time
}

// ToolDefinition is a tool schema advertised by a span (pre-normalization
// it is kept as raw JSON; SideML consumers decode the parts they need).
type ToolDefinition struct {
	Name        string
	Description string
	ParamsJSON  string
	Source      MessageSource
}

var (
	// ErrInvalidProjectID is returned when a caller-supplied project id
	// fails the `[A-Za-z0-9_-]{1,64}` pattern.
	ErrInvalidProjectID = errors.New("invalid project id")
	// ErrInvalidSpan is returned by Span.Validate for structural violations.
	ErrInvalidSpan = errors.New("invalid span")
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidProjectID reports whether id matches the project id grammar.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Validate checks the span invariants from the data model: end >= start,
// non-empty bounded ids, and a well-formed project id.
func (s Span) Validate() error {
	if s.TraceID == "" || len(s.TraceID) > 256 {
		return errors.Join(ErrInvalidSpan, errors.New("trace_id must be 1-256 bytes"))
	}
	if s.SpanID == "" || len(s.SpanID) > 256 {
		return errors.Join(ErrInvalidSpan, errors.New("span_id must be 1-256 bytes"))
	}
	if !ValidProjectID(s.ProjectID) {
		return errors.Join(ErrInvalidSpan, ErrInvalidProjectID)
	}
	if s.EndUs < s.StartUs {
		return errors.Join(ErrInvalidSpan, errors.New("end_us must be >= start_us"))
	}
	return nil
}

// DurationMillis returns the span duration derived from start/end microseconds.
func (s Span) DurationMillis() int64 {
	return (s.EndUs - s.StartUs) / 1000
}
