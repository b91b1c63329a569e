// Package apiserver implements the query API surface of spec.md §6: list,
// detail, feed, and stats handlers over internal/repository, plus the
// shared OTLP ingestion entrypoint. Handlers here are plain functions
// taking a context and typed arguments, not tied to any one transport, so
// the HTTP router in this package and a future gRPC surface can both call
// through them (spec.md §6's explicit requirement for IngestOTLP, extended
// here to the query side for the same reason).
package apiserver

import (
	"context"
	"sort"

	"manifold/internal/apierr"
	"manifold/internal/feed"
	"manifold/internal/otelspan"
	"manifold/internal/repository"
)

// Queries is the read surface over a SpanRepository, constructing
// feed-processed views on top of the raw analytics rows.
type Queries struct {
	Spans repository.SpanRepository
}

// NewQueries wires a Queries over a span repository.
func NewQueries(spans repository.SpanRepository) *Queries {
	return &Queries{Spans: spans}
}

// ListTraces returns one representative span per trace matching filter,
// newest first (spec.md "GET /projects/{pid}/traces").
func (q *Queries) ListTraces(ctx context.Context, filter repository.SpanFilter) ([]otelspan.Span, error) {
	if !otelspan.ValidProjectID(filter.ProjectID) {
		return nil, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListTraces(ctx, filter)
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	return spans, nil
}

// ListSpans returns every span matching filter, not just trace roots
// (spec.md "GET /projects/{pid}/spans").
func (q *Queries) ListSpans(ctx context.Context, filter repository.SpanFilter) ([]otelspan.Span, error) {
	if !otelspan.ValidProjectID(filter.ProjectID) {
		return nil, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListSpans(ctx, filter)
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	return spans, nil
}

// GetTrace returns the root span of a trace (spec.md "GET
// /projects/{pid}/traces/{tid}"). When no span in the trace lacks a
// parent (the root was evicted by retention, or the batch that carried it
// never arrived), the earliest-starting span stands in for it.
func (q *Queries) GetTrace(ctx context.Context, projectID, traceID string) (otelspan.Span, error) {
	spans, err := q.spansOf(ctx, projectID, traceID)
	if err != nil {
		return otelspan.Span{}, err
	}
	root := spans[0]
	for _, s := range spans {
		if s.ParentSpanID == "" {
			root = s
			break
		}
		if s.StartUs < root.StartUs {
			root = s
		}
	}
	return root, nil
}

// TraceSpans returns every span of a trace (spec.md "GET
// /projects/{pid}/traces/{tid}/spans").
func (q *Queries) TraceSpans(ctx context.Context, projectID, traceID string) ([]otelspan.Span, error) {
	return q.spansOf(ctx, projectID, traceID)
}

// GetSpan returns a single span by (trace_id, span_id) (spec.md "GET
// /projects/{pid}/traces/{tid}/spans/{sid}").
func (q *Queries) GetSpan(ctx context.Context, traceID, spanID string) (otelspan.Span, error) {
	span, err := q.Spans.GetSpan(ctx, traceID, spanID)
	if err != nil {
		if err == repository.ErrNotFound {
			return otelspan.Span{}, apierr.NotFound("SPAN_NOT_FOUND", "span does not exist")
		}
		return otelspan.Span{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	return span, nil
}

// TraceMessages reruns the feed dedup/history/ordering pipeline across
// every span of a trace and returns the resulting linear conversation
// (spec.md §5 "feed processing sorts by birth_time at query time", §4.4).
// Spans persist their own already-deduped-at-ingest message list (the
// trace pipeline can only dedup within a single OTLP batch); query time is
// where a trace whose spans arrived across more than one batch gets a
// single authoritative timeline.
func (q *Queries) TraceMessages(ctx context.Context, projectID, traceID string) ([]otelspan.ChatMessage, error) {
	spans, err := q.spansOf(ctx, projectID, traceID)
	if err != nil {
		return nil, err
	}
	return feedTimelineAcrossSpans(spans), nil
}

// SpanMessages reruns the same feed pipeline scoped to one span's own
// message list (spec.md "GET
// /projects/{pid}/traces/{tid}/spans/{sid}/messages").
func (q *Queries) SpanMessages(ctx context.Context, traceID, spanID string) ([]otelspan.ChatMessage, error) {
	span, err := q.GetSpan(ctx, traceID, spanID)
	if err != nil {
		return nil, err
	}
	return feedTimelineAcrossSpans([]otelspan.Span{span}), nil
}

// DeleteTrace removes every span of one trace (spec.md "DELETE
// /projects/{pid}/traces/{tid}").
func (q *Queries) DeleteTrace(ctx context.Context, projectID, traceID string) error {
	if !otelspan.ValidProjectID(projectID) {
		return apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	n, err := q.Spans.DeleteTrace(ctx, projectID, traceID)
	if err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	if n == 0 {
		return apierr.NotFound("TRACE_NOT_FOUND", "trace does not exist")
	}
	return nil
}

func (q *Queries) spansOf(ctx context.Context, projectID, traceID string) ([]otelspan.Span, error) {
	if !otelspan.ValidProjectID(projectID) {
		return nil, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListSpansByTrace(ctx, projectID, traceID)
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	if len(spans) == 0 {
		return nil, apierr.NotFound("TRACE_NOT_FOUND", "trace does not exist")
	}
	return spans, nil
}

// feedTimelineAcrossSpans reconstructs the RawMessage occurrences feed.Timeline
// expects from already-persisted spans. Persisted ChatMessages no longer
// carry the Source/BirthTime provenance the ingest-time extractor had, so
// this approximates it from what a Span row still holds: a message's birth
// time is the owning span's start for every role except assistant output
// (which used the span's end at ingest, spec.md §4.4 "OUTPUT ... uses
// span_end"), and its position in the combined per-trace list stands in
// for MessageIndex. This loses nothing the dedup identity hash depends on
// (role + normalized content + tool_use_id), which is exactly what
// content-duplicated spans need compared by.
func feedTimelineAcrossSpans(spans []otelspan.Span) []otelspan.ChatMessage {
	ordered := make([]otelspan.Span, len(spans))
	copy(ordered, spans)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartUs < ordered[j].StartUs })

	var raw []otelspan.RawMessage
	for _, s := range ordered {
		for i, m := range s.Messages {
			isOutput := m.Role == otelspan.RoleAssistant
			birth := s.StartUs
			if isOutput {
				birth = s.EndUs
			}
			raw = append(raw, otelspan.RawMessage{
				Role:         m.Role,
				Content:      m.Blocks,
				FinishReason: m.FinishReason,
				Model:        m.Model,
				Source:       otelspan.SourceRawIO,
				BirthTime:    birth,
				MessageIndex: len(raw),
				EntryIndex:   i,
				IsOutput:     isOutput,
				SpanTraceID:  s.TraceID,
				SpanID:       s.SpanID,
				ParentSpanID: s.ParentSpanID,
				SpanStart:    s.StartUs,
				SpanEnd:      s.EndUs,
				Observation:  s.Observation,
				IsRootSpan:   s.ParentSpanID == "",
			})
		}
	}

	timeline := feed.Timeline(raw)
	out := make([]otelspan.ChatMessage, 0, len(timeline))
	for _, m := range timeline {
		out = append(out, otelspan.ChatMessage{
			Role:         m.Role,
			Blocks:       m.Content,
			FinishReason: m.FinishReason,
			Model:        m.Model,
		})
	}
	return out
}
