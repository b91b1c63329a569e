package tracepipeline

import (
	"context"
	"encoding/hex"
	"time"

	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"manifold/internal/feed"
	"manifold/internal/fileblob"
	"manifold/internal/observability"
	"manifold/internal/otelspan"
	"manifold/internal/pricing"
	"manifold/internal/repository"
	"manifold/internal/topic"
)

// Batch is what producers publish to the traces StreamTopic: the raw
// protobuf-encoded OTLP export request plus the project it was ingested
// under (the HTTP/gRPC boundary resolves the project from the request
// path or API key before publishing, so the pipeline never does auth).
type Batch struct {
	ProjectID string
	Payload   []byte
}

// Pipeline runs Extract -> Normalize -> Enrich -> Persist over every
// batch delivered by its subscription, publishing persisted spans to a
// broadcast topic for SSE fan-out (spec.md §4.3, §6).
type Pipeline struct {
	sub        *topic.StreamSubscription[Batch]
	spans      repository.SpanRepository
	files      *fileExtractor
	prices     *pricing.Table
	broadcast  *topic.BroadcastTopic[otelspan.Span]
	classifier AttributeExtractor
	extractor  MessageExtractor

	maxAttempts int
	baseDelay   time.Duration
	readBatch   int
}

// NewPipeline wires a Pipeline from its dependencies. broadcast may be
// nil if nothing consumes live span updates.
func NewPipeline(
	sub *topic.StreamSubscription[Batch],
	spans repository.SpanRepository,
	files repository.FileRepository,
	store *fileblob.Store,
	prices *pricing.Table,
	broadcast *topic.BroadcastTopic[otelspan.Span],
) *Pipeline {
	return &Pipeline{
		sub:         sub,
		spans:       spans,
		files:       &fileExtractor{store: store, files: files},
		prices:      prices,
		broadcast:   broadcast,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		readBatch:   32,
	}
}

// Run processes batches until ctx is canceled. A persist failure is
// retried with exponential backoff up to maxAttempts; a batch that still
// fails is logged and acked anyway rather than blocking the topic
// forever on a poison message (spec.md §4.3 persist policy).
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		envs, err := p.sub.Read(ctx, p.readBatch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.LoggerWithTrace(ctx).Error().Err(err).Msg("tracepipeline_read")
			continue
		}
		if len(envs) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.baseDelay):
			}
			continue
		}

		for _, env := range envs {
			p.process(ctx, env)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, env topic.StreamEnvelope[Batch]) {
	spans, err := p.buildSpans(ctx, env.Value)
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("tracepipeline_extract")
		_ = p.sub.Ack(ctx, env.ID)
		return
	}

	if err := p.persistWithRetry(ctx, spans); err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Int("attempts", p.maxAttempts).Int("spans", len(spans)).
			Msg("tracepipeline_persist_exhausted")
	}
	if err := p.sub.Ack(ctx, env.ID); err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("tracepipeline_ack")
	}

	if p.broadcast != nil {
		for _, s := range spans {
			p.broadcast.Publish(s)
		}
	}
}

// buildSpans runs Extract, per-trace feed dedup, Enrich, and file
// extraction over one OTLP export request, returning every span ready
// for persistence.
func (p *Pipeline) buildSpans(ctx context.Context, b Batch) ([]otelspan.Span, error) {
	var req collectortracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(b.Payload, &req); err != nil {
		return nil, err
	}

	type pending struct {
		span       *tracepb.Span
		traceID    string
		spanID     string
		classified Classified
	}

	byTrace := map[string][]otelspan.RawMessage{}
	var all []pending

	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				traceID := hex.EncodeToString(span.GetTraceId())
				spanID := hex.EncodeToString(span.GetSpanId())
				parentSpanID := hex.EncodeToString(span.GetParentSpanId())

				classified := p.classifier.Classify(span)
				sc := spanContext{
					traceID:      traceID,
					spanID:       spanID,
					parentSpanID: parentSpanID,
					startUs:      int64(span.GetStartTimeUnixNano()) / 1000,
					endUs:        int64(span.GetEndTimeUnixNano()) / 1000,
					observation:  classified.Observation,
					isRoot:       parentSpanID == "",
					provider:     classified.Provider,
					model:        classified.Model,
				}
				raw := p.extractor.Extract(span, sc)
				byTrace[traceID] = append(byTrace[traceID], raw...)

				all = append(all, pending{span: span, traceID: traceID, spanID: spanID, classified: classified})
			}
		}
	}

	deduped := make(map[string][]otelspan.RawMessage, len(byTrace))
	for traceID, msgs := range byTrace {
		deduped[traceID] = feed.Timeline(msgs)
	}

	bySpan := map[string][]otelspan.RawMessage{}
	for _, msgs := range deduped {
		for _, m := range msgs {
			bySpan[m.SpanID] = append(bySpan[m.SpanID], m)
		}
	}

	en := &enricher{prices: p.prices}
	out := make([]otelspan.Span, 0, len(all))
	for _, pnd := range all {
		msgs := bySpan[pnd.spanID]
		if err := p.files.extract(ctx, b.ProjectID, msgs); err != nil {
			observability.LoggerWithTrace(ctx).Warn().Err(err).Str("span_id", pnd.spanID).Msg("tracepipeline_file_extract")
		}
		enriched := en.enrich(pnd.classified, msgs)

		parentSpanID := hex.EncodeToString(pnd.span.GetParentSpanId())
		out = append(out, otelspan.Span{
			TraceID:       pnd.traceID,
			SpanID:        pnd.spanID,
			ParentSpanID:  parentSpanID,
			ProjectID:     b.ProjectID,
			Name:          pnd.span.GetName(),
			StartUs:       int64(pnd.span.GetStartTimeUnixNano()) / 1000,
			EndUs:         int64(pnd.span.GetEndTimeUnixNano()) / 1000,
			Status:        pnd.classified.Status,
			Observation:   pnd.classified.Observation,
			Category:      pnd.classified.Category,
			Framework:     pnd.classified.Framework,
			Provider:      pnd.classified.Provider,
			Model:         pnd.classified.Model,
			Tokens:        pnd.classified.Tokens,
			CostMicros:    enriched.CostMicros,
			Exception:     pnd.classified.Exception,
			Messages:      enriched.Messages,
			ToolDefs:      pnd.classified.ToolDefs,
			ToolNames:     enriched.ToolNames,
			InputPreview:  enriched.InputPreview,
			OutputPreview: enriched.OutputPreview,
			IngestedAt:    time.Now().UTC(),
		})
	}

	return out, nil
}

func (p *Pipeline) persistWithRetry(ctx context.Context, spans []otelspan.Span) error {
	if len(spans) == 0 {
		return nil
	}
	delay := p.baseDelay
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = p.spans.InsertSpans(ctx, spans); err == nil {
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
