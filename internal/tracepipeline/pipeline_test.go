package tracepipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"manifold/internal/fileblob"
	"manifold/internal/objectstore"
	"manifold/internal/otelspan"
	"manifold/internal/pricing"
	"manifold/internal/repository"
	"manifold/internal/topic"
)

type fakeSpanRepository struct {
	mu    sync.Mutex
	spans []otelspan.Span
}

func (f *fakeSpanRepository) InsertSpans(_ context.Context, spans []otelspan.Span) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans = append(f.spans, spans...)
	return nil
}

func (f *fakeSpanRepository) GetSpan(context.Context, string, string) (otelspan.Span, error) {
	return otelspan.Span{}, repository.ErrNotFound
}

func (f *fakeSpanRepository) ListSpansByTrace(context.Context, string, string) ([]otelspan.Span, error) {
	return nil, nil
}

func (f *fakeSpanRepository) ListTraces(context.Context, repository.SpanFilter) ([]otelspan.Span, error) {
	return nil, nil
}

func (f *fakeSpanRepository) ListSpans(context.Context, repository.SpanFilter) ([]otelspan.Span, error) {
	return nil, nil
}

func (f *fakeSpanRepository) EvictOldestSpans(context.Context, string, int) (int64, error) {
	return 0, nil
}

func (f *fakeSpanRepository) DeleteTrace(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (f *fakeSpanRepository) snapshot() []otelspan.Span {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]otelspan.Span, len(f.spans))
	copy(out, f.spans)
	return out
}

func buildTestRequest() *collectortracepb.ExportTraceServiceRequest {
	traceID := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	rootSpanID := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	childSpanID := []byte{2, 2, 2, 2, 2, 2, 2, 2}

	root := &tracepb.Span{
		TraceId: traceID,
		SpanId:  rootSpanID,
		Name:    "agent run",
		Attributes: []*commonpb.KeyValue{
			strAttr("gen_ai.agent.name", "support-bot"),
		},
		StartTimeUnixNano: 1_000_000_000,
		EndTimeUnixNano:   3_000_000_000,
	}
	child := &tracepb.Span{
		TraceId:      traceID,
		SpanId:       childSpanID,
		ParentSpanId: rootSpanID,
		Name:         "chat gpt-4o",
		Attributes: []*commonpb.KeyValue{
			strAttr("gen_ai.operation.name", "chat"),
			strAttr("gen_ai.system", "openai"),
			strAttr("gen_ai.request.model", "gpt-4o"),
			intAttrKV("gen_ai.usage.input_tokens", 10),
			intAttrKV("gen_ai.usage.output_tokens", 5),
			strAttr("gen_ai.prompt.0.role", "user"),
			strAttr("gen_ai.prompt.0.content", "hello"),
			strAttr("gen_ai.completion.0.role", "assistant"),
			strAttr("gen_ai.completion.0.content", "hi there"),
		},
		StartTimeUnixNano: 1_500_000_000,
		EndTimeUnixNano:   2_500_000_000,
	}

	return &collectortracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				ScopeSpans: []*tracepb.ScopeSpans{
					{Spans: []*tracepb.Span{root, child}},
				},
			},
		},
	}
}

func TestPipelineProcessesBatchIntoPersistedSpans(t *testing.T) {
	ctx := context.Background()
	backend := topic.NewMemoryBackend(topic.DefaultChannelCapacity)
	registry := topic.NewRegistry(backend)
	st, err := topic.RegisterStream[Batch](registry, "traces.test", 0)
	require.NoError(t, err)

	req := buildTestRequest()
	payload, err := proto.Marshal(req)
	require.NoError(t, err)

	_, err = st.Publish(ctx, Batch{ProjectID: "proj1", Payload: payload})
	require.NoError(t, err)

	spanRepo := &fakeSpanRepository{}
	store := fileblob.New(objectstore.NewMemoryStore())
	prices := pricing.New()
	prices.Replace(map[string]pricing.ModelPricing{
		"gpt-4o": {InputPerToken: 0.000005, OutputPerToken: 0.000015},
	}, nil)

	pipeline := NewPipeline(st.Subscribe("worker"), spanRepo, &fakeFileRepository{}, store, prices, nil)

	envs, err := pipeline.sub.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, envs, 1)

	pipeline.process(ctx, envs[0])

	spans := spanRepo.snapshot()
	require.Len(t, spans, 2)

	var root, child *otelspan.Span
	for i := range spans {
		if spans[i].ParentSpanID == "" {
			root = &spans[i]
		} else {
			child = &spans[i]
		}
	}
	require.NotNil(t, root)
	require.NotNil(t, child)

	assert.Equal(t, otelspan.ObservationAgent, root.Observation)
	assert.Equal(t, otelspan.ObservationGeneration, child.Observation)
	assert.Equal(t, "openai", child.Provider)
	assert.Equal(t, "gpt-4o", child.Model)
	require.Len(t, child.Messages, 2)
	assert.False(t, child.CostMicros.IsZero())

	// acked, so a second read returns nothing
	again, err := pipeline.sub.Read(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPersistWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	p := &Pipeline{maxAttempts: 2, baseDelay: time.Millisecond}
	p.spans = failingSpanRepo{}

	err := p.persistWithRetry(ctx, []otelspan.Span{{TraceID: "t", SpanID: "s"}})
	assert.Error(t, err)
}

type failingSpanRepo struct{}

func (failingSpanRepo) InsertSpans(context.Context, []otelspan.Span) error {
	return assert.AnError
}

func (failingSpanRepo) GetSpan(context.Context, string, string) (otelspan.Span, error) {
	return otelspan.Span{}, repository.ErrNotFound
}

func (failingSpanRepo) ListSpansByTrace(context.Context, string, string) ([]otelspan.Span, error) {
	return nil, nil
}

func (failingSpanRepo) ListTraces(context.Context, repository.SpanFilter) ([]otelspan.Span, error) {
	return nil, nil
}

func (failingSpanRepo) ListSpans(context.Context, repository.SpanFilter) ([]otelspan.Span, error) {
	return nil, nil
}

func (failingSpanRepo) EvictOldestSpans(context.Context, string, int) (int64, error) {
	return 0, nil
}

func (failingSpanRepo) DeleteTrace(context.Context, string, string) (int64, error) {
	return 0, nil
}
