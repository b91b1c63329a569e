package metricspipeline

import (
	"context"
	"time"

	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/protobuf/proto"

	"manifold/internal/observability"
	"manifold/internal/repository"
	"manifold/internal/topic"
)

// DefaultMaxAttempts and DefaultBaseDelay mirror internal/tracepipeline's
// persist retry policy (spec.md §4.8: "same retry policy as trace persist").
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 100 * time.Millisecond
)

// Batch is what producers publish to the metrics BroadcastTopic: a raw
// protobuf-encoded OTLP export request plus its owning project.
type Batch struct {
	ProjectID string
	Payload   []byte
}

// Pipeline flattens and persists every metric data point delivered on
// its subscription. Unlike the trace pipeline it reads from a
// BroadcastTopic (fire-and-forget, no ack), so its retry policy governs
// only the InsertMetrics call itself: a data point that can't be
// persisted after DefaultMaxAttempts is logged and dropped, there being
// no redelivery mechanism to fall back on.
type Pipeline struct {
	sub     *topic.BroadcastSubscription[Batch]
	metrics repository.MetricRepository

	maxAttempts int
	baseDelay   time.Duration
}

// NewPipeline wires a Pipeline over topic.
func NewPipeline(sub *topic.BroadcastSubscription[Batch], metrics repository.MetricRepository) *Pipeline {
	return &Pipeline{
		sub:         sub,
		metrics:     metrics,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
}

// Run processes batches until ctx is canceled or Recv returns a non-lag
// error.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		batch, err := p.sub.Recv(ctx)
		if err != nil {
			if _, lagged := err.(*topic.LaggedError); lagged {
				observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("metricspipeline_lagged")
				continue
			}
			return err
		}
		p.process(ctx, batch)
	}
}

func (p *Pipeline) process(ctx context.Context, b Batch) {
	var req collectormetricspb.ExportMetricsServiceRequest
	if err := proto.Unmarshal(b.Payload, &req); err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("metricspipeline_decode")
		return
	}

	var rows []repository.NormalizedMetric
	for _, rm := range req.GetResourceMetrics() {
		for _, sm := range rm.GetScopeMetrics() {
			for _, m := range sm.GetMetrics() {
				rows = append(rows, flattenMetric(b.ProjectID, m)...)
			}
		}
	}
	if len(rows) == 0 {
		return
	}

	if err := p.persistWithRetry(ctx, rows); err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Int("rows", len(rows)).Msg("metricspipeline_persist_exhausted")
	}
}

func (p *Pipeline) persistWithRetry(ctx context.Context, rows []repository.NormalizedMetric) error {
	delay := p.baseDelay
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = p.metrics.InsertMetrics(ctx, rows); err == nil {
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
