package metricspipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"google.golang.org/protobuf/proto"

	"manifold/internal/repository"
)

type fakeMetricRepository struct {
	mu   sync.Mutex
	rows []repository.NormalizedMetric
}

func (f *fakeMetricRepository) InsertMetrics(_ context.Context, rows []repository.NormalizedMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeMetricRepository) snapshot() []repository.NormalizedMetric {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.NormalizedMetric, len(f.rows))
	copy(out, f.rows)
	return out
}

func TestPipelineProcessFlattensAndPersists(t *testing.T) {
	req := &collectormetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{
			{ScopeMetrics: []*metricspb.ScopeMetrics{
				{Metrics: []*metricspb.Metric{
					{Name: "queue_depth", Data: &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
						DataPoints: []*metricspb.NumberDataPoint{
							{Value: &metricspb.NumberDataPoint_AsDouble{AsDouble: 3}},
						},
					}}},
				}},
			}},
		},
	}
	payload, err := proto.Marshal(req)
	require.NoError(t, err)

	repo := &fakeMetricRepository{}
	p := NewPipeline(nil, repo)

	p.process(context.Background(), Batch{ProjectID: "proj1", Payload: payload})

	rows := repo.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "proj1", rows[0].ProjectID)
	assert.Equal(t, "queue_depth", rows[0].MetricName)
	assert.Equal(t, float64(3), rows[0].Value)
}

func TestPipelineProcessSkipsEmptyRequest(t *testing.T) {
	payload, err := proto.Marshal(&collectormetricspb.ExportMetricsServiceRequest{})
	require.NoError(t, err)

	repo := &fakeMetricRepository{}
	p := NewPipeline(nil, repo)
	p.process(context.Background(), Batch{ProjectID: "proj1", Payload: payload})

	assert.Empty(t, repo.snapshot())
}

type failingMetricRepository struct{}

func (failingMetricRepository) InsertMetrics(context.Context, []repository.NormalizedMetric) error {
	return assert.AnError
}

func TestPersistWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	p := &Pipeline{metrics: failingMetricRepository{}, maxAttempts: 2, baseDelay: 0}
	err := p.persistWithRetry(context.Background(), []repository.NormalizedMetric{{ProjectID: "p"}})
	assert.Error(t, err)
}
