package apiserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"manifold/internal/metricspipeline"
	"manifold/internal/topic"
	"manifold/internal/tracepipeline"
)

func newTestIngest(t *testing.T) *Ingest {
	t.Helper()
	backend := topic.NewMemoryBackend(topic.DefaultChannelCapacity)
	registry := topic.NewRegistry(backend)

	traces, err := topic.RegisterStream[tracepipeline.Batch](registry, "otlp.traces", 30)
	require.NoError(t, err)
	metrics, err := topic.RegisterBroadcast[metricspipeline.Batch](registry, "otlp.metrics", topic.DefaultChannelCapacity)
	require.NoError(t, err)
	logs, err := topic.RegisterBroadcast[[]byte](registry, "otlp.logs", topic.DefaultChannelCapacity)
	require.NoError(t, err)

	return &Ingest{Traces: traces, Metrics: metrics, Logs: logs}
}

func TestIngestOTLPPublishesTracesToStreamTopic(t *testing.T) {
	ing := newTestIngest(t)
	sub := ing.Traces.Subscribe("test-consumer")

	req := &collectortracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{}},
	}
	body, err := proto.Marshal(req)
	require.NoError(t, err)

	respBody, respContentType, err := ing.IngestOTLP(context.Background(), SignalTraces, "proj1", ContentTypeProtobuf, body)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeProtobuf, respContentType)

	var resp collectortracepb.ExportTraceServiceResponse
	require.NoError(t, proto.Unmarshal(respBody, &resp))

	msgs, err := sub.Read(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "proj1", msgs[0].Value.ProjectID)
}

func TestIngestOTLPRejectsInvalidProjectID(t *testing.T) {
	ing := newTestIngest(t)
	_, _, err := ing.IngestOTLP(context.Background(), SignalTraces, "not a valid id!", ContentTypeProtobuf, nil)
	require.Error(t, err)
}

func TestIngestOTLPRejectsUnknownSignal(t *testing.T) {
	ing := newTestIngest(t)
	_, _, err := ing.IngestOTLP(context.Background(), Signal("bogus"), "proj1", ContentTypeProtobuf, nil)
	require.Error(t, err)
}

func TestIngestOTLPEchoesJSONContentType(t *testing.T) {
	ing := newTestIngest(t)
	req := &collectortracepb.ExportTraceServiceRequest{}
	body, err := protojson.Marshal(req)
	require.NoError(t, err)

	_, respContentType, err := ing.IngestOTLP(context.Background(), SignalTraces, "proj1", ContentTypeJSON, body)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJSON, respContentType)
}
