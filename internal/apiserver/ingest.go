package apiserver

import (
	"context"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"manifold/internal/apierr"
	"manifold/internal/metricspipeline"
	"manifold/internal/observability"
	"manifold/internal/otelspan"
	"manifold/internal/topic"
	"manifold/internal/tracepipeline"
)

// Signal names the OTLP export kind, matching the path segment in
// "POST /otel/{project_id}/v1/{traces,metrics,logs}" (spec.md §6).
type Signal string

const (
	SignalTraces  Signal = "traces"
	SignalMetrics Signal = "metrics"
	SignalLogs    Signal = "logs"
)

// ContentTypeProtobuf and ContentTypeJSON are the two OTLP wire encodings
// spec.md §6 requires support for.
const (
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// Ingest publishes OTLP export requests onto the configured topics:
// traces go to the at-least-once stream topic, metrics and logs go to
// fire-and-forget broadcast topics (spec.md §2 "traces use *stream* topic;
// metrics/logs use *broadcast*"). IngestOTLP is the single entrypoint both
// the HTTP handler here and any future gRPC transport call through, so the
// decode/republish/content-type-echo logic lives in exactly one place
// (spec.md §6).
type Ingest struct {
	Traces  *topic.StreamTopic[tracepipeline.Batch]
	Metrics *topic.BroadcastTopic[metricspipeline.Batch]
	Logs    *topic.BroadcastTopic[[]byte]
}

// IngestOTLP decodes body as an OTLP export request for signal (protobuf
// or JSON per contentType), republishes its raw protobuf encoding onto the
// matching topic tagged with projectID, and returns an OTLP
// ExportServiceResponse encoded in the same content type as the request.
func (ing *Ingest) IngestOTLP(ctx context.Context, signal Signal, projectID, contentType string, body []byte) ([]byte, string, error) {
	if !otelspan.ValidProjectID(projectID) {
		return nil, "", apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}

	switch signal {
	case SignalTraces:
		return ing.ingestTraces(ctx, projectID, contentType, body)
	case SignalMetrics:
		return ing.ingestMetrics(ctx, projectID, contentType, body)
	case SignalLogs:
		return ing.ingestLogs(ctx, projectID, contentType, body)
	default:
		return nil, "", apierr.Validation("INVALID_SIGNAL", "signal must be one of traces, metrics, logs")
	}
}

func (ing *Ingest) ingestTraces(ctx context.Context, projectID, contentType string, body []byte) ([]byte, string, error) {
	var req collectortracepb.ExportTraceServiceRequest
	if err := unmarshalOTLP(ctx, contentType, body, &req); err != nil {
		return nil, "", err
	}
	payload, err := proto.Marshal(&req)
	if err != nil {
		return nil, "", apierr.Serialization(false, err)
	}
	if _, err := ing.Traces.Publish(ctx, tracepipeline.Batch{ProjectID: projectID, Payload: payload}); err != nil {
		return nil, "", translatePublishErr(err)
	}
	return marshalOTLP(contentType, &collectortracepb.ExportTraceServiceResponse{})
}

func (ing *Ingest) ingestMetrics(ctx context.Context, projectID, contentType string, body []byte) ([]byte, string, error) {
	var req collectormetricspb.ExportMetricsServiceRequest
	if err := unmarshalOTLP(ctx, contentType, body, &req); err != nil {
		return nil, "", err
	}
	payload, err := proto.Marshal(&req)
	if err != nil {
		return nil, "", apierr.Serialization(false, err)
	}
	ing.Metrics.Publish(metricspipeline.Batch{ProjectID: projectID, Payload: payload})
	return marshalOTLP(contentType, &collectormetricspb.ExportMetricsServiceResponse{})
}

func (ing *Ingest) ingestLogs(ctx context.Context, projectID, contentType string, body []byte) ([]byte, string, error) {
	var req collectorlogspb.ExportLogsServiceRequest
	if err := unmarshalOTLP(ctx, contentType, body, &req); err != nil {
		return nil, "", err
	}
	payload, err := proto.Marshal(&req)
	if err != nil {
		return nil, "", apierr.Serialization(false, err)
	}
	ing.Logs.Publish(payload)
	return marshalOTLP(contentType, &collectorlogspb.ExportLogsServiceResponse{})
}

// unmarshalOTLP decodes body as msg per contentType. On a JSON decode
// failure it logs the offending payload, with sensitive-looking keys
// (tokens, api keys, passwords) redacted, so malformed export requests are
// diagnosable without leaking credentials into logs.
func unmarshalOTLP(ctx context.Context, contentType string, body []byte, msg proto.Message) error {
	var err error
	if contentType == ContentTypeJSON {
		err = protojson.Unmarshal(body, msg)
		if err != nil {
			observability.LoggerWithTrace(ctx).Warn().Err(err).
				RawJSON("payload", observability.RedactJSON(body)).
				Msg("otlp_json_decode_failed")
		}
	} else {
		err = proto.Unmarshal(body, msg)
	}
	if err != nil {
		return apierr.Serialization(true, err)
	}
	return nil
}

func marshalOTLP(contentType string, msg proto.Message) ([]byte, string, error) {
	if contentType == ContentTypeJSON {
		b, err := protojson.Marshal(msg)
		if err != nil {
			return nil, "", apierr.Serialization(false, err)
		}
		return b, ContentTypeJSON, nil
	}
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, "", apierr.Serialization(false, err)
	}
	return b, ContentTypeProtobuf, nil
}

// translatePublishErr maps topic.ErrBufferFull onto the 503 + Retry-After
// contract spec.md §4.2/§6 describes for stream-topic backpressure.
func translatePublishErr(err error) error {
	if err == topic.ErrBufferFull {
		return apierr.Backpressure("INGEST_BACKPRESSURE", "trace ingest buffer is full", BackpressureRetryAfterSecs)
	}
	return apierr.Backend(apierr.OriginTopic, err)
}

// BackpressureRetryAfterSecs is the Retry-After value sent with a 503
// backpressure response (spec.md §6).
const BackpressureRetryAfterSecs = 5
