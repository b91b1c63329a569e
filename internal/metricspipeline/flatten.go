// Package metricspipeline flattens OTLP metric points into
// repository.NormalizedMetric rows (spec.md §4.8). Unlike
// internal/tracepipeline there is no classification or SideML
// normalization step: every data point maps onto one or more rows by a
// fixed rule per metric kind.
package metricspipeline

import (
	"fmt"
	"strconv"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"

	"manifold/internal/repository"
)

// attrsOf flattens a metric data point's attributes the same way
// internal/tracepipeline's attrMap does, independently here since
// metricspipeline has no dependency on tracepipeline.
func attrsOf(kvs []*commonpb.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[kv.GetKey()] = stringifyAnyValue(kv.GetValue())
	}
	return out
}

func stringifyAnyValue(v *commonpb.AnyValue) string {
	if v == nil {
		return ""
	}
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(val.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(val.DoubleValue, 'f', -1, 64)
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(val.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return string(val.BytesValue)
	default:
		return ""
	}
}

// flattenMetric converts one OTLP Metric into zero or more normalized
// rows, dispatching on its Data oneof.
func flattenMetric(projectID string, m *metricspb.Metric) []repository.NormalizedMetric {
	switch data := m.GetData().(type) {
	case *metricspb.Metric_Gauge:
		return flattenNumberPoints(projectID, m.GetName(), "gauge", data.Gauge.GetDataPoints())
	case *metricspb.Metric_Sum:
		return flattenNumberPoints(projectID, m.GetName(), "sum", data.Sum.GetDataPoints())
	case *metricspb.Metric_Histogram:
		return flattenHistogramPoints(projectID, m.GetName(), "histogram", data.Histogram.GetDataPoints())
	case *metricspb.Metric_ExponentialHistogram:
		return flattenExponentialHistogramPoints(projectID, m.GetName(), data.ExponentialHistogram.GetDataPoints())
	case *metricspb.Metric_Summary:
		return flattenSummaryPoints(projectID, m.GetName(), data.Summary.GetDataPoints())
	default:
		return nil
	}
}

func flattenNumberPoints(projectID, name, kind string, points []*metricspb.NumberDataPoint) []repository.NormalizedMetric {
	out := make([]repository.NormalizedMetric, 0, len(points))
	for _, p := range points {
		out = append(out, repository.NormalizedMetric{
			ProjectID:   projectID,
			MetricName:  name,
			Kind:        kind,
			Value:       numberValue(p),
			Attributes:  attrsOf(p.GetAttributes()),
			TimestampUs: int64(p.GetTimeUnixNano()) / 1000,
		})
	}
	return out
}

func numberValue(p *metricspb.NumberDataPoint) float64 {
	switch v := p.GetValue().(type) {
	case *metricspb.NumberDataPoint_AsDouble:
		return v.AsDouble
	case *metricspb.NumberDataPoint_AsInt:
		return float64(v.AsInt)
	default:
		return 0
	}
}

// flattenHistogramPoints emits a count row and, when the data point
// carries one, a sum row per point: Histogram.Sum is an optional proto
// field (absent when all recorded values can be negative), so it is
// only emitted when present rather than defaulting to zero and quietly
// lying about an average.
func flattenHistogramPoints(projectID, name, kind string, points []*metricspb.HistogramDataPoint) []repository.NormalizedMetric {
	out := make([]repository.NormalizedMetric, 0, len(points)*2)
	for _, p := range points {
		attrs := attrsOf(p.GetAttributes())
		ts := int64(p.GetTimeUnixNano()) / 1000
		out = append(out, repository.NormalizedMetric{
			ProjectID: projectID, MetricName: name + ".count", Kind: kind,
			Value: float64(p.GetCount()), Attributes: attrs, TimestampUs: ts,
		})
		if p.Sum != nil {
			out = append(out, repository.NormalizedMetric{
				ProjectID: projectID, MetricName: name + ".sum", Kind: kind,
				Value: p.GetSum(), Attributes: attrs, TimestampUs: ts,
			})
		}
	}
	return out
}

// flattenExponentialHistogramPoints flattens to the same count/sum rows
// as a plain Histogram: the exponential bucket layout (scale, zero
// count, positive/negative bucket runs) has no counterpart in
// NormalizedMetric's flat schema, and spec.md does not ask for
// per-bucket persistence, only for the metric kind to be recognized and
// not dropped.
func flattenExponentialHistogramPoints(projectID, name string, points []*metricspb.ExponentialHistogramDataPoint) []repository.NormalizedMetric {
	out := make([]repository.NormalizedMetric, 0, len(points)*2)
	for _, p := range points {
		attrs := attrsOf(p.GetAttributes())
		ts := int64(p.GetTimeUnixNano()) / 1000
		out = append(out, repository.NormalizedMetric{
			ProjectID: projectID, MetricName: name + ".count", Kind: "exponential_histogram",
			Value: float64(p.GetCount()), Attributes: attrs, TimestampUs: ts,
		})
		if p.Sum != nil {
			out = append(out, repository.NormalizedMetric{
				ProjectID: projectID, MetricName: name + ".sum", Kind: "exponential_histogram",
				Value: p.GetSum(), Attributes: attrs, TimestampUs: ts,
			})
		}
	}
	return out
}

// flattenSummaryPoints emits a count row, a sum row, and one row per
// reported quantile, named "<metric>.q<quantile>" (e.g. ".q0.95").
func flattenSummaryPoints(projectID, name string, points []*metricspb.SummaryDataPoint) []repository.NormalizedMetric {
	out := make([]repository.NormalizedMetric, 0)
	for _, p := range points {
		attrs := attrsOf(p.GetAttributes())
		ts := int64(p.GetTimeUnixNano()) / 1000
		out = append(out,
			repository.NormalizedMetric{
				ProjectID: projectID, MetricName: name + ".count", Kind: "summary",
				Value: float64(p.GetCount()), Attributes: attrs, TimestampUs: ts,
			},
			repository.NormalizedMetric{
				ProjectID: projectID, MetricName: name + ".sum", Kind: "summary",
				Value: p.GetSum(), Attributes: attrs, TimestampUs: ts,
			},
		)
		for _, q := range p.GetQuantileValues() {
			out = append(out, repository.NormalizedMetric{
				ProjectID:   projectID,
				MetricName:  fmt.Sprintf("%s.q%g", name, q.GetQuantile()),
				Kind:        "summary",
				Value:       q.GetValue(),
				Attributes:  attrs,
				TimestampUs: ts,
			})
		}
	}
	return out
}
