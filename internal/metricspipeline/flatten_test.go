package metricspipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

func strKV(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}}}
}

func TestFlattenGaugeEmitsOneRowPerPoint(t *testing.T) {
	m := &metricspb.Metric{
		Name: "queue_depth",
		Data: &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
			DataPoints: []*metricspb.NumberDataPoint{
				{Attributes: []*commonpb.KeyValue{strKV("queue", "ingest")}, TimeUnixNano: 1_000_000_000, Value: &metricspb.NumberDataPoint_AsDouble{AsDouble: 42.5}},
			},
		}},
	}

	rows := flattenMetric("proj1", m)
	require.Len(t, rows, 1)
	assert.Equal(t, "queue_depth", rows[0].MetricName)
	assert.Equal(t, "gauge", rows[0].Kind)
	assert.Equal(t, 42.5, rows[0].Value)
	assert.Equal(t, "ingest", rows[0].Attributes["queue"])
	assert.Equal(t, int64(1_000_000), rows[0].TimestampUs)
}

func TestFlattenSumUsesIntValue(t *testing.T) {
	m := &metricspb.Metric{
		Name: "requests_total",
		Data: &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			DataPoints: []*metricspb.NumberDataPoint{
				{Value: &metricspb.NumberDataPoint_AsInt{AsInt: 7}},
			},
		}},
	}

	rows := flattenMetric("proj1", m)
	require.Len(t, rows, 1)
	assert.Equal(t, "sum", rows[0].Kind)
	assert.Equal(t, float64(7), rows[0].Value)
}

func TestFlattenHistogramEmitsCountAndSumRows(t *testing.T) {
	sum := 12.5
	m := &metricspb.Metric{
		Name: "latency_ms",
		Data: &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			DataPoints: []*metricspb.HistogramDataPoint{
				{Count: 3, Sum: &sum},
			},
		}},
	}

	rows := flattenMetric("proj1", m)
	require.Len(t, rows, 2)
	assert.Equal(t, "latency_ms.count", rows[0].MetricName)
	assert.Equal(t, float64(3), rows[0].Value)
	assert.Equal(t, "latency_ms.sum", rows[1].MetricName)
	assert.Equal(t, 12.5, rows[1].Value)
}

func TestFlattenHistogramOmitsSumRowWhenAbsent(t *testing.T) {
	m := &metricspb.Metric{
		Name: "latency_ms",
		Data: &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			DataPoints: []*metricspb.HistogramDataPoint{
				{Count: 3},
			},
		}},
	}

	rows := flattenMetric("proj1", m)
	require.Len(t, rows, 1)
	assert.Equal(t, "latency_ms.count", rows[0].MetricName)
}

func TestFlattenSummaryEmitsCountSumAndQuantileRows(t *testing.T) {
	m := &metricspb.Metric{
		Name: "request_duration",
		Data: &metricspb.Metric_Summary{Summary: &metricspb.Summary{
			DataPoints: []*metricspb.SummaryDataPoint{
				{
					Count: 10, Sum: 55,
					QuantileValues: []*metricspb.SummaryDataPoint_ValueAtQuantile{
						{Quantile: 0.5, Value: 4.2},
						{Quantile: 0.95, Value: 9.8},
					},
				},
			},
		}},
	}

	rows := flattenMetric("proj1", m)
	require.Len(t, rows, 4)
	assert.Equal(t, "request_duration.count", rows[0].MetricName)
	assert.Equal(t, "request_duration.sum", rows[1].MetricName)
	assert.Equal(t, "request_duration.q0.5", rows[2].MetricName)
	assert.Equal(t, "request_duration.q0.95", rows[3].MetricName)
}

func TestFlattenExponentialHistogramEmitsCountAndSumRows(t *testing.T) {
	sum := 99.0
	m := &metricspb.Metric{
		Name: "size_bytes",
		Data: &metricspb.Metric_ExponentialHistogram{ExponentialHistogram: &metricspb.ExponentialHistogram{
			DataPoints: []*metricspb.ExponentialHistogramDataPoint{
				{Count: 2, Sum: &sum},
			},
		}},
	}

	rows := flattenMetric("proj1", m)
	require.Len(t, rows, 2)
	assert.Equal(t, "exponential_histogram", rows[0].Kind)
}

func TestFlattenUnknownDataReturnsNil(t *testing.T) {
	m := &metricspb.Metric{Name: "mystery"}
	assert.Nil(t, flattenMetric("proj1", m))
}
