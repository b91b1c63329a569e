package tracepipeline

import (
	"fmt"
	"strconv"
	"strings"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// attrMap flattens a KeyValue list into a plain string map, the shape
// every extraction rule scans. Non-scalar values (arrays, kvlists) are
// rendered as their Go-syntax representation; callers that need the
// structured form use anyValue directly.
func attrMap(attrs []*commonpb.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[kv.GetKey()] = stringifyAnyValue(kv.GetValue())
	}
	return out
}

func findAttr(attrs []*commonpb.KeyValue, key string) (*commonpb.AnyValue, bool) {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue(), true
		}
	}
	return nil, false
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
	case *commonpb.AnyValue_ArrayValue:
		parts := make([]string, 0, len(val.ArrayValue.GetValues()))
		for _, elem := range val.ArrayValue.GetValues() {
			parts = append(parts, stringifyAnyValue(elem))
		}
		return "[" + strings.Join(parts, ",") + "]"
	case *commonpb.AnyValue_KvlistValue:
		parts := make([]string, 0, len(val.KvlistValue.GetValues()))
		for _, kv := range val.KvlistValue.GetValues() {
			parts = append(parts, fmt.Sprintf("%s=%s", kv.GetKey(), stringifyAnyValue(kv.GetValue())))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return ""
	}
}

func intAttr(attrs map[string]string, key string) (int64, bool) {
	v, ok := attrs[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

func stringAttr(attrs map[string]string, key string) (string, bool) {
	v, ok := attrs[key]
	return v, ok && v != ""
}
