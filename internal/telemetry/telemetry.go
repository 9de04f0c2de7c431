package telemetry

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Separator joins nested keys when flattening.
const Separator = "."

// Sink receives flat key/value attributes for the request in ctx.
type Sink interface {
	AddSpanAttributes(ctx context.Context, attrs map[string]any)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, attrs map[string]any)

func (f SinkFunc) AddSpanAttributes(ctx context.Context, attrs map[string]any) { f(ctx, attrs) }

// SpanSink writes attributes to the span found in the context.
type SpanSink struct{}

func (SpanSink) AddSpanAttributes(ctx context.Context, attrs map[string]any) {
	if ctx == nil || len(attrs) == 0 {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(Attributes(attrs)...)
}

type sinkKey struct{}

// WithSink returns a context whose requests report to s.
func WithSink(ctx context.Context, s Sink) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sinkKey{}, s)
}

// FromContext returns the sink stored in ctx, or SpanSink.
func FromContext(ctx context.Context) Sink {
	if ctx != nil {
		if s, ok := ctx.Value(sinkKey{}).(Sink); ok {
			return s
		}
	}
	return SpanSink{}
}

// AddSpanAttributes forwards attrs to the sink carried by ctx. A panicking
// sink is contained so telemetry can never fail a request.
func AddSpanAttributes(ctx context.Context, attrs map[string]any) {
	defer func() { _ = recover() }()
	FromContext(ctx).AddSpanAttributes(ctx, attrs)
}

// Flatten joins nested map keys with sep into a single-level map. Slices
// are kept as leaf values; empty slices and nil values are dropped.
func Flatten(m map[string]any, sep string) map[string]any {
	out := make(map[string]any, len(m))
	flattenInto(out, "", m, sep)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any, sep string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + sep + k
		}
		switch tv := v.(type) {
		case nil:
		case map[string]any:
			flattenInto(out, key, tv, sep)
		case map[string]string:
			for sk, sv := range tv {
				out[key+sep+sk] = sv
			}
		default:
			rv := reflect.ValueOf(v)
			if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 0 {
				continue
			}
			if rv.Kind() == reflect.Pointer && rv.IsNil() {
				continue
			}
			out[key] = v
		}
	}
}

// Attributes converts a flat map into OTel attributes in key order.
// Unsupported values are rendered with fmt.
func Attributes(m map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		if kv, ok := toAttribute(k, m[k]); ok {
			kvs = append(kvs, kv)
		}
	}
	return kvs
}

func toAttribute(k string, v any) (attribute.KeyValue, bool) {
	switch tv := v.(type) {
	case nil:
		return attribute.KeyValue{}, false
	case string:
		return attribute.String(k, tv), true
	case bool:
		return attribute.Bool(k, tv), true
	case int:
		return attribute.Int(k, tv), true
	case int64:
		return attribute.Int64(k, tv), true
	case float64:
		return attribute.Float64(k, tv), true
	case []string:
		return attribute.StringSlice(k, tv), true
	case []int:
		return attribute.IntSlice(k, tv), true
	case []int64:
		return attribute.Int64Slice(k, tv), true
	case []float64:
		return attribute.Float64Slice(k, tv), true
	case []bool:
		return attribute.BoolSlice(k, tv), true
	case fmt.Stringer:
		return attribute.String(k, tv.String()), true
	default:
		return attribute.String(k, fmt.Sprint(v)), true
	}
}
