package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTraceHeader = "X-Trace-Id"
	DefaultSpanHeader  = "X-Span-Id"
)

// TraceResponseHeaders echoes the server span's trace and span IDs so a
// client reporting a broken tile can be matched to its trace.
func TraceResponseHeaders(traceHeader, spanHeader string) func(http.Handler) http.Handler {
	if traceHeader == "" {
		traceHeader = DefaultTraceHeader
	}
	if spanHeader == "" {
		spanHeader = DefaultSpanHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				w.Header().Set(traceHeader, sc.TraceID().String())
				w.Header().Set(spanHeader, sc.SpanID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
