package httpmw

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/titiler-go/internal/telemetry"
)

// withRouteContext makes sure a chi route context exists before routing so
// middleware outside the router can read the matched pattern afterwards.
func withRouteContext(r *http.Request) (*http.Request, *chi.Context) {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return r, rc
	}
	rc := chi.NewRouteContext()
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc)), rc
}

// AnnotateHTTPRoute sets http.route and the span name from the chi route
// pattern once the handler is done.
func AnnotateHTTPRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		ctx := r.Context()
		routePat := ""
		if rc := chi.RouteContext(ctx); rc != nil {
			routePat = rc.RoutePattern()
		}
		if routePat == "" {
			routePat = r.URL.Path
		}

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		telemetry.AddSpanAttributes(ctx, map[string]any{"http.route": routePat})
		span.SetName(r.Method + " " + routePat)
	})
}
