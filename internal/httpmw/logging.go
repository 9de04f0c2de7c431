package httpmw

import (
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/titiler-go/internal/log"
)

// WithLogger stores a request-scoped logger in the context, carrying
// request id, client and url fields.
func WithLogger(base log.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reqID := RequestIDFromContext(ctx)

			// ClientIP runs further out and already resolved trusted proxies
			clientAddr := ClientIPFromContext(ctx)
			peerAddr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(peerAddr); err == nil {
				peerAddr = host
			}
			if clientAddr == "" {
				clientAddr = peerAddr
			}
			scheme := schemeFromRequest(r)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", reqID),
					attribute.String("server.address", r.Host),
					attribute.String("client.address", clientAddr),
					attribute.String("network.peer.address", peerAddr),
					attribute.String("url.scheme", scheme),
				)
			}

			// the raw query may carry access_token, keep it out of every line
			L := base.With(
				"request_id", reqID,
				"client.address", clientAddr,
				"network.peer.address", peerAddr,
				"server.address", r.Host,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
				"url.scheme", scheme,
			)
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx, L)))
		})
	}
}

var validSchemes = map[string]bool{"http": true, "https": true}

// schemeFromRequest only ever returns "http" or "https"
func schemeFromRequest(r *http.Request) string {
	// ClientIP strips X-Forwarded-Proto from untrusted peers
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if s := strings.ToLower(strings.TrimSpace(first)); validSchemes[s] {
			return s
		}
	}
	if r.URL != nil {
		if s := strings.ToLower(r.URL.Scheme); validSchemes[s] {
			return s
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// Scope tags the logger and span of a route group with a handler name.
func Scope(handler string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			L := log.FromContext(ctx).With("handler", handler)
			ctx = log.WithContext(ctx, L)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
