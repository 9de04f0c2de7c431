package httpmw

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keithlinneman/titiler-go/internal/log"
)

func TestSchemeFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		urlScheme string
		tls       bool
		want      string
	}{
		{name: "default", want: "http"},
		{name: "tls", tls: true, want: "https"},
		{name: "forwarded https", forwarded: "https", want: "https"},
		{name: "forwarded http over tls", forwarded: "http", tls: true, want: "http"},
		{name: "forwarded upper case", forwarded: "HTTPS", want: "https"},
		{name: "forwarded list takes first", forwarded: "https, http", want: "https"},
		{name: "forwarded junk ignored", forwarded: "gopher", want: "http"},
		{name: "forwarded injection ignored", forwarded: "https\r\nX-Evil: 1", want: "http"},
		{name: "url scheme", urlScheme: "HTTPS", want: "https"},
		{name: "url scheme junk ignored", urlScheme: "s3", want: "http"},
		{name: "forwarded beats url", forwarded: "http", urlScheme: "https", want: "http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cog/info", http.NoBody)
			if tt.forwarded != "" {
				req.Header["X-Forwarded-Proto"] = []string{tt.forwarded}
			}
			req.URL.Scheme = tt.urlScheme
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if got := schemeFromRequest(req); got != tt.want {
				t.Fatalf("schemeFromRequest = %q, want %q", got, tt.want)
			}
		})
	}
}

func FuzzSchemeFromRequest(f *testing.F) {
	f.Add("https")
	f.Add("http, https")
	f.Add("\x00https")
	f.Add(strings.Repeat("h", 1024))

	f.Fuzz(func(t *testing.T, xfp string) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header["X-Forwarded-Proto"] = []string{xfp}
		if got := schemeFromRequest(req); got != "http" && got != "https" {
			t.Fatalf("schemeFromRequest(%q) = %q", xfp, got)
		}
	})
}

// WithLogger

func serveWithLogger(t *testing.T, req *http.Request) (*flatLogger, log.Logger) {
	t.Helper()
	fl := newFlatLogger()
	var inner log.Logger
	WithLogger(fl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = log.FromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	if inner == nil {
		t.Fatal("no logger in handler context")
	}
	return fl, inner
}

func TestWithLogger_Fields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cog/tiles/WebMercatorQuad/3/1/2.png", http.NoBody)
	req.RemoteAddr = "10.0.0.1:12345"
	req = req.WithContext(WithRequestID(req.Context(), "req-123"))

	fl, _ := serveWithLogger(t, req)

	kv, ok := fl.lastWith()
	if !ok {
		t.Fatal("With() never called")
	}
	want := map[string]any{
		"request_id":           "req-123",
		"http.request.method":  http.MethodGet,
		"url.path":             "/cog/tiles/WebMercatorQuad/3/1/2.png",
		"url.scheme":           "http",
		"network.peer.address": "10.0.0.1",
		"client.address":       "10.0.0.1",
		"server.address":       "example.com",
	}
	for k, v := range want {
		if got, ok := fieldValue(kv, k); !ok || got != v {
			t.Errorf("%s = %v, want %v", k, got, v)
		}
	}
}

func TestWithLogger_PrefersResolvedClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "10.0.0.1:12345"
	req = req.WithContext(WithClientIP(req.Context(), "203.0.113.7"))

	fl, _ := serveWithLogger(t, req)

	kv, _ := fl.lastWith()
	if v, _ := fieldValue(kv, "client.address"); v != "203.0.113.7" {
		t.Fatalf("client.address = %v", v)
	}
	if v, _ := fieldValue(kv, "network.peer.address"); v != "10.0.0.1" {
		t.Fatalf("network.peer.address = %v", v)
	}
}

func TestWithLogger_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "10.0.0.1"

	fl, _ := serveWithLogger(t, req)

	kv, _ := fl.lastWith()
	if v, _ := fieldValue(kv, "network.peer.address"); v != "10.0.0.1" {
		t.Fatalf("network.peer.address = %v", v)
	}
}

func TestWithLogger_QueryNotLogged(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cog/info?url=s3://b/a.tif&access_token=hunter2", http.NoBody)
	req.Header.Set("User-Agent", "EvilBot/1.0")
	req.Header.Set("Cookie", "session=abc123")

	fl, _ := serveWithLogger(t, req)

	kv, _ := fl.lastWith()
	for _, key := range []string{"url.query", "url.full", "user_agent", "cookie"} {
		if _, found := fieldValue(kv, key); found {
			t.Errorf("field %q should not be on the request logger", key)
		}
	}
	for _, v := range kv {
		if s, ok := v.(string); ok && strings.Contains(s, "hunter2") {
			t.Fatalf("access token leaked into logger fields: %v", kv)
		}
	}
}

func TestWithLogger_NilBaseUsesDefault(t *testing.T) {
	called := false
	WithLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = log.FromContext(r.Context()) != nil
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !called {
		t.Fatal("handler should see a logger")
	}
}

// Scope

func TestScope_TagsLogger(t *testing.T) {
	fl := newFlatLogger()

	var inner log.Logger
	h := Scope("mosaicjson")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = log.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mosaicjson/info", http.NoBody)
	req = req.WithContext(log.WithContext(req.Context(), fl))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if inner == nil {
		t.Fatal("handler not called with a logger")
	}
	if v, ok := withFieldValue(fl.withs, "handler"); !ok || v != "mosaicjson" {
		t.Fatalf("handler = %v, want mosaicjson", v)
	}
}
