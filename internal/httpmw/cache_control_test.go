package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testDirective = "public, max-age=3600"

func cacheControlHandler(t *testing.T, opts CacheControlOptions, inner http.HandlerFunc) http.Handler {
	t.Helper()
	return CacheControl(opts)(inner)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func TestCacheControl_SetsDirectiveWhenAbsent(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective}, okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/cog/info", http.NoBody))

		if got := rec.Header().Get("Cache-Control"); got != testDirective {
			t.Fatalf("%s: Cache-Control = %q, want %q", method, got, testDirective)
		}
	}
}

func TestCacheControl_NeverOverwrites(t *testing.T) {
	h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got := rec.Header().Values("Cache-Control"); len(got) != 1 || got[0] != "private, max-age=60" {
		t.Fatalf("Cache-Control = %v", got)
	}
}

func TestCacheControl_SkipsNonIdempotentMethods(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions} {
		h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective}, okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/", http.NoBody))

		if got := rec.Header().Get("Cache-Control"); got != "" {
			t.Fatalf("%s: Cache-Control = %q, want none", method, got)
		}
	}
}

func TestCacheControl_StatusThreshold(t *testing.T) {
	tests := []struct {
		status    int
		maxStatus int
		want      bool
	}{
		{http.StatusOK, 0, true},
		{http.StatusNotFound, 0, true},
		{499, 0, true},
		{http.StatusInternalServerError, 0, false},
		{http.StatusServiceUnavailable, 0, false},
		{http.StatusNotFound, 400, false},
		{http.StatusNoContent, 400, true},
	}
	for _, tt := range tests {
		h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective, MaxStatus: tt.maxStatus}, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

		if got := rec.Header().Get("Cache-Control") != ""; got != tt.want {
			t.Fatalf("status %d max %d: header set = %v, want %v", tt.status, tt.maxStatus, got, tt.want)
		}
	}
}

func TestCacheControl_ExcludedPaths(t *testing.T) {
	exclude, err := CompilePathPatterns("/healthz", `/mosaicjson/\d+`)
	if err != nil {
		t.Fatalf("CompilePathPatterns: %v", err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{"/healthz", false},
		{"/healthz/extra", false},
		{"/mosaicjson/12/assets", false},
		{"/api/healthz", true},
		{"/mosaicjson/info", true},
		{"/cog/info", true},
	}
	for _, tt := range tests {
		h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective, Exclude: exclude}, okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

		if got := rec.Header().Get("Cache-Control") != ""; got != tt.want {
			t.Fatalf("%s: header set = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCacheControl_NoDirectiveIsPassthrough(t *testing.T) {
	h := cacheControlHandler(t, CacheControlOptions{}, okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Fatalf("Cache-Control = %q, want none", got)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestCacheControl_EmptyResponse(t *testing.T) {
	h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective}, func(http.ResponseWriter, *http.Request) {})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got := rec.Header().Get("Cache-Control"); got != testDirective {
		t.Fatalf("Cache-Control = %q, want %q", got, testDirective)
	}
}

func TestCacheControl_HeaderAfterBodyIgnored(t *testing.T) {
	h := cacheControlHandler(t, CacheControlOptions{Directive: testDirective}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("streamed"))
		// too late: the start was already committed
		w.Header().Set("Cache-Control", "no-store")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got := rec.Result().Header.Get("Cache-Control"); got != testDirective {
		t.Fatalf("Cache-Control = %q, want %q", got, testDirective)
	}
}

func TestCompilePathPatterns_Invalid(t *testing.T) {
	if _, err := CompilePathPatterns("(unclosed"); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestCompilePathPatterns_SkipsEmpty(t *testing.T) {
	res, err := CompilePathPatterns("", "/a")
	if err != nil {
		t.Fatalf("CompilePathPatterns: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("len = %d, want 1", len(res))
	}
}
