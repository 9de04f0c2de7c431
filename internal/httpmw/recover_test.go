package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func panicking(v any) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(v) })
}

func TestRecover_PassThrough(t *testing.T) {
	fl := newFlatLogger()
	h := Recover(fl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tile"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cog/tiles/WebMercatorQuad/1/0/0.png", http.NoBody))

	if rec.Code != http.StatusOK || rec.Body.String() != "tile" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if _, logged := fl.lastError(); logged {
		t.Fatal("nothing should be logged without a panic")
	}
}

func TestRecover_PanicValues(t *testing.T) {
	renderErr := errors.New("renderer crashed")
	tests := []struct {
		name  string
		value any
		check func(t *testing.T, err error)
	}{
		{"string", "index out of range", func(t *testing.T, err error) {
			if err == nil || err.Error() != "panic: index out of range" {
				t.Fatalf("err = %v", err)
			}
		}},
		{"error", renderErr, func(t *testing.T, err error) {
			if !errors.Is(err, renderErr) {
				t.Fatalf("err = %v, want to wrap the panic value", err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := newFlatLogger()
			panics := 0

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/mosaicjson/validate", http.NoBody)
			req = req.WithContext(WithRequestID(req.Context(), "req-9"))
			Recover(fl, func() { panics++ })(panicking(tt.value)).ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if rec.Body.Len() == 0 {
				t.Fatal("expected an error body")
			}
			if panics != 1 {
				t.Fatalf("onPanic called %d times, want 1", panics)
			}

			e, ok := fl.lastError()
			if !ok {
				t.Fatal("panic not logged")
			}
			if e.msg != "httpserver panic recovered" {
				t.Fatalf("msg = %q", e.msg)
			}
			tt.check(t, e.err)
			if _, ok := fieldValue(e.fields, "panic_stack"); !ok {
				t.Fatal("panic_stack missing")
			}
			for k, v := range map[string]any{
				"request_id":          "req-9",
				"http.request.method": http.MethodPost,
				"url.path":            "/mosaicjson/validate",
			} {
				if got, ok := withFieldValue(fl.withs, k); !ok || got != v {
					t.Errorf("%s = %v, want %v", k, got, v)
				}
			}
		})
	}
}

func TestRecover_AbortHandlerRepanics(t *testing.T) {
	fl := newFlatLogger()
	h := Recover(fl, nil)(panicking(http.ErrAbortHandler))

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", v)
		}
		if _, logged := fl.lastError(); logged {
			t.Fatal("aborted requests should not be logged as panics")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}

func TestRecover_NilLogger(t *testing.T) {
	rec := httptest.NewRecorder()
	Recover(nil, nil)(panicking("boom")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
