package httpmw

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func serveCompressed(t *testing.T, contentType, body, acceptEncoding string) *httptest.ResponseRecorder {
	t.Helper()
	h := Compress(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompress_GzipsJSON(t *testing.T) {
	body := `{"tilejson":"2.2.0","tiles":["` + strings.Repeat("x", 512) + `"]}`
	rec := serveCompressed(t, "application/json", body, "gzip")

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Fatal("decompressed body mismatch")
	}
}

func TestCompress_SkipsCompressedImages(t *testing.T) {
	for _, ct := range []string{"image/png", "image/jpeg", "image/jpg", "image/webp", "image/jp2"} {
		rec := serveCompressed(t, ct, "binarytile", "gzip")
		if enc := rec.Header().Get("Content-Encoding"); enc != "" {
			t.Fatalf("%s: Content-Encoding = %q, want none", ct, enc)
		}
		if rec.Body.String() != "binarytile" {
			t.Fatalf("%s: body altered", ct)
		}
	}
}

func TestCompress_CompressesTIFF(t *testing.T) {
	rec := serveCompressed(t, "image/tiff; application=geotiff", strings.Repeat("t", 256), "gzip")
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
}

func TestCompress_NoAcceptEncoding(t *testing.T) {
	rec := serveCompressed(t, "application/json", `{"a":1}`, "")
	if enc := rec.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("Content-Encoding = %q, want none", enc)
	}
	if rec.Body.String() != `{"a":1}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
