package httpmw

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// DefaultCompressionLevel balances tile latency against size.
const DefaultCompressionLevel = 6

// compressibleTypes lists everything except the image formats that are
// already compressed (jpeg, png, jp2, webp).
var compressibleTypes = []string{
	"text/*",
	"application/*",
	"image/svg+xml",
	"image/tiff",
	"image/x-icon",
}

// Compress gzip/deflate encodes responses whose Content-Type is not an
// already-compressed image.
func Compress(level int) func(http.Handler) http.Handler {
	if level == 0 {
		level = DefaultCompressionLevel
	}
	c := middleware.NewCompressor(level, compressibleTypes...)
	c.SetEncoder("gzip", func(w io.Writer, level int) io.Writer {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil
		}
		return gw
	})
	c.SetEncoder("deflate", func(w io.Writer, level int) io.Writer {
		fw, err := flate.NewWriter(w, level)
		if err != nil {
			return nil
		}
		return fw
	})
	return c.Handler
}
