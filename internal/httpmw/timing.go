package httpmw

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ServerTiming adds a "total;dur=<ms>" contribution to Server-Timing,
// merging with any value set further in.
func ServerTiming(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := WrapStart(w, func(_ int, h MutableHeaders) {
			h.Append("Server-Timing", "total;dur="+formatMillis(time.Since(start)), ", ")
		})
		next.ServeHTTP(sw, r)
		sw.Finish()
	})
}

// formatMillis renders d in milliseconds rounded to 2 decimals, always
// with a fractional part (5 ms is "5.0")
func formatMillis(d time.Duration) string {
	ms := math.Round(float64(d)/float64(time.Millisecond)*100) / 100
	s := strconv.FormatFloat(ms, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
