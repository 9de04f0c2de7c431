package httpmw

import "net/http"

// MaxBody limits request bodies. A declared Content-Length over the limit
// is rejected up front with 413; otherwise reads past the limit fail with
// *http.MaxBytesError.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
