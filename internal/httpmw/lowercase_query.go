package httpmw

import (
	"net/http"
	"net/url"
	"strings"
)

// LowerCaseQuery lower-cases every query parameter name before routing.
// Values, order and repeated names are preserved.
func LowerCaseQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "" {
			next.ServeHTTP(w, r)
			return
		}
		q := lowerCaseQueryNames(r.URL.RawQuery)
		if q == r.URL.RawQuery {
			next.ServeHTTP(w, r)
			return
		}

		// shallow copy so the caller's request is left untouched
		r2 := r.WithContext(r.Context())
		u := *r.URL
		u.RawQuery = q
		r2.URL = &u
		if r.RequestURI != "" {
			r2.RequestURI = u.RequestURI()
		}
		next.ServeHTTP(w, r2)
	})
}

// lowerCaseQueryNames decodes raw pair by pair, lower-cases the names and
// re-encodes. Segments without "=" become "name=".
func lowerCaseQueryNames(raw string) string {
	var b strings.Builder
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(strings.ToLower(unescape(k))))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(unescape(v)))
	}
	return b.String()
}

// unescape keeps malformed escapes as literal text
func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
