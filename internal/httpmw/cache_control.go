package httpmw

import (
	"net/http"
	"regexp"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// DefaultCacheControlMaxStatus is the exclusive status ceiling under which
// responses are eligible for the Cache-Control directive.
const DefaultCacheControlMaxStatus = 500

type CacheControlOptions struct {
	// Directive is the Cache-Control value to add; empty disables the middleware
	Directive string

	// MaxStatus is exclusive; 0 means DefaultCacheControlMaxStatus
	MaxStatus int

	// Exclude holds compiled path patterns, see CompilePathPatterns
	Exclude []*regexp.Regexp
}

// CompilePathPatterns compiles exclusion patterns anchored at the start of
// the path, so "/healthz" also excludes "/healthz/deep" but not "/x/healthz".
func CompilePathPatterns(patterns ...string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, xerrors.Wrapf(err, "compile path pattern %q", p)
		}
		out = append(out, re)
	}
	return out, nil
}

// CacheControl sets Cache-Control on GET/HEAD responses below MaxStatus
// whose path matches no exclusion, unless the handler already set one.
func CacheControl(opts CacheControlOptions) func(http.Handler) http.Handler {
	if opts.MaxStatus <= 0 {
		opts.MaxStatus = DefaultCacheControlMaxStatus
	}
	return func(next http.Handler) http.Handler {
		if opts.Directive == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := WrapStart(w, func(status int, h MutableHeaders) {
				if h.Get("Cache-Control") != "" {
					return
				}
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					return
				}
				if status >= opts.MaxStatus || excluded(opts.Exclude, r.URL.Path) {
					return
				}
				h.Set("Cache-Control", opts.Directive)
			})
			next.ServeHTTP(sw, r)
			sw.Finish()
		})
	}
}

func excluded(patterns []*regexp.Regexp, p string) bool {
	for _, re := range patterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}
