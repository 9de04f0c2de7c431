package httpmw

import (
	"net/http"
	"regexp"

	"github.com/keithlinneman/titiler-go/internal/log"
)

// PipelineConfig is the request-lifecycle configuration, fixed at startup.
type PipelineConfig struct {
	CacheControl          string
	CacheControlMaxStatus int
	CacheControlExclude   []*regexp.Regexp

	// AccessToken enables the guard when non-empty
	AccessToken string

	// Debug adds request logging and Server-Timing
	Debug bool

	LowerCaseQuery bool

	CompressionLevel int
	CORS             CORSOptions
}

// PipelineHooks are the collaborators the pipeline reports to.
type PipelineHooks struct {
	// Logger for request logs; nil uses the request-scoped logger
	Logger         log.Logger
	OnAccessDenied func(*http.Request, Decision)
}

// Middlewares returns the pipeline outermost first: CORS, access-token
// guard, query normalization, request logging, server timing,
// cache-control and compression. CORS answers preflights itself and
// decorates 401s, so it sits ahead of the guard. Stages that are switched
// off are nil, which Chain skips.
func (c PipelineConfig) Middlewares(hooks PipelineHooks) []func(http.Handler) http.Handler {
	var (
		lower  func(http.Handler) http.Handler
		logged func(http.Handler) http.Handler
		timing func(http.Handler) http.Handler
	)
	if c.LowerCaseQuery {
		lower = LowerCaseQuery
	}
	if c.Debug {
		logged = RequestLog(RequestLogOptions{Logger: hooks.Logger})
		timing = ServerTiming
	}

	return []func(http.Handler) http.Handler{
		CORS(c.CORS),
		AccessToken(NewAccessTokenGuard(c.AccessToken, c.LowerCaseQuery), hooks.OnAccessDenied),
		lower,
		logged,
		timing,
		CacheControl(CacheControlOptions{
			Directive: c.CacheControl,
			MaxStatus: c.CacheControlMaxStatus,
			Exclude:   c.CacheControlExclude,
		}),
		Compress(c.CompressionLevel),
	}
}

// Wrap applies the pipeline around h.
func (c PipelineConfig) Wrap(h http.Handler, hooks PipelineHooks) http.Handler {
	return Chain(h, c.Middlewares(hooks)...)
}
