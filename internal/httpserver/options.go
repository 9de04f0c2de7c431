package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/log"
)

// DefaultMaxBodyBytes covers posted MosaicJSON documents.
const DefaultMaxBodyBytes = 16 << 20

type Options struct {
	Logger log.Logger
	Port   int

	// Pipeline is the request-lifecycle configuration: cache-control,
	// timing, request logging, query normalization and the access token.
	Pipeline httpmw.PipelineConfig

	// Routes registers the application endpoints.
	Routes func(chi.Router)

	UseRecoverMW   bool
	OnPanic        func()
	OnAccessDenied func(*http.Request, httpmw.Decision)
	MetricsMW      func(http.Handler) http.Handler
	RateLimitMW    func(http.Handler) http.Handler
	ClientIPOpts   httpmw.ClientIPOptions
	MaxBodyBytes   int64
}
