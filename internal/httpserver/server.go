package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// NewHandler builds the public handler: the fixed middleware chain around
// a chi router. main() owns *http.Server so it can do graceful shutdown.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	// rename the span and tag http.route once chi has matched
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.MaxBody(opts.MaxBodyBytes))

	if opts.Routes != nil {
		opts.Routes(r)
	}

	// Chain runs these outermost first
	return httpmw.Chain(r,
		// on every response, including panics and rate limiting
		httpmw.SecurityHeaders,
		recoverMW(opts),
		httpmw.RequestID("X-Request-Id"),
		// before the limiter so it keys on the resolved client
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		opts.RateLimitMW,
		tracing(),
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
		opts.MetricsMW,
		// inner so it sees request id and trace id
		httpmw.WithLogger(opts.Logger),
		func(next http.Handler) http.Handler {
			return opts.Pipeline.Wrap(next, httpmw.PipelineHooks{OnAccessDenied: opts.OnAccessDenied})
		},
	)
}

func recoverMW(opts Options) func(http.Handler) http.Handler {
	if !opts.UseRecoverMW {
		return nil
	}
	return httpmw.Recover(opts.Logger, opts.OnPanic)
}

// untraced paths are polled by load balancers and browsers
var untraced = map[string]bool{
	"/healthz":     true,
	"/favicon.ico": true,
	"/robots.txt":  true,
}

func tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			"http.server",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !untraced[r.URL.Path]
			}),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				// AnnotateHTTPRoute renames the span to the route pattern
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
		)
	}
}

// Server timeout defaults. WriteTimeout bounds a whole tile render.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

const DefaultPort = 8000

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start serves the public listener.
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := NewServer(addr, NewHandler(opts))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.EnsureTrace(err)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
