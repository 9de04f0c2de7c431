package opshttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/titiler-go/internal/health"
	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

const DefaultPort = 9000

// NewHandler builds the ops router: /metrics, /-/healthy, /-/ready and,
// when enabled, pprof. Everything else is 404.
func NewHandler(L log.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmw.Recover(L, opts.OnPanic))
	if !opts.AllowPublic {
		r.Use(func(next http.Handler) http.Handler { return requireNonPublicNetwork(L, next) })
	}

	r.Get("/-/healthy", health.LiveHandler(opts.Health))
	r.Get("/-/ready", health.ReadyHandler(opts.Readiness))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.EnablePprof {
		registerPprof(r)
	}
	return r
}

// Start admin HTTP server with /metrics, /-/healthy, /-/ready, pprof debug endpoints
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, L log.Logger, opts Options) (func(context.Context) error, error) {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(L, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// pprof profile/trace stream for up to 30s by default
		WriteTimeout:   45 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "could not listen for admin port on addr=%v", addr)
	}

	go func() {
		L.Info(ctx, "ops http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}

// requireNonPublicNetwork rejects peers outside loopback, private and
// link-local ranges. It looks at the socket peer only, never at forwarded
// headers.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ap, err := netip.ParseAddrPort(r.RemoteAddr)
		if err != nil {
			L.Warn(r.Context(), "ops request with unparseable peer", "remote_addr", r.RemoteAddr)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ip := ap.Addr().Unmap()
		if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsLinkLocalUnicast() {
			L.Warn(r.Context(), "ops request from public network rejected", "peer", ip.String(), "path", r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
