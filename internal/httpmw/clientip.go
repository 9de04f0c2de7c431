package httpmw

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions configures client IP extraction behavior.
type ClientIPOptions struct {
	// TrustedHops is the number of reverse proxies between the client and
	// this server. 0 ignores X-Forwarded-For, 1 takes the rightmost entry
	// (single load balancer), 2 the second from the end (CDN + LB), etc.
	TrustedHops int
}

// ClientIP resolves the client address with no trusted proxies.
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

// ClientIPWithOptions stores the resolved client address in the context.
// Forwarded headers from peers that are not trusted are removed so nothing
// further in can be fooled by them.
func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractRealClientAddr(r, opts.TrustedHops)
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

// extractRealClientAddr only honours X-Forwarded-For from private peers
// with trustedHops > 0, and fails closed when the chain is shorter than
// the configured hop count.
func extractRealClientAddr(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		return "0.0.0.0"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return "0.0.0.0"
	}
	if !peer.IsPrivate() || trustedHops <= 0 {
		stripForwarded(r.Header)
		return host
	}

	xf := r.Header.Get("X-Forwarded-For")
	if xf == "" {
		return host
	}
	parts := strings.Split(xf, ",")
	idx := len(parts) - trustedHops
	if idx < 0 {
		stripForwarded(r.Header)
		return host
	}
	candidate := strings.TrimSpace(parts[idx])
	if _, err := netip.ParseAddr(candidate); err != nil {
		return host
	}
	return candidate
}

func stripForwarded(h http.Header) {
	h.Del("X-Forwarded-For")
	h.Del("X-Forwarded-Proto")
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}
