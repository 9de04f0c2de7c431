package httpmw

import (
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/telemetry"
)

type RequestLogOptions struct {
	// Logger overrides the request-scoped logger from the context
	Logger log.Logger
}

// RequestLog describes every request to the telemetry sink on entry and
// writes exactly one "Request received" line once the handler is done. A
// panic from further in is logged first and then re-raised unchanged.
func RequestLog(opts RequestLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := requestAttributes(r)
			telemetry.AddSpanAttributes(r.Context(), telemetry.Flatten(data, telemetry.Separator))

			r, rc := withRouteContext(r)

			var (
				panicked bool
				pval     any
			)
			func() {
				defer func() {
					if v := recover(); v != nil {
						panicked = true
						pval = v
					}
				}()
				next.ServeHTTP(w, r)
			}()

			if route := rc.RoutePattern(); route != "" {
				data["http.route"] = route
			}
			data["titiler.path_params"] = pathParams(rc)

			L := opts.Logger
			if L == nil {
				L = log.FromContext(r.Context())
			}
			L.Info(r.Context(), "Request received: "+r.URL.Path+" "+r.Method, sortedKV(data)...)

			if panicked {
				panic(pval)
			}
		})
	}
}

// requestAttributes snapshots the request before routing. Absent headers
// are kept as nil so the log line always has the same shape.
func requestAttributes(r *http.Request) map[string]any {
	scheme := schemeFromRequest(r)
	hostname, port := splitHost(r.Host)

	host := any(r.Host)
	if r.Host == "" {
		host = "unknown"
		if r.URL.Hostname() != "" {
			host = r.URL.Hostname()
		}
	}

	query := redactQuery(r.URL.RawQuery)
	target := r.URL.Path
	uri := r.URL.EscapedPath()
	if query != "" {
		target += "?" + query
		uri += "?" + query
	}

	referer := headerOrNil(r, "Referer")
	if referer == nil {
		referer = headerOrNil(r, "Referrer")
	}

	params := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) == 0 {
			continue
		}
		params[k] = vs[len(vs)-1]
		if strings.EqualFold(k, AccessTokenParam) {
			params[k] = redacted
		}
	}

	return map[string]any{
		"http.method":                         r.Method,
		"http.url":                            scheme + "://" + r.Host + uri,
		"http.scheme":                         scheme,
		"http.host":                           host,
		"http.target":                         target,
		"http.user_agent":                     headerOrNil(r, "User-Agent"),
		"http.referer":                        referer,
		"http.request.header.content-length":  headerOrNil(r, "Content-Length"),
		"http.request.header.accept-encoding": headerOrNil(r, "Accept-Encoding"),
		"http.request.header.origin":          headerOrNil(r, "Origin"),
		"net.host.name":                       hostname,
		"net.host.port":                       port,
		"titiler.query_params":                params,
	}
}

const redacted = "REDACTED"

// redactQuery masks access_token values so secrets never reach logs
func redactQuery(raw string) string {
	if !strings.Contains(strings.ToLower(raw), "access") {
		return raw
	}
	segs := strings.Split(raw, "&")
	for i, seg := range segs {
		k, _, found := strings.Cut(seg, "=")
		if found && strings.EqualFold(unescape(k), AccessTokenParam) {
			segs[i] = k + "=" + redacted
		}
	}
	return strings.Join(segs, "&")
}

func headerOrNil(r *http.Request, name string) any {
	if vs := r.Header.Values(name); len(vs) > 0 {
		return vs[0]
	}
	// net/http moves Content-Length out of the header map
	if name == "Content-Length" && r.ContentLength > 0 {
		return strconv.FormatInt(r.ContentLength, 10)
	}
	return nil
}

// splitHost returns the host name and, when explicit, the numeric port
func splitHost(hostport string) (name, port any) {
	if hostport == "" {
		return nil, nil
	}
	h, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, nil
	}
	if n, err := strconv.Atoi(p); err == nil {
		return h, n
	}
	return h, nil
}

func pathParams(rc *chi.Context) map[string]string {
	out := make(map[string]string, len(rc.URLParams.Keys))
	for i, k := range rc.URLParams.Keys {
		if i < len(rc.URLParams.Values) {
			out[k] = rc.URLParams.Values[i]
		}
	}
	return out
}

func sortedKV(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, m[k])
	}
	return kv
}
