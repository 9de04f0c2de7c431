package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/mosaic"
)

// EnvPrefix is prepended to upper-cased flag names, "http-port" reads
// TITILER_HTTP_PORT.
const EnvPrefix = "TITILER_"

type App struct {
	LogJSON         bool
	LogLevel        string
	StacktraceLevel string
	HTTPPort        int
	AdminPort       int
	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	Name     string
	RootPath string

	CacheControl            string
	CacheControlMaxHTTPCode int
	CacheControlExclude     string

	AccessToken         string
	AccessTokenSSMParam string

	Debug                    bool
	LowerCaseQueryParameters bool

	CORSOrigins      string
	CORSAllowMethods string

	RateLimitRPS    float64
	RateLimitBurst  int
	TrustedHops     int
	MaxBodyBytes    int64
	DisableCOG      bool
	DisableSTAC     bool
	DisableMosaic   bool
	MosaicBackends  string
	MosaicMaxBytes  int64
	RendererURL     string
	RendererTimeout int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.Name, "name", "TiTiler", "title served on the landing page")
	fs.StringVar(&c.RootPath, "root-path", "", "path prefix when served behind a proxy, used in generated links")

	fs.StringVar(&c.CacheControl, "cachecontrol", "public, max-age=3600", "Cache-Control directive for cacheable responses, empty disables")
	fs.IntVar(&c.CacheControlMaxHTTPCode, "cachecontrol-max-http-code", httpmw.DefaultCacheControlMaxStatus, "responses with this status or above get no Cache-Control")
	fs.StringVar(&c.CacheControlExclude, "cachecontrol-exclude", "", "comma separated path regexes that never get Cache-Control (/healthz is always excluded)")

	fs.StringVar(&c.AccessToken, "access-token", "", "require ?access_token=<value> on every request")
	fs.StringVar(&c.AccessTokenSSMParam, "access-token-ssm-param", "", "ssm parameter holding the access token, used when -access-token is empty")

	fs.BoolVar(&c.Debug, "debug", false, "log every request and add Server-Timing")
	fs.BoolVar(&c.LowerCaseQueryParameters, "lower-case-query-parameters", false, "lower-case query parameter names before routing")

	fs.StringVar(&c.CORSOrigins, "cors-origins", "*", "comma separated allowed CORS origins, empty disables CORS")
	fs.StringVar(&c.CORSAllowMethods, "cors-allow-methods", "GET", "comma separated CORS methods")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 50, "per client IP requests per second, 0 disables rate limiting")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 200, "per client IP burst")
	fs.IntVar(&c.TrustedHops, "trusted-proxy-hops", 0, "reverse proxies in front of the server that set X-Forwarded-For")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 16<<20, "maximum request body size")

	fs.BoolVar(&c.DisableCOG, "disable-cog", false, "disable the /cog endpoints")
	fs.BoolVar(&c.DisableSTAC, "disable-stac", false, "disable the /stac endpoints")
	fs.BoolVar(&c.DisableMosaic, "disable-mosaic", false, "disable the /mosaicjson endpoints")
	fs.StringVar(&c.MosaicBackends, "mosaic-backends", "file,s3,http", "comma separated backends MosaicJSON documents may be read from")
	fs.Int64Var(&c.MosaicMaxBytes, "mosaic-max-bytes", mosaic.DefaultMaxBytes, "maximum decoded MosaicJSON document size")

	fs.StringVar(&c.RendererURL, "renderer-url", "", "base URL of the raster renderer, empty answers dataset requests with 501")
	fs.IntVar(&c.RendererTimeout, "renderer-timeout", 30, "renderer request timeout in seconds")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s", f.Name, redact(f.Name, f.Value.String()), key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, redact(f.Name, envVal), err)
			}
		}
	})
}

func redact(name, v string) string {
	if name == "access-token" && v != "" {
		return "[REDACTED]"
	}
	return v
}

// List splits a comma separated flag value, dropping blanks.
func List(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.RootPath != "" && !strings.HasPrefix(c.RootPath, "/") {
		errs = append(errs, fmt.Errorf("ROOT_PATH must start with / (got %q)", c.RootPath))
	}

	if c.CacheControlMaxHTTPCode < 100 || c.CacheControlMaxHTTPCode > 600 {
		errs = append(errs, fmt.Errorf("invalid CACHECONTROL_MAX_HTTP_CODE %d (must be 100..600)", c.CacheControlMaxHTTPCode))
	}
	if _, err := httpmw.CompilePathPatterns(List(c.CacheControlExclude)...); err != nil {
		errs = append(errs, fmt.Errorf("invalid CACHECONTROL_EXCLUDE: %w", err))
	}

	for _, m := range List(c.CORSAllowMethods) {
		if !validMethod(m) {
			errs = append(errs, fmt.Errorf("invalid CORS_ALLOW_METHODS entry %q", m))
		}
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_RPS %.2f (must be >= 0)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be >= 1 when rate limiting is on (got %d)", c.RateLimitBurst))
	}
	if c.TrustedHops < 0 || c.TrustedHops > 8 {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXY_HOPS %d (must be 0..8)", c.TrustedHops))
	}
	if c.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Errorf("invalid MAX_BODY_BYTES %d (must be > 0)", c.MaxBodyBytes))
	}

	for _, b := range List(c.MosaicBackends) {
		switch b {
		case mosaic.BackendFile, mosaic.BackendS3, mosaic.BackendHTTP:
		default:
			errs = append(errs, fmt.Errorf("unknown MOSAIC_BACKENDS entry %q (valid are file|s3|http)", b))
		}
	}
	if c.MosaicMaxBytes < 1 {
		errs = append(errs, fmt.Errorf("invalid MOSAIC_MAX_BYTES %d (must be > 0)", c.MosaicMaxBytes))
	}

	if c.RendererURL != "" {
		if u, err := url.Parse(c.RendererURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("RENDERER_URL must be an http(s) URL (got %q)", c.RendererURL))
		}
	}
	if c.RendererTimeout < 1 {
		errs = append(errs, fmt.Errorf("invalid RENDERER_TIMEOUT %d (must be >= 1)", c.RendererTimeout))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case "*", http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// Pipeline builds the request pipeline configuration. The access token is
// passed in since it may come from SSM rather than the flags.
func (c App) Pipeline(accessToken string) (httpmw.PipelineConfig, error) {
	exclude, err := httpmw.CompilePathPatterns(append([]string{"/healthz"}, List(c.CacheControlExclude)...)...)
	if err != nil {
		return httpmw.PipelineConfig{}, err
	}
	return httpmw.PipelineConfig{
		CacheControl:          c.CacheControl,
		CacheControlMaxStatus: c.CacheControlMaxHTTPCode,
		CacheControlExclude:   exclude,
		AccessToken:           accessToken,
		Debug:                 c.Debug,
		LowerCaseQuery:        c.LowerCaseQueryParameters,
		CompressionLevel:      httpmw.DefaultCompressionLevel,
		CORS: httpmw.CORSOptions{
			AllowedOrigins: List(c.CORSOrigins),
			AllowedMethods: List(c.CORSAllowMethods),
		},
	}, nil
}
