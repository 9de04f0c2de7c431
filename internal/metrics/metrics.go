package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/titiler-go/internal/version"
)

type ServerMetrics struct {
	reg       *prometheus.Registry
	handler   http.Handler
	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	respBytes *prometheus.HistogramVec
	errors    *prometheus.CounterVec

	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter
	profilingActive        prometheus.Gauge

	accessDenied   *prometheus.CounterVec
	rendererErrors *prometheus.CounterVec
	tilesTotal     *prometheus.CounterVec
	mosaicLoadDur  *prometheus.HistogramVec
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titiler_access_denied_total",
			Help: "Requests rejected by the access-token guard by reason",
		}, []string{"reason"}),
		rendererErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titiler_renderer_errors_total",
			Help: "Renderer failures by dataset kind and mapped HTTP status",
		}, []string{"kind", "status"}),
		tilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titiler_tiles_total",
			Help: "Tiles rendered by dataset kind and image format",
		}, []string{"kind", "format"}),
		mosaicLoadDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titiler_mosaic_load_duration_seconds",
			Help:    "Time to fetch and decode a MosaicJSON document by backend",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"backend"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errors,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.profilingActive,
		m.accessDenied,
		m.rendererErrors,
		m.tilesTotal,
		m.mosaicLoadDur,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// IncAccessDenied counts a guard rejection. reason is "missing" or "invalid".
func (m *ServerMetrics) IncAccessDenied(reason string) {
	m.accessDenied.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncRendererError(kind string, status int) {
	m.rendererErrors.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

func (m *ServerMetrics) IncTile(kind, format string) {
	m.tilesTotal.WithLabelValues(kind, format).Inc()
}

func (m *ServerMetrics) ObserveMosaicLoad(backend string, seconds float64) {
	m.mosaicLoadDur.WithLabelValues(backend).Observe(seconds)
}
