package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/titiler-go/internal/version"
)

// helpers

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil || len(f.GetMetric()) == 0 {
		t.Fatalf("metric %q has no samples", name)
	}
	return f.GetMetric()[0].GetCounter().GetValue()
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil || len(f.GetMetric()) == 0 {
		t.Fatalf("metric %q has no samples", name)
	}
	return f.GetMetric()[0].GetHistogram().GetSampleCount()
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func scrape(t *testing.T, m *ServerMetrics) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec
}

// New / Handler

func TestNew_ScrapeHasScalarsAndCollectors(t *testing.T) {
	body := scrape(t, New()).Body.String()

	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"profiling_active",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
}

func TestHandler_ContentType(t *testing.T) {
	ct := scrape(t, New()).Header().Get("Content-Type")
	if !strings.Contains(ct, "text/plain") && !strings.Contains(ct, "openmetrics") {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	m1, m2 := New(), New()

	m1.IncHttpPanic()
	m1.IncHttpPanic()

	if v := counterValue(t, m1.reg, "http_panic_total"); v != 2 {
		t.Fatalf("m1 panic count = %f, want 2", v)
	}
	if v := counterValue(t, m2.reg, "http_panic_total"); v != 0 {
		t.Fatalf("m2 panic count = %f, want 0", v)
	}
}

// counters and gauges

func TestIncRateLimit(t *testing.T) {
	m := New()
	m.IncRateLimitDenied()
	m.IncRateLimitDenied()
	m.IncRateLimitCapacity()

	if v := counterValue(t, m.reg, "http_requests_rate_limited_total"); v != 2 {
		t.Fatalf("denied = %f, want 2", v)
	}
	if v := counterValue(t, m.reg, "http_requests_rate_limited_capacity_total"); v != 1 {
		t.Fatalf("capacity = %f, want 1", v)
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()

	m.SetProfilingActive(true)
	if v := gatherMetric(t, m.reg, "profiling_active").GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Fatalf("profiling_active = %f, want 1", v)
	}
	m.SetProfilingActive(false)
	if v := gatherMetric(t, m.reg, "profiling_active").GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Fatalf("profiling_active = %f, want 0", v)
	}
}

func TestIncAccessDenied_ByReason(t *testing.T) {
	m := New()
	m.IncAccessDenied("missing")
	m.IncAccessDenied("missing")
	m.IncAccessDenied("invalid")

	f := gatherMetric(t, m.reg, "titiler_access_denied_total")
	if f == nil || len(f.GetMetric()) != 2 {
		t.Fatalf("want 2 reason series, got %v", f)
	}
	for _, s := range f.GetMetric() {
		want := 1.0
		if labelsOf(s)["reason"] == "missing" {
			want = 2
		}
		if s.GetCounter().GetValue() != want {
			t.Fatalf("%v = %f, want %f", labelsOf(s), s.GetCounter().GetValue(), want)
		}
	}
}

func TestIncRendererError_Labels(t *testing.T) {
	m := New()
	m.IncRendererError("cog", http.StatusNotFound)

	f := gatherMetric(t, m.reg, "titiler_renderer_errors_total")
	if f == nil {
		t.Fatal("titiler_renderer_errors_total not found")
	}
	l := labelsOf(f.GetMetric()[0])
	if l["kind"] != "cog" || l["status"] != "404" {
		t.Fatalf("labels = %v", l)
	}
}

func TestIncTile(t *testing.T) {
	m := New()
	m.IncTile("stac", "png")
	m.IncTile("stac", "webp")

	if f := gatherMetric(t, m.reg, "titiler_tiles_total"); f == nil || len(f.GetMetric()) != 2 {
		t.Fatal("want one series per format")
	}
}

func TestObserveMosaicLoad(t *testing.T) {
	m := New()
	m.ObserveMosaicLoad("s3", 0.2)
	m.ObserveMosaicLoad("s3", 0.4)

	if n := histogramCount(t, m.reg, "titiler_mosaic_load_duration_seconds"); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

// build info

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()

	dirty := true
	m.SetBuildInfoFromVersion("titiler", "server", version.Info{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildId:   "build-42",
		GoVersion: "go1.24.0",
		VCSDirty:  &dirty,
	})

	f := gatherMetric(t, m.reg, "build_info")
	if f == nil || len(f.GetMetric()) != 1 {
		t.Fatal("want exactly one build_info series")
	}
	if f.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatal("build_info value should be 1")
	}
	labels := labelsOf(f.GetMetric()[0])
	for k, want := range map[string]string{
		"app":        "titiler",
		"component":  "server",
		"version":    "1.2.3",
		"commit":     "abc123",
		"build_id":   "build-42",
		"go_version": "go1.24.0",
		"vcs_dirty":  "true",
	} {
		if labels[k] != want {
			t.Errorf("label %q = %q, want %q", k, labels[k], want)
		}
	}
}

func TestSetBuildInfoFromVersion_NilVCSDirty(t *testing.T) {
	m := New()
	m.SetBuildInfoFromVersion("app", "comp", version.Info{Version: "dev"})

	if got := labelsOf(gatherMetric(t, m.reg, "build_info").GetMetric()[0])["vcs_dirty"]; got != "unknown" {
		t.Fatalf("vcs_dirty = %q, want unknown", got)
	}
}
