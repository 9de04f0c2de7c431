package httpmw

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"
)

var totalDur = regexp.MustCompile(`^total;dur=\d+(\.\d{1,2})?$`)

func TestServerTiming_SetsTotal(t *testing.T) {
	h := ServerTiming(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got := rec.Header().Get("Server-Timing"); !totalDur.MatchString(got) {
		t.Fatalf("Server-Timing = %q", got)
	}
}

func TestServerTiming_MergesWithInnerContribution(t *testing.T) {
	h := ServerTiming(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server-Timing", "db;dur=5")
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	re := regexp.MustCompile(`^db;dur=5, total;dur=\d+(\.\d{1,2})?$`)
	if got := rec.Header().Get("Server-Timing"); !re.MatchString(got) {
		t.Fatalf("Server-Timing = %q", got)
	}
}

func TestServerTiming_NestedContributorsBothKept(t *testing.T) {
	h := ServerTiming(ServerTiming(http.HandlerFunc(okHandler)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	re := regexp.MustCompile(`^total;dur=[\d.]+, total;dur=[\d.]+$`)
	if got := rec.Header().Get("Server-Timing"); !re.MatchString(got) {
		t.Fatalf("Server-Timing = %q", got)
	}
}

func TestServerTiming_AppliesToErrors(t *testing.T) {
	h := ServerTiming(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody))

	if got := rec.Header().Get("Server-Timing"); !totalDur.MatchString(got) {
		t.Fatalf("Server-Timing = %q", got)
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.0"},
		{1500 * time.Microsecond, "1.5"},
		{1234567 * time.Nanosecond, "1.23"},
		{2 * time.Second, "2000.0"},
		{5*time.Millisecond + 2*time.Microsecond, "5.0"},
	}
	for _, tt := range tests {
		if got := formatMillis(tt.d); got != tt.want {
			t.Fatalf("formatMillis(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
