package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/titiler-go/internal/httpmw"
)

const (
	DefaultPerSecond   = 20
	DefaultBurst       = 100
	DefaultTTL         = 5 * time.Minute
	DefaultMaxVisitors = 100000

	retryAfter = "30"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// first-denial hook already fired; reset by eviction
	logged bool
}

// IPLimiter holds per-IP limiters keyed by the resolved client address.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	perSecond   rate.Limit
	burst       int
	ttl         time.Duration
	maxVisitors int

	// capacity hook already fired; reset once eviction frees a slot
	atCapacity bool

	onFirstDenied func(ip string)
	onDenied      func(ip string)
	onCapacity    func()
}

type Option func(*IPLimiter)

// WithRate sets the refill rate and bucket size. WithRate(20, 100) allows
// 100 requests at once, then 20 per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL controls how long an idle IP stays in the map.
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) { l.ttl = d }
}

// WithMaxVisitors caps the number of tracked IPs. Zero disables the cap.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) { l.maxVisitors = n }
}

// WithOnFirstDenied runs once per visitor on its first denial, for logging.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onFirstDenied = fn }
}

// WithOnDenied runs on every denial, for counters.
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onDenied = fn }
}

// WithOnCapacity runs when the visitor cap first refuses an address.
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) { l.onCapacity = fn }
}

// New creates an IPLimiter. The eviction goroutine runs until ctx is done.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		perSecond:   DefaultPerSecond,
		burst:       DefaultBurst,
		ttl:         DefaultTTL,
		maxVisitors: DefaultMaxVisitors,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// allow reports whether ip may proceed. Hooks run after the lock is
// released.
func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			fire := !l.atCapacity
			l.atCapacity = true
			l.mu.Unlock()
			if fire && l.onCapacity != nil {
				l.onCapacity()
			}
			return false
		}
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	allowed := v.limiter.Allow()

	first := false
	if !allowed && !v.logged {
		v.logged = true
		first = true
	}
	l.mu.Unlock()

	if allowed {
		return true
	}
	if first && l.onFirstDenied != nil {
		l.onFirstDenied(ip)
	}
	if l.onDenied != nil {
		l.onDenied(ip)
	}
	return false
}

// cleanup evicts visitors idle for longer than the TTL, checking every
// TTL/2.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
	if l.maxVisitors == 0 || len(l.visitors) < l.maxVisitors {
		l.atCapacity = false
	}
}

// Middleware answers 429 with a JSON detail body for clients over their
// budget. The client address comes from httpmw.ClientIP.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(httpmw.ClientIPFromContext(r.Context())) {
			w.Header().Set("Retry-After", retryAfter)
			// no detail about limits or refill time
			httpmw.WriteDetail(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
