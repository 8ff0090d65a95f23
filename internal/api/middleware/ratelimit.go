package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

type visitorLimiter struct {
	mu       sync.Mutex
	visitors map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

func (v *visitorLimiter) allow(key string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	le, ok := v.visitors[key]
	if !ok {
		le = &limiterEntry{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.visitors[key] = le
	}
	le.last = now
	return le.limiter.AllowN(now, 1)
}

// sweep drops visitors idle for longer than the idle window.
func (v *visitorLimiter) sweep(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k, e := range v.visitors {
		if now.Sub(e.last) > v.idle {
			delete(v.visitors, k)
		}
	}
}

func getIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies a per-client-IP token bucket limiter.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	vl := &visitorLimiter{
		visitors: map[string]*limiterEntry{},
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
	return func(next http.Handler) http.Handler {
		var calls atomic.Uint64
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			if calls.Add(1)%1024 == 0 {
				vl.sweep(now)
			}
			if !vl.allow(getIP(r), now) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
