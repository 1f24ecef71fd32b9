package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	rateLimitMax    = 100
	rateLimitWindow = time.Hour
)

// rateLimiter is a per-client sliding window counter. Timestamps outside the
// window are dropped on each check, so memory stays bounded by traffic.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string][]time.Time
	now     func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: map[string][]time.Time{},
		now:     time.Now,
	}
}

// allow records a request for the identifier and reports whether it fits in
// the current window.
func (l *rateLimiter) allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.clients[identifier][:0]
	for _, stamp := range l.clients[identifier] {
		if now.Sub(stamp) < l.window {
			recent = append(recent, stamp)
		}
	}

	if len(recent) >= l.limit {
		l.clients[identifier] = recent
		return false
	}
	l.clients[identifier] = append(recent, now)
	return true
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIdentifier(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":     "Rate limit exceeded",
				"timestamp": nowStamp(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIdentifier(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
