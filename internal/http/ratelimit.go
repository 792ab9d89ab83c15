package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applog "financeflow/internal/log"
)

var rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "financeflow_http_rate_limited_total",
	Help: "Requests rejected by the per-client rate limiter.",
})

// rateLimiter applies a fixed per-minute request budget per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow

	perMinute int
	stop      chan struct{}
	stopOnce  sync.Once
}

type clientWindow struct {
	windowStart time.Time
	requests    int
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		clients:   make(map[string]*clientWindow),
		perMinute: perMinute,
		stop:      make(chan struct{}),
	}
	go rl.cleanupLoop(5 * time.Minute)
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[clientIP]
	if !ok || now.Sub(c.windowStart) > time.Minute {
		rl.clients[clientIP] = &clientWindow{windowStart: now, requests: 1}
		return true
	}

	c.requests++
	return c.requests <= rl.perMinute
}

func (rl *rateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) removeStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, c := range rl.clients {
		if c.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) shutdown() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			rateLimitRejections.Inc()
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, ip,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
