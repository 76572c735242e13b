package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmgender/pkg/monitoring"
)

const (
	maxClients = 10000
	clientTTL  = 3 * time.Minute
)

// ClientLimiter gives every client IP its own token bucket. Buckets are
// forgotten clientTTL after they were created, the least recently used
// first when more than maxClients are tracked.
type ClientLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	clients *expirable.LRU[string, *rate.Limiter]
}

// NewClientLimiter allows r requests per second per IP with bursts of b.
func NewClientLimiter(r rate.Limit, b int) *ClientLimiter {
	return newClientLimiter(r, b, maxClients, clientTTL)
}

func newClientLimiter(r rate.Limit, b, size int, ttl time.Duration) *ClientLimiter {
	return &ClientLimiter{
		rate:    r,
		burst:   max(b, 1),
		clients: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
	}
}

func (l *ClientLimiter) bucket(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.clients.Get(ip); ok {
		return b
	}
	b := rate.NewLimiter(l.rate, l.burst)
	l.clients.Add(ip, b)
	return b
}

// Middleware answers 429 to the requests over their client's rate.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.bucket(clientIP(r)).Allow() {
			monitoring.RecordError("http", "rate_limited")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the proxy headers when they carry a valid address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
