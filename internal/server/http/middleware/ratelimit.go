// Package middleware provides HTTP middleware for the grouppilot status API.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/brianly1003/grouppilot/internal/sync"
	"golang.org/x/time/rate"
)

// RateLimiter configuration defaults.
const (
	DefaultMaxRequests = 60
	DefaultWindow      = 1 * time.Minute
	DefaultCleanup     = 5 * time.Minute
)

// RateLimiter is a per-key token bucket: maxRequests tokens refilled
// evenly over window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	closeOnce sync.Once
	done      chan struct{}
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithMaxRequests sets the burst size and the number of requests per window.
func WithMaxRequests(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		if n > 0 {
			r.maxRequests = n
		}
	}
}

// WithWindow sets the refill window.
func WithWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		if d > 0 {
			r.window = d
		}
	}
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Close stops it.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		now:         time.Now,
		buckets:     make(map[string]*bucket),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.cleanupLoop()
	return r
}

func (r *RateLimiter) get(key string) *bucket {
	b, ok := r.buckets[key]
	if !ok {
		every := r.window / time.Duration(r.maxRequests)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), r.maxRequests)}
		r.buckets[key] = b
	}
	b.lastAccess = r.now()
	return b
}

// Allow takes one token for key and reports whether one was available.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(key).limiter.AllowN(r.now(), 1)
}

// Remaining returns the whole tokens left for key.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[key]
	if !ok {
		return r.maxRequests
	}
	tokens := int(b.limiter.TokensAt(r.now()))
	return max(tokens, 0)
}

// Limit returns the burst size.
func (r *RateLimiter) Limit() int {
	return r.maxRequests
}

// Reset forgets key.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buckets, key)
}

// Close stops the cleanup loop.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(DefaultCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

// cleanup drops buckets idle for two windows; they would be full anyway.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-2 * r.window)
	for key, b := range r.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// KeyExtractor derives the rate limit key of a request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys requests by the connection's remote IP. Forwarded
// headers are ignored; see security.ClientIPExtractor for proxied setups.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests over the limit with 429.
func RateLimitMiddleware(limiter *RateLimiter, keyExtractor KeyExtractor) func(http.Handler) http.Handler {
	if keyExtractor == nil {
		keyExtractor = IPKeyExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)

			if !limiter.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}
