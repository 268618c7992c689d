// Package ratelimit limits state-changing requests per client with a fixed
// one-minute window.
package ratelimit

import (
	"net/http"
	"sync/atomic"
	"time"

	"energycalc/internal/cache"
)

const window = time.Minute

// Limiter counts requests per client IP.
type Limiter struct {
	clients *cache.LRUCache[*clientInfo]
	now     func() time.Time

	requestsPerMinute int
	exempt            map[string]struct{}
	hits              atomic.Int64
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// MaxClients bounds the tracked client set; the least recent is dropped.
	MaxClients int
	// ClientTTL drops clients idle this long.
	ClientTTL time.Duration
	// ExemptPaths are never counted, whatever the method.
	ExemptPaths []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		MaxClients:        10000,
		ClientTTL:         10 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.ClientTTL <= 0 {
		config.ClientTTL = def.ClientTTL
	}
	exempt := make(map[string]struct{}, len(config.ExemptPaths))
	for _, p := range config.ExemptPaths {
		exempt[p] = struct{}{}
	}
	return &Limiter{
		clients:           cache.NewLRUCache[*clientInfo](config.MaxClients, config.ClientTTL),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		exempt:            exempt,
	}
}

// Allow counts a request from clientIP and reports whether it is within the
// client's budget for the current window.
func (rl *Limiter) Allow(clientIP string) bool {
	now := rl.now()
	allowed := true
	rl.clients.Update(clientIP, func(client *clientInfo, found bool) *clientInfo {
		if !found || now.Sub(client.windowStart) >= window {
			return &clientInfo{windowStart: now, requests: 1}
		}
		client.requests++
		allowed = client.requests <= rl.requestsPerMinute
		return client
	})
	if !allowed {
		rl.hits.Add(1)
	}
	return allowed
}

// Cache exposes the client table for periodic cleanup.
func (rl *Limiter) Cache() cache.Cleaner {
	return rl.clients
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.clients.Size()
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.hits.Load(),
		ClientCount: int64(rl.clients.Size()),
	}
}

// Middleware limits non-GET requests outside the exempt paths. onLimit may
// be nil.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || rl.isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", "60")
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *Limiter) isExempt(path string) bool {
	_, ok := rl.exempt[path]
	return ok
}
