package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tazhibayda/identity-service/internal/metrics"
	"go.uber.org/zap"
)

// Counter counts hits on key within a fixed window and reports how long the
// window has left. repo.Redis implements it.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is the single-process fallback when Redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{buckets: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		m.buckets[key] = b
		m.sweep(now)
	}
	b.count++
	return b.count, b.resetAt.Sub(now), nil
}

// sweep drops expired windows once the map grows.
func (m *MemoryCounter) sweep(now time.Time) {
	if len(m.buckets) < 10000 {
		return
	}
	for k, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, k)
		}
	}
}

type RateLimitConfig struct {
	Max       int
	Window    time.Duration
	KeyPrefix string
	// Skip lists path prefixes whose GET requests are never limited.
	Skip []string
}

// OAuth round trips are never limited: a blocked callback strands the user
// half way through the provider handshake.
var DefaultRateLimitSkip = []string{
	"/api/auth/session",
	"/api/auth/providers",
	"/api/auth/signin",
	"/api/auth/callback",
	"/api/auth/signout",
}

// RateLimit is a fixed-window limiter per client IP and route. Counter
// errors let the request through.
func RateLimit(counter Counter, cfg RateLimitConfig, l *zap.Logger) gin.HandlerFunc {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl"
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method == http.MethodGet {
			for _, p := range cfg.Skip {
				if strings.HasPrefix(path, p) {
					c.Next()
					return
				}
			}
		}
		route := c.FullPath()
		if route == "" {
			route = path
		}
		ip := ClientIP(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		count, ttl, err := counter.Hit(ctx, cfg.KeyPrefix+":"+ip+":"+route, cfg.Window)
		cancel()
		if err != nil {
			l.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		retryAfter := int(ttl.Seconds())
		if retryAfter <= 0 {
			retryAfter = int(cfg.Window.Seconds())
		}
		remaining := int64(cfg.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Max) {
			metrics.RateLimited.WithLabelValues(route).Inc()
			l.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("route", route))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
