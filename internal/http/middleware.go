package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tazhibayda/identity-service/internal/log"
	"github.com/tazhibayda/identity-service/internal/metrics"
	"github.com/tazhibayda/identity-service/internal/queue"
	"github.com/tazhibayda/identity-service/internal/security"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	uidKey          = "uid"
	emailKey        = "email"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(queue.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

const (
	cspProd = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' data:; connect-src 'self' https:; frame-ancestors 'none'; base-uri 'self'; form-action 'self';"
	cspDev  = "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' data:; connect-src 'self' https:; frame-ancestors 'none'; base-uri 'self'; form-action 'self';"
)

func SecurityHeaders(dev bool) gin.HandlerFunc {
	csp := cspProd
	if dev {
		csp = cspDev
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Del("X-Powered-By")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Download-Options", "noopen")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", csp)
		c.Next()
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.InFlight.Inc()
		start := time.Now()
		c.Next()
		metrics.InFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func AccessLog(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l := log.WithDD(c.Request.Context(), base,
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDHeader)),
		)
		switch s := c.Writer.Status(); {
		case s >= 500:
			l.Error("http request")
		case s == http.StatusNotFound:
			l.Warn("http request", zap.String("path", c.Request.URL.Path), zap.String("ip", ClientIP(c)))
		default:
			l.Info("http request")
		}
	}
}

func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}
	return ip
}

// TokenParser verifies session tokens. security.Issuer implements it.
type TokenParser interface {
	Parse(token string) (*security.Claims, error)
}

func AuthJWT(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := p.Parse(strings.TrimSpace(h[len("Bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		uid := claims.UID
		if uid == "" {
			uid = claims.Subject
		}
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(uidKey, uid)
		c.Set(emailKey, claims.Email)
		c.Next()
	}
}
