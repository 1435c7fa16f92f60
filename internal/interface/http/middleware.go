package http

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
)

const (
	headerRequestID = "X-Request-ID"
	ctxKeyRequestID = "request_id"
	ctxKeyUserID    = "user_id"
)

func requestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// currentUser returns the authenticated principal set by authMiddleware.
func currentUser(c *gin.Context) shared.UserID {
	return shared.UserID(c.GetString(ctxKeyUserID))
}

// requestIDMiddleware propagates or generates a request id and a request-scoped logger.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), s.logger.WithRequestID(id)))
		c.Next()
	}
}

// loggingMiddleware logs every request once it completes.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String("ip", c.ClientIP()),
			logger.String("request_id", requestID(c)),
		}
		if user := currentUser(c); user != "" {
			fields = append(fields, logger.UserID(user.String()))
		}

		switch {
		case status >= 500:
			s.logger.Error("http request", fields...)
		case status >= 400:
			s.logger.Warn("http request", fields...)
		default:
			s.logger.Info("http request", fields...)
		}
	}
}

// recoveryMiddleware turns panics into 500 responses.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", c.Request.URL.Path),
					logger.String("request_id", requestID(c)),
				)
				writeJSONError(c, http.StatusInternalServerError, &APIError{
					Code:    "internal_error",
					Message: "an unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// metricsMiddleware records request counts and latency by route template.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	m := s.deps.Metrics
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// corsMiddleware adds CORS headers for allowed origins.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				c.Header("Access-Control-Max-Age", "86400")
				break
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authMiddleware requires a valid bearer token and stores the user id.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") || s.deps.Tokens == nil {
			writeJSONError(c, http.StatusUnauthorized, &APIError{Code: "unauthorized", Message: "missing bearer token"})
			return
		}
		user, err := s.deps.Tokens.Verify(strings.TrimSpace(header[7:]))
		if err != nil {
			writeJSONError(c, http.StatusUnauthorized, &APIError{Code: "unauthorized", Message: "invalid or expired token"})
			return
		}
		c.Set(ctxKeyUserID, user.String())
		c.Next()
	}
}

// rateLimitMiddleware applies a token bucket per client IP.
func (s *Server) rateLimitMiddleware(l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			if s.deps.Metrics != nil {
				s.deps.Metrics.HTTPRateLimited.Inc()
			}
			c.Header("Retry-After", "1")
			writeJSONError(c, http.StatusTooManyRequests, &APIError{
				Code:    "rate_limit_exceeded",
				Message: "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// clientLimiter keeps one limiter per key and drops idle ones on a sweep.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		clients:   make(map[string]*clientEntry),
		limit:     rate.Limit(rps),
		burst:     burst,
		idle:      3 * time.Minute,
		lastSweep: time.Now(),
	}
}

func (l *clientLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.idle {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
