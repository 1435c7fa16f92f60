// Package http implements the REST API: session recording, progress, achievement
// verification and sharing, groups, health checks and metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Gideonite22/zensync-meditation-assets/internal/application/command"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/query"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/metrics"
	"github.com/Gideonite22/zensync-meditation-assets/internal/interface/http/health"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// AllowedOrigins for CORS; empty disables CORS headers.
	AllowedOrigins []string

	// RateLimitRPS is the per-client request rate (0 = disabled).
	RateLimitRPS   float64
	RateLimitBurst int

	// ServiceName is reported on server spans; empty disables tracing middleware.
	ServiceName string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		Version:        "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier resolves a bearer token to the authenticated user.
type TokenVerifier interface {
	Verify(token string) (shared.UserID, error)
}

// Dependencies contains everything the handlers call.
type Dependencies struct {
	// Commands
	RecordSession    *command.RecordSessionHandler
	ShareAchievement *command.ShareAchievementHandler
	Groups           *command.ManageGroupHandler

	// Queries
	GetProgress       *query.GetProgressHandler
	VerifyAchievement *query.VerifyAchievementHandler
	VerifyAttestation *query.VerifyAttestationHandler

	Tokens  TokenVerifier
	Health  *health.Checker
	Metrics *metrics.Metrics // optional
	Logger  *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.logger = s.logger.Named("http")
	if s.deps.Health == nil {
		s.deps.Health = health.NewChecker(config.Version)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.engine,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupMiddleware() {
	// Recovery first so it also covers panics in the other middleware.
	s.engine.Use(s.recoveryMiddleware())
	s.engine.Use(s.requestIDMiddleware())
	if s.config.ServiceName != "" {
		s.engine.Use(otelgin.Middleware(s.config.ServiceName))
	}
	s.engine.Use(s.loggingMiddleware())
	if s.deps.Metrics != nil {
		s.engine.Use(s.metricsMiddleware())
	}
	if len(s.config.AllowedOrigins) > 0 {
		s.engine.Use(s.corsMiddleware())
	}
	if s.config.RateLimitRPS > 0 {
		s.engine.Use(s.rateLimitMiddleware(newClientLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)))
	}
}

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/live", s.handleLive)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := s.engine.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Public Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	v1.GET("/achievements/:id", s.handleVerifyAchievement)
	v1.POST("/attestations/verify", s.handleVerifyAttestation)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	authed := v1.Group("", s.authMiddleware())
	authed.POST("/sessions", s.handleRecordSession)
	authed.GET("/me/progress", s.handleGetProgress)
	authed.POST("/achievements/:id/share", s.handleShareAchievement)
	authed.POST("/groups", s.handleCreateGroup)
	authed.POST("/groups/:id/members", s.handleJoinGroup)
	authed.DELETE("/groups/:id/members/me", s.handleLeaveGroup)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
