// Package main is the entry point of the ZenSync achievement API.
//
// The server records meditation sessions, evaluates them against the milestone
// table and keeps a permanent ledger of awarded achievements that anyone can verify.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Gideonite22/zensync-meditation-assets/config"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/command"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/eventhandler"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/query"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/auth"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/messaging"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/metrics"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/memory"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/postgres"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/redis"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/signing"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/tracing"
	httpapi "github.com/Gideonite22/zensync-meditation-assets/internal/interface/http"
	"github.com/Gideonite22/zensync-meditation-assets/internal/interface/http/health"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/retry"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// storage is what the selected driver provides to the handlers.
type storage struct {
	uow    progress.UnitOfWork
	stores progress.Stores
	groups group.Store
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging, tracing, metrics
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:      os.Stdout,
		Level:       logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller:   true,
		Development: cfg.Observability.LogDevelopment,
	}).Named(cfg.App.Name)
	defer func() { _ = log.Sync() }()

	log.Info("starting zensync",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("timezone", cfg.Engine.Timezone),
	)

	shutdownTracing, err := tracing.Init(ctx, log, tracing.Config{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		SampleRatio: cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", logger.Err(err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New(cfg.Observability.MetricsNamespace)
	}

	checker := health.NewChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Storage
	// ─────────────────────────────────────────────────────────────────────────
	store, closeStore, err := openStorage(ctx, cfg, log, checker)
	if err != nil {
		return err
	}
	defer closeStore()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		reader      progress.AchievementReader = store.stores.Ledger
		sessionOpts []command.RecordSessionOption
	)
	if cfg.Features.IsEnabled(config.FeatureRedisLocking) || cfg.Features.IsEnabled(config.FeatureAchievementCache) {
		cache, err := redis.NewCache(ctx, redisConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = cache.Close() }()
		checker.AddCheck("redis", health.PingCheck(cache))
		log.Info("redis connection established", logger.String("addr", redisConfig(cfg).Addr()))

		if cfg.Features.IsEnabled(config.FeatureRedisLocking) {
			sessionOpts = append(sessionOpts, command.WithUserLocker(
				redis.NewLocker(cache, cfg.Redis.LockTTL, cfg.Redis.LockWait, log),
			))
		}
		if cfg.Features.IsEnabled(config.FeatureAchievementCache) {
			reader = redis.NewAchievementCache(cache, store.stores.Ledger, cfg.Redis.AchievementTTL, m, log)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Metrics = m
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	}()

	if err := eventhandler.NewAuditLogHandler(log).Register(bus); err != nil {
		return fmt.Errorf("failed to register audit handler: %w", err)
	}
	if m != nil {
		if err := eventhandler.NewProgressMetricsHandler(m).Register(bus); err != nil {
			return fmt.Errorf("failed to register metrics handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := progress.NewEngine(cfg.EngineConfig())
	if err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	zone := cfg.Zone()
	clock := timeutil.NewSystemClock(zone)

	var signer sharing.Signer
	if key := cfg.SigningKey(); key != nil && cfg.Features.IsEnabled(config.FeatureAttestationSigning) {
		s, err := signing.NewBlake2bSigner(key)
		if err != nil {
			return fmt.Errorf("invalid signing key: %w", err)
		}
		signer = s
	} else {
		log.Warn("attestation signing disabled, shared achievements will be unsigned")
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTExpiry)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpapi.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.AllowedOrigins = splitOrigins(cfg.HTTP.CORSAllowOrigin)
	srvCfg.RateLimitRPS = cfg.HTTP.RateLimitRPS
	srvCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
	srvCfg.Version = cfg.App.Version
	if cfg.Observability.TracingEnabled {
		srvCfg.ServiceName = cfg.App.Name
	}

	srv := httpapi.NewServer(srvCfg, httpapi.Dependencies{
		RecordSession:     command.NewRecordSessionHandler(store.uow, engine, clock, bus, log, sessionOpts...),
		ShareAchievement:  command.NewShareAchievementHandler(reader, store.groups, signer, clock, bus, log),
		Groups:            command.NewManageGroupHandler(store.groups, clock, bus, log),
		GetProgress:       query.NewGetProgressHandler(store.stores.Aggregates, store.stores.Ledger, zone),
		VerifyAchievement: query.NewVerifyAchievementHandler(reader),
		VerifyAttestation: query.NewVerifyAttestationHandler(reader, signer),
		Tokens:            tokens,
		Health:            checker,
		Metrics:           m,
		Logger:            log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Run until signalled
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("received shutdown signal", logger.String("timeout", cfg.App.ShutdownTimeout.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openStorage connects the configured driver and registers its health check.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger, checker *health.Checker) (*storage, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		mem := memory.NewStore()
		return &storage{
			uow: mem,
			stores: progress.Stores{
				Events:     mem.Events(),
				Aggregates: mem.Aggregates(),
				Ledger:     mem.Ledger(),
			},
			groups: memory.NewGroupStore(),
		}, func() {}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database...")
	var conn *postgres.Connection
	connect := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})
	if err := connect.Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, pgCfg)
		if postgres.IsPermanentConnectError(err) {
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}
		conn = c
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		n, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", n))
	}

	checker.AddCheck("postgres", health.PingCheck(conn))
	uow := postgres.NewUnitOfWork(conn)
	return &storage{
		uow:    uow,
		stores: uow.Stores(),
		groups: postgres.NewGroupRepository(conn),
	}, conn.Close, nil
}

func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	return rc
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
