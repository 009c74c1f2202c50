package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-service/config"
	httpHandler "wallet-service/internal/adapter/http/handler"
	"wallet-service/internal/adapter/storage/memory"
	pgStorage "wallet-service/internal/adapter/storage/postgres"
	redisStorage "wallet-service/internal/adapter/storage/redis"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/service"
	"wallet-service/pkg/logger"
	"wallet-service/pkg/metrics"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// storage bundles what the service needs from the selected backend.
type storage struct {
	repo       ports.WalletRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	cfg, err := config.Load(os.Getenv("WLT_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting wallet service")

	ctx := context.Background()
	m := metrics.New()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to initialise storage")
	}
	defer store.close()

	healthCheckers := store.health

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("Redis connected")
	}

	var limiter ports.RateLimiter
	switch cfg.RateLimit.Backend {
	case config.RateLimitRedis:
		limiter = redisStorage.NewRateLimitStore(rdb)
	case config.RateLimitMemory:
		limiter = memory.NewRateLimiter()
	}

	walletSvc := service.NewWalletService(store.repo, store.transactor, m, cfg.Database.TxTimeout, log)
	auditSvc := service.NewAuditService(log)

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		AuditSvc:       auditSvc,
		RateLimiter:    limiter,
		RateLimit:      cfg.RateLimit,
		HealthCheckers: healthCheckers,
		Metrics:        m,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage prepares the configured wallet store. For postgres this
// creates the database and applies migrations when enabled.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store := memory.NewStore(cfg.Database.LockTimeout)
		log.Warn().Msg("Using in-memory wallet store; balances are lost on restart")
		return &storage{repo: store, transactor: store, close: func() {}}, nil

	case config.DriverPostgres:
		if cfg.Database.AutoCreate {
			if err := pgStorage.EnsureDatabase(ctx, cfg.Database, log); err != nil {
				return nil, fmt.Errorf("ensure database: %w", err)
			}
		}

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		log.Info().Str("database", cfg.Database.DBName).Msg("PostgreSQL connected")

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		return &storage{
			repo:       pgStorage.NewWalletRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:      pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
