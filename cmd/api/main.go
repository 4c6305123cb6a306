// Package main - точка входа HTTP API сервиса подбора музыкальных совпадений.
//
// API отвечает за:
// - Синхронизацию профиля вкуса из музыкального каталога
// - Поиск кандидатов и лайки/отклонения
// - Список взаимных совпадений с ленивым пересчётом
// - Генерацию рекомендаций и плейлист понравившихся треков
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/config"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/command"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/query"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/infrastructure/external/catalog"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/infrastructure/persistence/memory"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/infrastructure/persistence/postgres"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/infrastructure/persistence/redis"
	httpserver "github.com/jakobreinwald/cs-130-project-sub000/internal/interface/http"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/interface/http/handlers"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// store - хранилище профилей и совпадений (PostgreSQL или in-memory).
type store interface {
	profile.Repository
	Matches() matching.Repository
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting API",
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или in-memory в development)
	// ─────────────────────────────────────────────────────────────────────────
	var repo store
	if cfg.Database.URL != "" {
		conn, err := setupDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database connection")
			conn.Close()
		}()
		repo = postgres.NewStore(conn)
		health.AddCheck("postgres", handlers.NewPingCheck(conn))
		health.AddOptionalCheck("postgres_pool", handlers.NewPoolCheck(conn))
	} else {
		log.Warn("DATABASE_URL is empty, using in-memory store")
		repo = memory.NewStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS: кэш треков и блокировки пользователей
	// ─────────────────────────────────────────────────────────────────────────
	var (
		trackCache music.TrackCache = memory.NewTrackCache()
		locker     shared.UserLocker = memory.NewLocker()
	)
	if !cfg.Redis.Disabled {
		cache, err := setupRedis(ctx, cfg)
		switch {
		case err == nil:
			defer func() {
				log.Info("closing Redis connection")
				_ = cache.Close()
			}()
			trackCache = redis.NewTrackCache(cache, log)
			locker = redis.NewUserLock(cache, redis.DefaultUserLockConfig(), log)
			health.AddCheck("redis", handlers.NewPingCheck(cache))
			log.Info("Redis connection established")
		case cfg.IsProduction():
			return fmt.Errorf("failed to connect to Redis: %w", err)
		default:
			log.Warn("Redis unavailable, using in-process cache and locks", logger.Err(err))
		}
	}
	locker = shared.WithWaitTimeout(locker, cfg.Engine.LockTimeout)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КЛИЕНТ МУЗЫКАЛЬНОГО КАТАЛОГА
	// ─────────────────────────────────────────────────────────────────────────
	catalogClient := catalog.NewClient(catalog.ClientConfig{
		BaseURL: cfg.Catalog.BaseURL,
		Timeout: cfg.Catalog.RequestTimeout,
		RateLimiter: catalog.RateLimiterConfig{
			RequestsPerSecond: cfg.Catalog.RateLimit,
			BurstSize:         cfg.Catalog.RateLimitBurst,
		},
		MaxRetries:         cfg.Catalog.MaxRetries,
		RetryBaseDelay:     cfg.Catalog.RetryBaseDelay,
		RetryMaxDelay:      cfg.Catalog.RetryMaxDelay,
		BreakerThreshold:   cfg.Catalog.CircuitBreakerThreshold,
		BreakerTimeout:     cfg.Catalog.CircuitBreakerTimeout,
		BreakerHalfOpenMax: cfg.Catalog.CircuitBreakerHalfOpenMax,
		Logger:             log,
		Debug:              cfg.App.Debug,
	})
	health.AddOptionalCheck("catalog", handlers.NewBreakerCheck(catalogClient))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	flags := cfg.Features
	rollout := make(map[string]int)
	for name, f := range flags.GetAllFeatures() {
		rollout[name] = f.RolloutPercent
	}
	log.Info("feature flags loaded", logger.Any("rollout", rollout))

	deps := httpserver.Dependencies{
		SyncProfile: command.NewSyncProfileHandler(repo, catalogClient, locker, flags, log,
			command.DefaultSyncProfileHandlerConfig()),
		DiscoverCandidates: command.NewDiscoverCandidatesHandler(repo, flags,
			command.DiscoverCandidatesHandlerConfig{Concurrency: cfg.Engine.DiscoveryConcurrency}),
		LikeCandidate:    command.NewLikeCandidateHandler(repo, repo.Matches(), locker, log, nil),
		DismissCandidate: command.NewDismissCandidateHandler(repo.Users(), locker),
		GetRecommendations: command.NewGetRecommendationsHandler(repo.Users(), catalogClient, trackCache, locker, log,
			command.GetRecommendationsConfig{
				BatchSize:   cfg.Engine.RecommendationBatchSize,
				MaxRounds:   cfg.Engine.MaxGenerationRounds,
				MaxCount:    cfg.Engine.MaxRequestedTracks,
				CallTimeout: cfg.Engine.CatalogCallTimeout,
				CacheTTL:    cfg.Catalog.TrackCacheTTL,
			}),
		LikeRecommendation: command.NewLikeRecommendationHandler(repo.Users(), catalogClient, locker, flags, log,
			cfg.Catalog.PlaylistName),
		DismissRecommendation: command.NewDismissRecommendationHandler(repo.Users(), trackCache, locker, log),

		GetMatches: query.NewGetMatchesHandler(repo, repo.Matches(), log,
			query.GetMatchesConfig{Concurrency: cfg.Engine.DiscoveryConcurrency}),
		GetPotentialMatches: query.NewGetPotentialMatchesHandler(repo.Users()),

		Logger:        log,
		HealthChecker: health,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes
	serverCfg.RateLimit = cfg.HTTP.RateLimit
	serverCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
	serverCfg.AllowedOrigins = cfg.HTTP.CORSAllowedOrigins
	serverCfg.Version = cfg.App.Version

	server := httpserver.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	if len(cfg.HTTP.APIKeyHashes) == 0 {
		log.Warn("API key auth is disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("server error", logger.Err(err))
			return err
		}
		return errors.New("server stopped unexpectedly")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.ParseFormat(cfg.Observability.LogFormat)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

// setupDatabase подключается к PostgreSQL и применяет миграции.
func setupDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	log.Info("connecting to database")

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := postgres.NewConnection(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(connectCtx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Count("applied", applied))
	}

	log.Info("database connection established")
	return conn, nil
}

// setupRedis подключается к Redis.
func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Cache, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return redis.NewCache(connectCtx, redis.Config{
		URL:          cfg.Redis.URL,
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	})
}
