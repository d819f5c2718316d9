package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/splitledger/internal/adapter/http"
	"github.com/iho/splitledger/internal/adapter/http/handler"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/splitledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/splitledger/internal/adapter/repository/redis"
	sqliteRepo "github.com/iho/splitledger/internal/adapter/repository/sqlite"
	"github.com/iho/splitledger/internal/infrastructure/auth"
	"github.com/iho/splitledger/internal/infrastructure/config"
	"github.com/iho/splitledger/internal/infrastructure/eventpublisher"
	"github.com/iho/splitledger/internal/infrastructure/logger"
	"github.com/iho/splitledger/internal/infrastructure/metrics"
	"github.com/iho/splitledger/internal/infrastructure/postgres"
	"github.com/iho/splitledger/internal/infrastructure/redis"
	"github.com/iho/splitledger/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	l := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = l

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal().Err(err).Msg("server failed")
	}

	l.Info().Msg("server stopped")
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, l zerolog.Logger) error {
	a, err := newApp(ctx, cfg, l, metrics.New())
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.dispatcher.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.rateLimiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.rateLimiter.CleanupLimiters(5 * time.Minute)
				}
			}
		})
	}

	g.Go(func() error {
		l.Info().Str("port", cfg.HTTPPort).Str("backend", cfg.StorageBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// app is the wired server, ready to be mounted on an http.Server.
type app struct {
	handler     http.Handler
	dispatcher  *eventpublisher.Dispatcher
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage is one backend's repositories.
type storage struct {
	txManager usecase.TransactionManager
	contexts  usecase.ContextRepository
	entries   usecase.EntryRepository
	retrier   usecase.Retrier
	check     handler.Check
	close     func()
}

func openStorage(ctx context.Context, cfg *config.Config, l zerolog.Logger, m *metrics.Metrics) (*storage, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("run postgres migrations: %w", err)
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		l.Info().Msg("connected to postgres")

		return &storage{
			txManager: postgresRepo.NewTxManager(pool),
			contexts:  postgresRepo.NewContextRepository(pool),
			entries:   postgresRepo.NewEntryRepository(pool),
			retrier:   postgresRepo.NewRetrier(postgresRepo.WithLogger(l), postgresRepo.WithRetryHook(m.StorageRetried)),
			check:     pingPool(pool),
			close:     pool.Close,
		}, nil

	case config.BackendSQLite:
		db, err := sqliteRepo.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		l.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")

		return &storage{
			txManager: sqliteRepo.NewTxManager(db),
			contexts:  sqliteRepo.NewContextRepository(db),
			entries:   sqliteRepo.NewEntryRepository(db),
			retrier:   sqliteRepo.NewRetrier(l),
			check:     pingDB(db),
			close:     func() { db.Close() },
		}, nil

	case config.BackendMemory:
		store := memory.NewStore()
		l.Warn().Msg("using in-memory storage, data is lost on restart")

		return &storage{
			txManager: memory.NewTxManager(store),
			contexts:  memory.NewContextRepository(store),
			entries:   memory.NewEntryRepository(store),
			close:     func() {},
		}, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func pingPool(pool *pgxpool.Pool) handler.Check {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func pingDB(db *sql.DB) handler.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func pingRedis(client *goredis.Client) handler.Check {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

func newPublisher(cfg *config.Config, l zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return eventpublisher.NewLogPublisher(l), func() {}, nil
	}

	p, err := eventpublisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to amqp: %w", err)
	}
	l.Info().Str("exchange", cfg.AMQPExchange).Msg("connected to amqp")

	return p, func() { p.Close() }, nil
}

// newApp wires storage, cache, events, use cases and the router.
func newApp(ctx context.Context, cfg *config.Config, l zerolog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	store, err := openStorage(ctx, cfg, l, m)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.close)

	checks := map[string]handler.Check{}
	if store.check != nil {
		checks[cfg.StorageBackend] = store.check
	}

	var (
		cache            usecase.BalanceCache
		idempotencyStore usecase.IdempotencyStore
	)
	if cfg.CacheEnabled && cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
		if err != nil {
			return fail(fmt.Errorf("connect to redis: %w", err))
		}
		a.closers = append(a.closers, func() { client.Close() })
		l.Info().Msg("connected to redis")

		cache = redisRepo.NewBalanceCache(client, cfg.CacheTTL)
		idempotencyStore = redisRepo.NewIdempotencyStore(client)
		checks["redis"] = pingRedis(client)
	}

	publisher, closePublisher, err := newPublisher(cfg, l)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closePublisher)
	a.dispatcher = eventpublisher.NewDispatcher(eventpublisher.Config{Publisher: publisher, Logger: l})

	idGen := postgresRepo.NewULIDGenerator()

	// Initialize use cases
	entryOpts := []usecase.EntryOption{
		usecase.WithEventPublisher(a.dispatcher),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	}
	if cache != nil {
		entryOpts = append(entryOpts, usecase.WithBalanceCache(cache))
	}
	if store.retrier != nil {
		entryOpts = append(entryOpts, usecase.WithRetrier(store.retrier))
	}

	contextUC := usecase.NewContextUseCase(store.txManager, store.contexts, idGen, a.dispatcher, m, l, cfg.DefaultCurrency)
	entryUC := usecase.NewEntryUseCase(store.txManager, store.contexts, store.entries, idGen, entryOpts...)
	balanceUC := usecase.NewBalanceUseCase(store.contexts, store.entries, cache, m, l, cfg.DefaultCurrency)
	ledgerUC := usecase.NewLedgerUseCase(store.contexts, store.entries)

	routerCfg := httpAdapter.RouterConfig{
		ContextHandler:   handler.NewContextHandler(contextUC),
		EntryHandler:     handler.NewEntryHandler(entryUC, contextUC),
		BalanceHandler:   handler.NewBalanceHandler(balanceUC, contextUC),
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		HealthHandler:    handler.NewHealthHandler(checks),
		AuthHandler:      handler.NewAuthHandler(),
		AuthFailures:     m.AuthFailures,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Logger:           l,
	}

	if cfg.AuthEnabled {
		routerCfg.Authenticator = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	} else {
		l.Warn().Msg("authentication disabled, trusting " + middleware.UserIDHeader + " header")
	}

	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithHitCounter(m.RateLimitHits)
		routerCfg.RateLimiter = a.rateLimiter
	}

	a.handler = httpAdapter.NewRouter(routerCfg)
	return a, nil
}
