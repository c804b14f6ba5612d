package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/wagerledger/internal/adapter/http"
	"github.com/iho/wagerledger/internal/adapter/http/handler"
	"github.com/iho/wagerledger/internal/adapter/http/middleware"
	"github.com/iho/wagerledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/wagerledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/wagerledger/internal/adapter/repository/redis"
	"github.com/iho/wagerledger/internal/adapter/ws"
	"github.com/iho/wagerledger/internal/infrastructure/auth"
	"github.com/iho/wagerledger/internal/infrastructure/config"
	"github.com/iho/wagerledger/internal/infrastructure/eventpublisher"
	"github.com/iho/wagerledger/internal/infrastructure/logger"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
	"github.com/iho/wagerledger/internal/infrastructure/postgres"
	"github.com/iho/wagerledger/internal/infrastructure/ratesource"
	"github.com/iho/wagerledger/internal/infrastructure/redis"
	"github.com/iho/wagerledger/internal/usecase"
)

const limiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "wagerledger",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

// run serves until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		// Sockets are hijacked connections and are not drained by Shutdown.
		a.hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.publisher.Start(gctx)
	})

	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Run(gctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := a.limiter.CleanupIdle(limiterIdle); n > 0 {
					log.Debug().Int("removed", n).Msg("pruned idle rate limiters")
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// app is the wired service.
type app struct {
	handler   http.Handler
	ledger    *usecase.BalanceLedger
	hub       *ws.Hub
	limiter   *middleware.RateLimiter
	publisher *eventpublisher.EventPublisher
	relay     *redisRepo.BalanceRelay
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage is the persistence backend selected by STORAGE_DRIVER.
type storage struct {
	txManager    usecase.TransactionManager
	accounts     usecase.AccountRepository
	transactions usecase.TransactionRepository
	rounds       usecase.GameRoundRepository
	outbox       usecase.OutboxRepository
	retrier      usecase.Retrier
	check        handler.HealthCheck
	close        func()
}

func newStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		store := memory.NewStore()
		log.Warn().Msg("using in-memory storage, balances are lost on restart")

		return &storage{
			txManager:    memory.NewTxManager(store),
			accounts:     memory.NewAccountRepository(store),
			transactions: memory.NewTransactionRepository(store),
			rounds:       memory.NewGameRoundRepository(store),
			outbox:       memory.NewOutboxRepository(store),
			close:        func() {},
		}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(connectCtx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		MaxConnLifetime: cfg.DatabaseConnTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &storage{
		txManager:    postgresRepo.NewTxManager(pool),
		accounts:     postgresRepo.NewAccountRepository(pool),
		transactions: postgresRepo.NewTransactionRepository(pool),
		rounds:       postgresRepo.NewGameRoundRepository(pool),
		outbox:       postgresRepo.NewOutboxRepository(pool),
		retrier:      postgresRepo.NewRetrier(log),
		check:        pool.Ping,
		close:        pool.Close,
	}, nil
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg *prometheus.Registry) (*app, error) {
	m := metrics.New(reg)
	a := &app{}
	checks := map[string]handler.HealthCheck{}

	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.close)
	if store.check != nil {
		checks["postgres"] = store.check
	}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL, redis.Options{
			ClientName: "wagerledger",
			PoolSize:   cfg.RedisPoolSize,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = redis.Check(redisClient)
		log.Info().Msg("connected to redis")
	}

	idGen := postgresRepo.NewULIDGenerator()

	var provider usecase.RateProvider
	if cfg.RatesURL != "" {
		provider = ratesource.NewHTTPProvider(ratesource.Config{
			URL:    cfg.RatesURL,
			Client: &http.Client{Timeout: cfg.RatesFetchTimeout},
			Logger: log,
		})
	} else {
		log.Warn().Msg("RATES_URL not set, serving fallback exchange rates")
	}

	var rateCache usecase.RateCache
	if redisClient != nil {
		rateCache = redisRepo.NewRateCache(redisClient, cfg.RatesCacheKey)
	}

	converter := usecase.NewCurrencyConverter(usecase.ConverterConfig{
		Provider:     provider,
		Cache:        rateCache,
		TTL:          cfg.RatesTTL,
		FetchTimeout: cfg.RatesFetchTimeout,
		Logger:       log,
		Metrics:      m,
	})

	engine := usecase.NewGameOutcomeEngine(usecase.EngineConfig{
		Converter:       converter,
		Rules:           cfg.GameRules,
		IDGen:           idGen,
		Ceiling:         &cfg.HouseEdgeCeiling,
		CeilingCurrency: cfg.HouseEdgeCurrency,
	})

	a.hub = ws.NewHub(ws.Config{
		ResolveUser:  middleware.UserIDFromRequest,
		SendBuffer:   cfg.WSSendBuffer,
		PingInterval: cfg.WSPingInterval,
		Logger:       log,
		Metrics:      m,
	})

	var notifier usecase.BalanceNotifier = a.hub
	if redisClient != nil {
		a.relay = redisRepo.NewBalanceRelay(redisClient, cfg.BalanceChannel, idGen.Generate(), a.hub, log, m,
			redisRepo.WithPublishTimeout(cfg.BalancePublishTimeout))
		notifier = a.relay
	}

	a.ledger = usecase.NewBalanceLedger(usecase.LedgerConfig{
		TxManager:       store.txManager,
		Accounts:        store.accounts,
		Transactions:    store.transactions,
		Rounds:          store.rounds,
		Outbox:          store.outbox,
		Converter:       converter,
		Engine:          engine,
		Notifier:        notifier,
		IDGen:           idGen,
		Retrier:         store.retrier,
		DefaultCurrency: cfg.DefaultCurrency,
		Logger:          log,
		Metrics:         m,
	})

	var sink eventpublisher.Publisher = eventpublisher.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := eventpublisher.NewKafkaPublisher(eventpublisher.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		a.closers = append(a.closers, func() { _ = kafkaPublisher.Close() })
		sink = kafkaPublisher
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	}

	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  sink,
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})

	var (
		jwtManager  *auth.JWTManager
		authHandler *handler.AuthHandler
	)
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
		authHandler = handler.NewAuthHandler(jwtManager)
	}
	if !cfg.AuthEnabled {
		jwtManager = nil
		log.Warn().Msg("token auth disabled, trusting the X-User-ID header")
	}

	var idempotencyStore usecase.IdempotencyStore
	if redisClient != nil && cfg.IdempotencyRedis {
		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	}

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		WalletHandler:    handler.NewWalletHandler(a.ledger),
		GameHandler:      handler.NewGameHandler(a.ledger),
		RatesHandler:     handler.NewRatesHandler(converter),
		HealthHandler:    handler.NewHealthHandler(checks),
		AuthHandler:      authHandler,
		Users:            middleware.NewUserResolver(jwtManager, m),
		Realtime:         a.hub,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      a.limiter,
		Metrics:          m,
		Logger:           log,
	})

	return a, nil
}
