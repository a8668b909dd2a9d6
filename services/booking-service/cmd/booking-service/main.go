package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pointme/pointme/libs/auth"
	"github.com/pointme/pointme/libs/config"
	"github.com/pointme/pointme/libs/db"
	"github.com/pointme/pointme/libs/grpcx"
	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/libs/kafkax"
	otelx "github.com/pointme/pointme/libs/otel"
	"github.com/pointme/pointme/libs/runtime"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/consumer"
	"github.com/pointme/pointme/services/booking-service/internal/handlers"
	"github.com/pointme/pointme/services/booking-service/internal/inbox"
	"github.com/pointme/pointme/services/booking-service/internal/outbox"
	"github.com/pointme/pointme/services/booking-service/internal/payments"
	"github.com/pointme/pointme/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := runtime.LoadDotenv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("booking service failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}
	settings, err := config.LoadPlatformSettings(config.String("PLATFORM_SETTINGS_FILE", ""))
	if err != nil {
		return err
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		return err
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.PoolConfig{MaxConns: int32(maxConns)})
	if err != nil {
		return err
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := storage.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("database migrated")
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			return err
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer rdb.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	outboxRepo := outbox.NewRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool, outboxRepo)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)
	reviewRepo := storage.NewReviewRepository(pool, outboxRepo)
	settingsTTL, err := config.Duration("PLATFORM_SETTINGS_TTL", 30*time.Second)
	if err != nil {
		return err
	}
	settingsRepo := storage.NewSettingsRepository(pool, outboxRepo, settings, settingsTTL)

	cacheTTL, err := config.Duration("CATALOG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return err
	}
	cache := catalog.NewCachedSource(catalogRepo, rdb, cacheTTL, logger)

	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return err
	}
	retention, err := config.Duration("OUTBOX_RETENTION", 7*24*time.Hour)
	if err != nil {
		return err
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: pollEvery,
		BatchSize: 50,
		Retention: retention,
	})
	go publisher.Run(ctx)

	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		catalogConsumer := consumer.New(logger, inbox.NewRepository(pool, inbox.SourceKafka), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   config.String("KAFKA_CATALOG_TOPIC", outbox.TopicCatalogChanged),
		}, consumer.CatalogChangedHandler(cache, logger))
		go catalogConsumer.Run(ctx)
	}

	verifier, err := newVerifier()
	if err != nil {
		return err
	}

	var provider handlers.PaymentProvider
	if key := strings.TrimSpace(config.String("STRIPE_SECRET_KEY", "")); key != "" {
		stripeProvider := payments.NewStripeProvider(key)
		provider = stripeProvider
		if err := startReconciler(ctx, pool, bookingRepo, stripeProvider, logger); err != nil {
			return err
		}
	} else {
		logger.Warn("stripe payments disabled (STRIPE_SECRET_KEY missing)")
	}
	webhookTolerance, err := config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute)
	if err != nil {
		return err
	}

	h := handlers.New(handlers.Deps{
		Logger:           logger,
		Catalog:          cache,
		CatalogStore:     catalogRepo,
		Cache:            cache,
		Bookings:         bookingRepo,
		ReviewStore:      reviewRepo,
		Payments:         provider,
		Inbox:            inbox.NewRepository(pool, inbox.SourceStripe),
		Clock:            availability.SystemClock{},
		Settings:         settings,
		SettingsStore:    settingsRepo,
		WebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance: webhookTolerance,
	})

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	h.Register(mux, verifier)

	requestTimeout, err := config.Duration("HTTP_REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return err
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		rateLimit(rdb, logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelx.HTTPHandler(httpHandler, service),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer()
	grpcSrv.SetServing(service, true)
	go func() {
		if err := grpcSrv.Serve(ctx, ":"+grpcPort, logger); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	grpcSrv.SetServing(service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func newVerifier() (*auth.Verifier, error) {
	cfg := auth.VerifierConfig{
		HMACSecret: config.String("JWT_SECRET", ""),
		Issuer:     config.String("JWT_ISSUER", ""),
		Audience:   config.String("JWT_AUDIENCE", ""),
	}
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		ttl, err := config.Duration("JWKS_CACHE_TTL", 5*time.Minute)
		if err != nil {
			return nil, err
		}
		cfg.JWKS = auth.NewJWKSClient(url, ttl)
	}
	return auth.NewVerifier(cfg)
}

func rateLimit(rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 300)
	if err != nil || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	opts := httpx.RateLimitOptions{
		Logger:   logger,
		FailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		// Webhook deliveries and probes are never limited.
		Exempt: []string{"/api/v1/payments/webhooks/", "/healthz", "/readyz"},
	}
	if rdb != nil {
		logger.Info("rate limiting enabled (redis)", "per_minute", perMinute)
		return httpx.RateLimit(httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:booking")), opts)
	}
	logger.Info("rate limiting enabled (memory)", "per_minute", perMinute)
	return httpx.RateLimit(httpx.NewRateLimiter(perMinute, time.Minute), opts)
}

// reconcileLockKey is the advisory lock shared by all booking-service replicas.
const reconcileLockKey int64 = 0x706f696e746d65

func startReconciler(ctx context.Context, pool *db.Pool, store payments.PendingStore, provider *payments.StripeProvider, logger *slog.Logger) error {
	if !config.Bool("PAYMENT_RECONCILE_ENABLED", true) {
		return nil
	}
	interval, err := config.Duration("PAYMENT_RECONCILE_INTERVAL", 5*time.Minute)
	if err != nil {
		return err
	}
	staleAfter, err := config.Duration("PAYMENT_RECONCILE_STALE_AFTER", 15*time.Minute)
	if err != nil {
		return err
	}
	lock := func(ctx context.Context) (payments.Lease, bool, error) {
		l, ok, err := pool.TryAdvisoryLock(ctx, reconcileLockKey)
		if err != nil || !ok {
			return nil, false, err
		}
		return l, true, nil
	}
	r := payments.NewReconciler(store, provider, lock, logger, payments.ReconcilerConfig{
		StaleAfter: staleAfter,
		Refunds:    provider,
	})
	go r.Run(ctx, interval)
	return nil
}
