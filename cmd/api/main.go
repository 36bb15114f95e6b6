package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/adapters/cache"
	"github.com/xenwatch/identity-notify-service/internal/adapters/handler"
	"github.com/xenwatch/identity-notify-service/internal/adapters/messaging"
	"github.com/xenwatch/identity-notify-service/internal/adapters/middleware"
	"github.com/xenwatch/identity-notify-service/internal/adapters/repository"
	"github.com/xenwatch/identity-notify-service/internal/adapters/repository/migrations"
	"github.com/xenwatch/identity-notify-service/internal/config"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
	"github.com/xenwatch/identity-notify-service/internal/core/services"
	"github.com/xenwatch/identity-notify-service/internal/detach"
	"github.com/xenwatch/identity-notify-service/internal/logging"
	"github.com/xenwatch/identity-notify-service/internal/metrics"
	"github.com/xenwatch/identity-notify-service/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	lg, err := logging.Init(cfg.Logging.Level, cfg.Logging.Env)
	if err != nil {
		panic(err)
	}
	defer lg.Closer()
	logger := lg.Base.With(zap.String("service", "identity-notify-api"))

	flush, err := observability.InitSentry(cfg.Logging.SentryDSN, cfg.Logging.Env, cfg.Logging.AppVersion)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Up(ctx, db); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("database schema up to date")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, profile cache will fail open", zap.Error(err))
	}

	var publisher ports.NotificationPublisher
	if cfg.RabbitMQURL != "" {
		broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.NotificationQueueName, logger)
		if err != nil {
			logger.Warn("notification events disabled", zap.Error(err))
		} else {
			defer broker.Close()
			publisher = broker
			logger.Info("connected to RabbitMQ", zap.String("queue", cfg.NotificationQueueName))
		}
	}

	m := metrics.NewCollector(prometheus.DefaultRegisterer)
	runner := detach.NewRunner(logger, m)

	users := repository.NewUserRepository(db)
	notifications := repository.NewNotificationRepository(db, config.NewCircuitBreaker(config.BreakerPostgres, logger))
	profileCache := cache.NewProfileCache(redisClient, cfg.ProfileCacheTTL, config.NewCircuitBreaker(config.BreakerRedis, logger))

	identity := services.NewIdentityService(users, repository.NewProfileTables(db), profileCache, logger, m)
	fanout := services.NewFanoutService(
		repository.NewRecipientRepository(db),
		users,
		services.NewDeduplicator(notifications, logger),
		publisher,
		runner,
		cfg.FanoutConcurrency,
		logger,
		m,
	)
	inbox := services.NewInboxService(notifications)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, logger)
	defer limiter.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		Auth:           middleware.NewAuthMiddleware(cfg.JWTPublicKey, logger),
		RateLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         handler.NewHealthHandler(db, redisClient, cfg.Logging.AppVersion, logger),
		Profile:        handler.NewProfileHandler(identity, logger),
		Inbox:          handler.NewInboxHandler(inbox, logger),
		Events:         handler.NewEventHandler(fanout, logger),
		Metrics:        metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("detached fan-out tasks still running at exit", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
