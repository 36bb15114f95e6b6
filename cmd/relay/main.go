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
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/adapters/handler"
	"github.com/xenwatch/identity-notify-service/internal/adapters/messaging"
	"github.com/xenwatch/identity-notify-service/internal/adapters/outbox"
	"github.com/xenwatch/identity-notify-service/internal/adapters/repository"
	"github.com/xenwatch/identity-notify-service/internal/config"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
	"github.com/xenwatch/identity-notify-service/internal/core/services"
	"github.com/xenwatch/identity-notify-service/internal/detach"
	"github.com/xenwatch/identity-notify-service/internal/jobs"
	"github.com/xenwatch/identity-notify-service/internal/logging"
	"github.com/xenwatch/identity-notify-service/internal/metrics"
	"github.com/xenwatch/identity-notify-service/internal/observability"
)

func main() {
	cfg := config.LoadRelayConfig()

	lg, err := logging.Init(cfg.Logging.Level, cfg.Logging.Env)
	if err != nil {
		panic(err)
	}
	defer lg.Closer()
	logger := lg.Base.With(zap.String("service", "outbox-relay"))

	flush, err := observability.InitSentry(cfg.Logging.SentryDSN, cfg.Logging.Env, cfg.Logging.AppVersion)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	var publisher ports.NotificationPublisher
	if cfg.RabbitMQURL != "" {
		broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.NotificationQueueName, logger)
		if err != nil {
			logger.Warn("notification events disabled", zap.Error(err))
		} else {
			defer broker.Close()
			publisher = broker
		}
	}

	m := metrics.NewCollector(prometheus.DefaultRegisterer)
	users := repository.NewUserRepository(db)
	dbCB := config.NewCircuitBreaker(config.BreakerPostgres, logger)
	fanout := services.NewFanoutService(
		repository.NewRecipientRepository(db),
		users,
		services.NewDeduplicator(repository.NewNotificationRepository(db, dbCB), logger),
		publisher,
		detach.NewRunner(logger, m),
		cfg.FanoutConcurrency,
		logger,
		m,
	)

	relay := outbox.NewRelay(db, cfg.DatabaseURL, func(ctx context.Context, evt domain.Event) error {
		_, err := fanout.Handle(ctx, evt)
		return err
	}, config.NewCircuitBreaker(config.BreakerOutbox, logger), logger)

	scanner := services.NewExpiryScanner(repository.NewSubscriptionRepository(db), fanout, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scheduler := jobs.New(ctx, logger, m)
	scheduler.Every(cfg.ExpiryScanInterval, "subscription_expiry_scan", true, func(ctx context.Context) error {
		n, err := scanner.Scan(ctx, time.Now())
		if n > 0 {
			logger.Info("expiring subscriptions announced", zap.Int("count", n))
		}
		return err
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", handler.Probe("outbox-relay", relay.IsHealthy, logger))
	healthMux.HandleFunc("/health/live", handler.Probe("outbox-relay", relay.IsHealthy, logger))
	healthMux.HandleFunc("/health/ready", handler.Probe("outbox-relay", relay.IsReady, logger))
	healthMux.Handle("/metrics", metrics.Handler())

	healthServer := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health server", zap.String("addr", healthServer.Addr))
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		logger.Error("relay stopped", zap.Error(err))
		cancel()
	}

	scheduler.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
