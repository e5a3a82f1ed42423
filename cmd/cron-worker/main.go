package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/castwell/launch-backend/internal/cron"
	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/internal/reservations"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/metrics"
	"github.com/castwell/launch-backend/pkg/migrate"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockKey), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		Repository: inventory.NewRepository(conn),
		TxRunner:   dbClient,
		Outbox:     outbox.NewService(outboxRepo, logg),
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}
	manager, err := reservations.NewManager(reservations.ManagerParams{
		Repository: reservations.NewRepository(conn),
		TxRunner:   dbClient,
		Ledger:     ledger,
		Logger:     logg,
		TTL:        cfg.Launch.ReservationTTL,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:       logg,
		Reservations: manager,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(expiry, retention), nil
}
