package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/castwell/launch-backend/api/controllers"
	"github.com/castwell/launch-backend/api/routes"
	"github.com/castwell/launch-backend/internal/accounts"
	"github.com/castwell/launch-backend/internal/auth"
	"github.com/castwell/launch-backend/internal/fulfillment"
	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/internal/promos"
	"github.com/castwell/launch-backend/internal/purchases"
	"github.com/castwell/launch-backend/internal/reservations"
	payfastwebhook "github.com/castwell/launch-backend/internal/webhooks/payfast"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/metrics"
	"github.com/castwell/launch-backend/pkg/migrate"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/payfast"
	"github.com/castwell/launch-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	if cfg.App.IsProd() && cfg.PayFast.IsSandbox() {
		logg.Warn(logg.WithField(ctx, "processUrl", cfg.PayFast.ProcessURL), "payfast sandbox configured in production")
	}
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	sales := metrics.NewSalesMetrics(prometheus.DefaultRegisterer)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		Repository: inventory.NewRepository(conn),
		TxRunner:   dbClient,
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	manager, err := reservations.NewManager(reservations.ManagerParams{
		Repository: reservations.NewRepository(conn),
		TxRunner:   dbClient,
		Ledger:     ledger,
		Logger:     logg,
		TTL:        cfg.Launch.ReservationTTL,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	hook, err := fulfillment.NewOutboxHook(fulfillment.OutboxHookParams{
		TxRunner: dbClient,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	purchaseRepo := purchases.NewRepository(conn)
	promoService, err := promos.NewService(promos.ServiceParams{
		Repository:   promos.NewRepository(conn),
		Purchases:    purchaseRepo,
		TxRunner:     dbClient,
		Ledger:       ledger,
		Reservations: manager,
		Hook:         hook,
		Metrics:      sales,
		Logger:       logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repository:   purchaseRepo,
		TxRunner:     dbClient,
		Ledger:       ledger,
		Reservations: manager,
		Promos:       promoService,
		Checkout:     payfast.NewCheckout(cfg.PayFast),
		Metrics:      sales,
		Logger:       logg,
		Launch:       cfg.Launch,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	notifications, err := payfastwebhook.NewService(payfastwebhook.ServiceParams{
		Purchases:  purchaseService,
		Hook:       hook,
		Metrics:    sales,
		Logger:     logg,
		MerchantID: cfg.PayFast.MerchantID,
		Passphrase: cfg.PayFast.Passphrase,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		AccountRepo: accounts.NewRepository(conn),
		JWTConfig:   cfg.JWT,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	registrar, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Readiness: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Gatherer:       prometheus.DefaultGatherer,
		Redis:          redisClient,
		Auth:           authService,
		Registrar:      registrar,
		Inventory:      ledger,
		FireSale:       ledger,
		Reservations:   manager,
		Purchases:      purchaseService,
		Reconciliation: purchaseService,
		Promos:         promoService,
		PromoAdmin:     promoService,
		PayFast:        notifications,
	}, nil
}
