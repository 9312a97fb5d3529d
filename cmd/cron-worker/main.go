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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/enxoval-backend/internal/cron"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/internal/settings"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
	"github.com/angelmondragon/enxoval-backend/pkg/migrate"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Env:         cfg.App.Env,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWithLog(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWithLog(ctx, logg, "redis", redisClient.Close)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cron.DefaultLockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		return err
	}
	registry := cron.NewRegistry(jobs...)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Cron.Schedule,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(prometheus.DefaultGatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	ctx = logg.WithFields(ctx, map[string]any{
		"schedule": cfg.Cron.Schedule,
		"jobs":     registry.Names(),
	})
	logg.Info(ctx, "cron worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildJobs wires the order maintenance jobs in execution order.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()
	settingsService, err := settings.NewService(settings.NewRepository(conn), cfg.MercadoPago)
	if err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}
	gateway, err := mercadopago.NewClient(cfg.MercadoPago, settingsService, logg)
	if err != nil {
		return nil, fmt.Errorf("mercado pago client: %w", err)
	}

	outboxRepo := outbox.NewRepository(conn)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  outbox.NewService(outboxRepo, logg),
		Counter: product.PurchaseCounter{},
		Metrics: metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	reconciler, err := orders.NewReconciler(ordersService, gateway)
	if err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:     logg,
		Orders:     ordersService,
		Reconciler: reconciler,
		MinAge:     cfg.Cron.ReconcileMinAge,
		BatchSize:  cfg.Cron.ReconcileBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("payment reconcile job: %w", err)
	}
	expiryJob, err := cron.NewPendingOrderExpiryJob(cron.PendingOrderExpiryJobParams{
		Logger:     logg,
		Orders:     ordersService,
		Failer:     ordersService,
		Reconciler: reconciler,
		TTL:        cfg.Checkout.PendingOrderTTL,
		BatchSize:  cfg.Cron.ReconcileBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("pending order expiry job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Outbox:      outboxRepo,
		DeadLetters: outbox.NewDLQRepository(conn),
		Retention:   cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return []cron.Job{reconcileJob, expiryJob, retentionJob}, nil
}

// lockName scopes the lock per environment.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

func closeWithLog(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "close "+name, err)
	}
}
