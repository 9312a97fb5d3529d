package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/enxoval-backend/internal/consumers"
	analyticsconsumer "github.com/angelmondragon/enxoval-backend/internal/consumers/analytics"
	"github.com/angelmondragon/enxoval-backend/internal/consumers/thankyou"
	"github.com/angelmondragon/enxoval-backend/internal/content"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/internal/settings"
	"github.com/angelmondragon/enxoval-backend/pkg/bigquery"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mailer"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/registry"
	"github.com/angelmondragon/enxoval-backend/pkg/pubsub"
	"github.com/angelmondragon/enxoval-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Env:         cfg.App.Env,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing pubsub client", err)
		}
	}()

	bigqueryClient, err := bigquery.NewClient(bootCtx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing bigquery client", err)
		}
	}()
	schema, err := analyticsconsumer.Schema()
	if err != nil {
		logg.Error(bootCtx, "failed to infer contributions schema", err)
		os.Exit(1)
	}
	created, err := bigqueryClient.EnsureTable(bootCtx, cfg.BigQuery.ContributionsTable, schema, analyticsconsumer.PartitionField)
	if err != nil {
		logg.Error(bootCtx, "failed to ensure contributions table", err)
		os.Exit(1)
	}
	if created {
		logg.Info(logg.WithField(bootCtx, "table", cfg.BigQuery.ContributionsTable), "contributions table created")
	}

	conn := dbClient.DB()
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		Counter: product.PurchaseCounter{},
		Logger:  logg,
	})
	if err != nil {
		logg.Error(bootCtx, "failed to create orders service", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(settings.NewRepository(conn), cfg.MercadoPago)
	if err != nil {
		logg.Error(bootCtx, "failed to create settings service", err)
		os.Exit(1)
	}
	sender, err := mailer.NewSendGrid(cfg.Sendgrid)
	if err != nil {
		logg.Error(bootCtx, "failed to create sendgrid client", err)
		os.Exit(1)
	}
	var mail mailer.Sender
	if sender != nil {
		mail = sender
	} else {
		logg.Warn(bootCtx, "sendgrid not configured, thank-you emails disabled")
	}
	contentService, err := content.NewService(settingsService, mail)
	if err != nil {
		logg.Error(bootCtx, "failed to create content service", err)
		os.Exit(1)
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		logg.Error(bootCtx, "failed to create idempotency manager", err)
		os.Exit(1)
	}

	thankYou, err := thankyou.NewConsumer(ordersService, contentService, manager, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to create thank-you consumer", err)
		os.Exit(1)
	}
	contributions, err := analyticsconsumer.NewConsumer(bigqueryClient, cfg.BigQuery.ContributionsTable, manager, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to create analytics consumer", err)
		os.Exit(1)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(bootCtx, "failed to build event registry", err)
		os.Exit(1)
	}
	dispatcher, err := consumers.NewDispatcher(eventRegistry, logg, thankYou, contributions)
	if err != nil {
		logg.Error(bootCtx, "failed to create dispatcher", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:     logg,
		PubSub:     pubsubClient,
		Dispatcher: dispatcher,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"bigquery": bigqueryClient,
		},
	})
	if err != nil {
		logg.Error(bootCtx, "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.OrdersSubscription,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
