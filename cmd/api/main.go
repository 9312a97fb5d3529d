package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/enxoval-backend/api/controllers"
	"github.com/angelmondragon/enxoval-backend/api/routes"
	"github.com/angelmondragon/enxoval-backend/internal/admin"
	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/auth"
	"github.com/angelmondragon/enxoval-backend/internal/cart"
	"github.com/angelmondragon/enxoval-backend/internal/categories"
	"github.com/angelmondragon/enxoval-backend/internal/checkout"
	"github.com/angelmondragon/enxoval-backend/internal/content"
	"github.com/angelmondragon/enxoval-backend/internal/guestbook"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/internal/payments"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/internal/progress"
	"github.com/angelmondragon/enxoval-backend/internal/settings"
	"github.com/angelmondragon/enxoval-backend/internal/stats"
	mpwebhook "github.com/angelmondragon/enxoval-backend/internal/webhooks/mercadopago"
	pkgAuth "github.com/angelmondragon/enxoval-backend/pkg/auth"
	"github.com/angelmondragon/enxoval-backend/pkg/auth/oidc"
	"github.com/angelmondragon/enxoval-backend/pkg/auth/session"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mailer"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
	"github.com/angelmondragon/enxoval-backend/pkg/migrate"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/redis"
	"github.com/angelmondragon/enxoval-backend/pkg/storage/gcs"
)

const webhookPath = "/api/v1/webhooks/mercadopago"

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
		Env:         cfg.App.Env,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	var gcsClient *gcs.Client
	if strings.TrimSpace(cfg.GCS.BucketName) != "" {
		gcsClient, err = gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		defer func() {
			if err := gcsClient.Close(); err != nil {
				logg.Error(ctx, "error closing gcs", err)
			}
		}()
	} else {
		logg.Warn(ctx, "gcs bucket not configured, image uploads disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	conn := dbClient.DB()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	var verifier pkgAuth.TokenVerifier
	if cfg.OIDC.Enabled() {
		verifier, err = oidc.New(ctx, cfg.OIDC)
	} else {
		verifier, err = pkgAuth.NewLocalVerifier(cfg.JWT, sessionManager)
	}
	if err != nil {
		logg.Error(ctx, "failed to create token verifier", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Profiles:       auth.NewProfileRepository(conn),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	var adminRegister auth.AdminRegisterService
	if !cfg.App.IsProd() {
		adminRegister, err = auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
			Tx:             dbClient,
			PasswordConfig: cfg.Password,
		})
		if err != nil {
			logg.Error(ctx, "failed to create admin register service", err)
			os.Exit(1)
		}
	}

	settingsService, err := settings.NewService(settings.NewRepository(conn), cfg.MercadoPago)
	if err != nil {
		logg.Error(ctx, "failed to create settings service", err)
		os.Exit(1)
	}

	mpCfg := cfg.MercadoPago
	if strings.TrimSpace(mpCfg.NotificationURL) == "" {
		mpCfg.NotificationURL = strings.TrimRight(cfg.App.PublicBaseURL, "/") + webhookPath
	}
	gateway, err := mercadopago.NewClient(mpCfg, settingsService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create mercado pago client", err)
		os.Exit(1)
	}

	productRepo := product.NewRepository(conn)
	productService, err := product.NewService(productRepo)
	if err != nil {
		logg.Error(ctx, "failed to create product service", err)
		os.Exit(1)
	}

	categoryService, err := categories.NewService(categories.NewRepository(conn), productRepo, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create category service", err)
		os.Exit(1)
	}

	progressService, err := progress.NewService(conn)
	if err != nil {
		logg.Error(ctx, "failed to create progress service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	guestbookService, err := guestbook.NewService(guestbook.ServiceParams{
		Repo:   guestbook.NewRepository(conn),
		Tx:     dbClient,
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create guestbook service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Outbox:  outboxService,
		Counter: product.PurchaseCounter{},
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	reconciler, err := orders.NewReconciler(ordersService, gateway)
	if err != nil {
		logg.Error(ctx, "failed to create reconciler", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(redisClient, productRepo, cfg.Checkout.CartTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Products: productRepo,
		Orders:   ordersService,
		Gateway:  gateway,
		Cache:    redisClient,
		Config: checkout.Config{
			FrontendBaseURL: cfg.App.FrontendBaseURL,
			NotificationURL: mpCfg.NotificationURL,
			PrefetchTTL:     cfg.Checkout.PrefetchTTL,
		},
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Products: productRepo,
		Orders:   ordersService,
		Gateway:  gateway,
		Metrics:  paymentMetrics,
		Config: payments.Config{
			NotificationURL: mpCfg.NotificationURL,
			FrontendBaseURL: cfg.App.FrontendBaseURL,
			PixExpiration:   cfg.Checkout.PixExpiration,
		},
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment service", err)
		os.Exit(1)
	}

	webhookService, err := mpwebhook.NewService(mpwebhook.ServiceParams{
		Orders:  ordersService,
		Gateway: gateway,
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := mpwebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "mercadopago")
	if err != nil {
		logg.Error(ctx, "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	sender, err := mailer.NewSendGrid(cfg.Sendgrid)
	if err != nil {
		logg.Error(ctx, "failed to create sendgrid client", err)
		os.Exit(1)
	}
	var mail mailer.Sender
	if sender != nil {
		mail = sender
	}
	contentService, err := content.NewService(settingsService, mail)
	if err != nil {
		logg.Error(ctx, "failed to create content service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(conn, logg)
	if err != nil {
		logg.Error(ctx, "failed to create audit service", err)
		os.Exit(1)
	}
	statsService, err := stats.NewService(conn)
	if err != nil {
		logg.Error(ctx, "failed to create stats service", err)
		os.Exit(1)
	}

	accountChecker := mercadopago.NewAccountChecker(cfg.MercadoPago.AccountURL, cfg.MercadoPago.Timeout)

	resources := []routes.AdminResource{
		admin.Products(productService, auditService),
		admin.Categories(categoryService, auditService),
		admin.Messages(guestbookService, auditService),
		admin.Orders(ordersService, reconciler, auditService),
		admin.Content(settingsService, contentService, auditService),
		admin.Settings(settingsService, accountChecker, auditService),
		admin.Dashboard(statsService, auditService),
	}

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"gcs":   nil,
	}
	var images routes.ImageStore
	if gcsClient != nil {
		readiness["gcs"] = gcsClient
		images = gcsClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"mp_mock":  gateway.Mock(),
		"oidc":     cfg.OIDC.Enabled(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			Store:          redisClient,
			Readiness:      readiness,
			Gatherer:       registry,
			HTTPMetrics:    metrics.NewHTTPMetrics(registry),
			Verifier:       verifier,
			AuthService:    authService,
			AdminRegister:  adminRegister,
			Sessions:       sessionManager,
			Catalog:        productService,
			Categories:     categoryService,
			Progress:       progressService,
			Guestbook:      guestbookService,
			Settings:       settingsService,
			Cart:           cartService,
			Checkout:       checkoutService,
			Orders:         ordersService,
			Payments:       paymentService,
			Webhooks:       webhookService,
			WebhookGuard:   webhookGuard,
			AdminResources: resources,
			Images:         images,
			Audit:          auditService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
