package routes

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/enxoval-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/enxoval-backend/api/controllers/admin"
	webhookcontrollers "github.com/angelmondragon/enxoval-backend/api/controllers/webhooks"
	"github.com/angelmondragon/enxoval-backend/api/middleware"
	"github.com/angelmondragon/enxoval-backend/internal/admin"
	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/auth"
	"github.com/angelmondragon/enxoval-backend/internal/cart"
	"github.com/angelmondragon/enxoval-backend/internal/categories"
	"github.com/angelmondragon/enxoval-backend/internal/checkout"
	"github.com/angelmondragon/enxoval-backend/internal/guestbook"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/internal/payments"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/internal/progress"
	pkgAuth "github.com/angelmondragon/enxoval-backend/pkg/auth"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

type CatalogService interface {
	ListActive(ctx context.Context, categoryID *uuid.UUID) ([]product.ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*product.ProductDTO, error)
}

type CategoryService interface {
	List(ctx context.Context) ([]categories.CategoryDTO, error)
}

type ProgressService interface {
	Get(ctx context.Context) (*progress.Progress, error)
}

type GuestbookService interface {
	ListApproved(ctx context.Context, params pagination.Params) (*guestbook.ListResult, error)
	Post(ctx context.Context, input guestbook.PostInput) (*models.GuestbookMessage, error)
}

// SettingsService serves the public story and the webhook secret.
type SettingsService interface {
	Story(ctx context.Context) (*models.StoryContent, error)
	WebhookSecret(ctx context.Context) (string, error)
}

type CartService interface {
	Get(ctx context.Context, cartID string) (*cart.View, error)
	Apply(ctx context.Context, cartID string, req cart.ActionRequest) (*cart.View, error)
}

type CheckoutService interface {
	Prefetch(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	Submit(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	RedirectURL(ctx context.Context, orderID uuid.UUID) (string, error)
}

type OrderStatusService interface {
	Status(ctx context.Context, id uuid.UUID) (*orders.StatusView, error)
}

type PaymentService interface {
	CreatePreference(ctx context.Context, input payments.PreferenceInput) (*payments.PreferenceResult, error)
	Health(ctx context.Context) *payments.HealthResult
	CreateDirect(ctx context.Context, input payments.DirectInput) (*payments.DirectResult, error)
	PixQR(ctx context.Context, orderID uuid.UUID) ([]byte, error)
}

type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type SessionManager interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type AdminResource interface {
	Name() string
	Dispatch(ctx context.Context, actor admin.Actor, body []byte) (any, error)
}

type ImageStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

// Store backs rate limiting and idempotent replays.
type Store interface {
	middleware.ResponseStore
	middleware.WindowCounter
}

// Deps is everything the HTTP surface needs. Nil optional fields disable
// the matching feature.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Store       Store
	Readiness   map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Verifier      pkgAuth.TokenVerifier
	AuthService   auth.Service
	AdminRegister auth.AdminRegisterService
	Sessions      SessionManager

	Catalog    CatalogService
	Categories CategoryService
	Progress   ProgressService
	Guestbook  GuestbookService
	Settings   SettingsService
	Cart       CartService
	Checkout   CheckoutService
	Orders     OrderStatusService
	Payments   PaymentService

	Webhooks     webhookcontrollers.MercadoPagoWebhookService
	WebhookGuard WebhookGuard

	AdminResources []AdminResource
	Images         ImageStore
	Audit          audit.Recorder
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
		middleware.CORS(cfg.App.FrontendBaseURL),
	)

	limits := cfg.RateLimit
	loginPolicy := middleware.RateLimitPolicy{
		Name:     "login",
		Window:   limits.LoginWindow,
		PerIP:    limits.LoginIPLimit,
		PerEmail: limits.LoginEmailLimit,
	}
	guestbookPolicy := middleware.RateLimitPolicy{
		Name:   "guestbook",
		Window: limits.GuestbookWindow,
		PerIP:  limits.GuestbookIPLimit,
	}
	checkoutPolicy := middleware.RateLimitPolicy{
		Name:       "checkout",
		Window:     limits.CheckoutWindow,
		PerIP:      limits.CheckoutIPLimit,
		PerEmail:   limits.CheckoutEmailLimit,
		EmailField: "purchaser_email",
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.PublicProducts(d.Catalog, logg))
		r.Get("/products/{productId}", controllers.PublicProduct(d.Catalog, logg))
		r.Get("/categories", controllers.PublicCategories(d.Categories, logg))
		r.Get("/progress", controllers.PublicProgress(d.Progress, logg))
		r.Get("/story", controllers.PublicStory(d.Settings, logg))

		r.Get("/guestbook", controllers.GuestbookList(d.Guestbook, logg))
		r.With(middleware.RateLimit(guestbookPolicy, d.Store, logg)).
			Post("/guestbook", controllers.GuestbookPost(d.Guestbook, logg))

		r.Get("/carts/{cartId}", controllers.CartFetch(d.Cart, logg))
		r.Post("/carts/{cartId}/actions", controllers.CartAction(d.Cart, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(checkoutPolicy, d.Store, logg))
			r.Use(middleware.Idempotency(d.Store, cfg.Eventing.RequestIdempotencyTTL, logg))
			r.Post("/checkout/prefetch", controllers.CheckoutPrefetch(d.Checkout, logg))
			r.Post("/checkout", controllers.CheckoutSubmit(d.Checkout, logg))
			r.Post("/payments", controllers.PaymentDirect(d.Payments, logg))
		})
		r.Get("/checkout/{orderId}/redirect", controllers.CheckoutRedirect(d.Checkout, logg))
		r.Get("/orders/{orderId}/status", controllers.OrderStatus(d.Orders, logg))
		r.Get("/orders/{orderId}/pix.png", controllers.PixQRCode(d.Payments, logg))

		r.Route("/payments/mercadopago", func(r chi.Router) {
			r.Post("/preference", controllers.PaymentPreference(d.Payments, logg))
			r.Get("/health", controllers.PaymentHealth(d.Payments))
		})

		r.Post("/webhooks/mercadopago", webhookcontrollers.MercadoPagoWebhook(d.Webhooks, d.Settings, d.WebhookGuard, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, d.Store, logg)).
				Post("/login", admincontrollers.Login(d.AuthService, logg))
			r.Post("/refresh", admincontrollers.Refresh(d.Sessions, cfg.JWT, logg))
			r.Post("/logout", admincontrollers.Logout(d.Sessions, cfg.JWT, logg))
			if !cfg.App.IsProd() && d.AdminRegister != nil {
				r.Post("/register", admincontrollers.Register(d.AdminRegister, logg))
			}
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(d.Verifier, d.AuthService, logg))
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
				r.Post("/", admincontrollers.Resource(findResource(d.AdminResources, "auth"), logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Verifier, d.AuthService, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Post("/uploads", admincontrollers.Upload(d.Images, d.Audit, cfg.GCS.MaxUploadMB, logg))
			for _, res := range d.AdminResources {
				if res == nil || res.Name() == "auth" {
					continue
				}
				r.Post("/"+res.Name(), admincontrollers.Resource(res, logg))
			}
		})
	})

	return r
}

func findResource(resources []AdminResource, name string) AdminResource {
	for _, res := range resources {
		if res != nil && res.Name() == name {
			return res
		}
	}
	return missingResource(name)
}

type missingResource string

func (m missingResource) Name() string { return string(m) }

func (m missingResource) Dispatch(context.Context, admin.Actor, []byte) (any, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recurso indisponível")
}
