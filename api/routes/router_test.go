package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/api/controllers"
	"github.com/angelmondragon/enxoval-backend/internal/admin"
	"github.com/angelmondragon/enxoval-backend/internal/auth"
	"github.com/angelmondragon/enxoval-backend/internal/checkout"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	pkgAuth "github.com/angelmondragon/enxoval-backend/pkg/auth"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
)

var (
	adminID  = uuid.New()
	viewerID = uuid.New()
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, raw string) (*pkgAuth.Identity, error) {
	switch raw {
	case "admin-token":
		return &pkgAuth.Identity{UserID: adminID, Email: "admin@enxoval.dev", AccessID: "a1"}, nil
	case "viewer-token":
		return &pkgAuth.Identity{UserID: viewerID, Email: "viewer@enxoval.dev", AccessID: "v1"}, nil
	}
	return nil, pkgAuth.ErrInvalidToken
}

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "credenciais inválidas")
}

func (stubAuthService) Role(_ context.Context, userID uuid.UUID) (enums.Role, error) {
	if userID == adminID {
		return enums.RoleAdmin, nil
	}
	return enums.RoleViewer, nil
}

type stubCatalog struct{}

func (stubCatalog) ListActive(context.Context, *uuid.UUID) ([]product.ProductDTO, error) {
	return []product.ProductDTO{{ID: uuid.New(), Name: "Body manga longa", PriceCents: 4990, TargetQty: 6}}, nil
}

func (stubCatalog) Get(context.Context, uuid.UUID) (*product.ProductDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado")
}

type stubCheckout struct {
	prefetched int
	submitted  int
}

func (s *stubCheckout) Prefetch(context.Context, checkout.Request) (*checkout.Result, error) {
	s.prefetched++
	return &checkout.Result{OrderID: uuid.New(), RedirectURL: "https://www.mercadopago.com.br/checkout/v1/redirect?pref_id=p1"}, nil
}

func (s *stubCheckout) Submit(context.Context, checkout.Request) (*checkout.Result, error) {
	s.submitted++
	return &checkout.Result{OrderID: uuid.New(), RedirectURL: "https://www.mercadopago.com.br/checkout/v1/redirect?pref_id=p1", Prefetched: true}, nil
}

func (s *stubCheckout) RedirectURL(context.Context, uuid.UUID) (string, error) {
	return "", pkgerrors.New(pkgerrors.CodeNotFound, "URL de pagamento indisponível")
}

type recordingResource struct {
	name   string
	calls  int
	action string
}

func (r *recordingResource) Name() string { return r.name }

func (r *recordingResource) Dispatch(_ context.Context, _ admin.Actor, body []byte) (any, error) {
	r.calls++
	var env struct {
		Action string `json:"action"`
	}
	_ = json.Unmarshal(body, &env)
	r.action = env.Action
	return map[string]string{"resource": r.name}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "enxoval", ExpirationMinutes: 30},
	}
}

func newTestRouter(resources ...AdminResource) http.Handler {
	return newTestRouterWith(Deps{AdminResources: resources})
}

func newTestRouterWith(d Deps) http.Handler {
	return NewRouter(Deps{
		Config:         testConfig(),
		Logger:         logger.Nop(),
		Readiness:      map[string]controllers.Pinger{"db": stubPinger{}, "gcs": nil},
		Gatherer:       prometheus.NewRegistry(),
		HTTPMetrics:    metrics.NewHTTPMetrics(nil),
		Verifier:       stubVerifier{},
		AuthService:    stubAuthService{},
		Catalog:        stubCatalog{},
		Checkout:       d.Checkout,
		AdminResources: d.AdminResources,
	})
}

func serve(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := serve(router, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Enxoval-Env"))

	rec = serve(router, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gcs":{"status":"disabled"`)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestRouter(), http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicProductsIsOpen(t *testing.T) {
	rec := serve(newTestRouter(), http.MethodGet, "/api/v1/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Body manga longa")

	rec = serve(newTestRouter(), http.MethodGet, "/api/v1/products/"+uuid.NewString(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminResourceRequiresToken(t *testing.T) {
	products := &recordingResource{name: "products"}
	rec := serve(newTestRouter(products), http.MethodPost, "/api/admin/v1/products", "", `{"action":"list"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, products.calls)
}

func TestAdminResourceRequiresAdminRole(t *testing.T) {
	products := &recordingResource{name: "products"}
	rec := serve(newTestRouter(products), http.MethodPost, "/api/admin/v1/products", "viewer-token", `{"action":"list"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, products.calls)
}

func TestAdminResourceDispatches(t *testing.T) {
	products := &recordingResource{name: "products"}
	orders := &recordingResource{name: "orders"}
	router := newTestRouter(products, orders)

	rec := serve(router, http.MethodPost, "/api/admin/v1/orders", "admin-token", `{"action":"list"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, orders.calls)
	assert.Equal(t, "list", orders.action)
	assert.Zero(t, products.calls)
}

func TestAdminAuthResourceSharesPrefixWithSession(t *testing.T) {
	stats := &recordingResource{name: "auth"}
	router := newTestRouter(stats)

	rec := serve(router, http.MethodPost, "/api/admin/v1/auth", "admin-token", `{"action":"stats"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stats", stats.action)

	rec = serve(router, http.MethodPost, "/api/admin/v1/auth/login", "", `{"email":"admin@enxoval.dev","password":"errada"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, stats.calls)
}

func TestUnknownAdminResource(t *testing.T) {
	rec := serve(newTestRouter(), http.MethodPost, "/api/admin/v1/coupons", "admin-token", `{"action":"list"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutRoutesReachService(t *testing.T) {
	svc := &stubCheckout{}
	router := newTestRouterWith(Deps{Checkout: svc})
	body := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":1}],"purchaser_name":"Ana","purchaser_email":"ana@example.com"}`

	rec := serve(router, http.MethodPost, "/api/v1/checkout/prefetch", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = serve(router, http.MethodPost, "/api/v1/checkout", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"prefetched":true`)
	assert.Equal(t, 1, svc.prefetched)
	assert.Equal(t, 1, svc.submitted)

	rec = serve(router, http.MethodGet, "/api/v1/checkout/"+uuid.NewString()+"/redirect", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterBuildsWithoutOptionalServices(t *testing.T) {
	router := newTestRouter()
	rec := serve(router, http.MethodPost, "/api/v1/checkout", "", `{}`)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
