package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/redis"
)

// DefaultPrefetchTTL bounds how long a prefetched preference may be reused.
const DefaultPrefetchTTL = 10 * time.Minute

// GatewayFailureStatus is stored as provider_status when the preference
// could not be created.
const GatewayFailureStatus = "gateway_error"

type prefetchCache interface {
	redis.KV
	CheckoutPrefetchKey(fingerprint string) string
}

type preferenceCreator interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// Request is a checkout submission: a cart or a single product plus the
// purchaser.
type Request struct {
	Lines          []LineRequest `json:"items" validate:"required,min=1,dive"`
	PurchaserName  string        `json:"purchaser_name" validate:"required,notblank"`
	PurchaserEmail string        `json:"purchaser_email" validate:"required,email"`
}

// Result is returned by prefetch and submit.
type Result struct {
	OrderID      uuid.UUID `json:"order_id"`
	PreferenceID string    `json:"preference_id"`
	InitPoint    string    `json:"init_point"`
	RedirectURL  string    `json:"redirect_url"`
	Strategies   []string  `json:"redirect_strategies"`
	Title        string    `json:"title"`
	AmountCents  int64     `json:"amount_cents"`
	Prefetched   bool      `json:"prefetched"`
}

type Config struct {
	FrontendBaseURL string
	NotificationURL string
	PrefetchTTL     time.Duration
}

type ServiceParams struct {
	Products ProductLookup
	Orders   *orders.Service
	Gateway  preferenceCreator
	Cache    prefetchCache
	Config   Config
	Logger   *logger.Logger
}

// Service orchestrates Checkout Pro: pending order, gateway preference and
// the redirect hand-off.
type Service struct {
	products ProductLookup
	orders   *orders.Service
	gateway  preferenceCreator
	cache    prefetchCache
	cfg      Config
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("prefetch cache required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.PrefetchTTL <= 0 {
		cfg.PrefetchTTL = DefaultPrefetchTTL
	}
	cfg.FrontendBaseURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendBaseURL), "/")
	return &Service{
		products: params.Products,
		orders:   params.Orders,
		gateway:  params.Gateway,
		cache:    params.Cache,
		cfg:      cfg,
		logg:     params.Logger,
	}, nil
}

// Prefetch performs the checkout ahead of submit and caches the result under
// the request fingerprint.
func (s *Service) Prefetch(ctx context.Context, req Request) (*Result, error) {
	result, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode prefetch")
	}
	key := s.cache.CheckoutPrefetchKey(Fingerprint(req))
	if err := s.cache.Set(ctx, key, body, s.cfg.PrefetchTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "order_id", result.OrderID.String()), "checkout prefetch not cached")
	}
	return result, nil
}

// Submit reuses a prefetched result whose fingerprint matches the request,
// otherwise it performs the checkout synchronously. A prefetched result is
// consumed once.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	key := s.cache.CheckoutPrefetchKey(Fingerprint(req))
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached Result
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil && cached.RedirectURL != "" {
			_ = s.cache.Del(ctx, key)
			cached.Prefetched = true
			return &cached, nil
		}
	case !redis.IsNil(err):
		s.logg.Warn(ctx, "checkout prefetch lookup failed")
	}
	return s.prepare(ctx, req)
}

func (s *Service) prepare(ctx context.Context, req Request) (*Result, error) {
	lines, err := ResolveLines(ctx, s.products, req.Lines)
	if err != nil {
		return nil, err
	}
	summary := Summarize(lines)

	order, err := s.orders.CreatePending(ctx, orders.CreateInput{
		PurchaserName:  req.PurchaserName,
		PurchaserEmail: req.PurchaserEmail,
		Method:         enums.PaymentMethodCheckoutPro,
		Lines:          lines,
	})
	if err != nil {
		return nil, err
	}

	pref, err := s.gateway.CreatePreference(ctx, mercadopago.PreferenceRequest{
		Title:             summary.Title,
		Quantity:          summary.Quantity,
		UnitPrice:         summary.UnitPrice,
		ExternalReference: order.ID.String(),
		NotificationURL:   s.cfg.NotificationURL,
		Payer:             &mercadopago.Payer{Name: order.PurchaserName, Email: order.PurchaserEmail},
		BackURLs:          s.backURLs(),
		AutoReturn:        mercadopago.AutoReturnOnPaid,
	})
	if err != nil {
		s.failOrder(ctx, order.ID)
		return nil, err
	}

	redirect, err := NormalizeRedirectURL(pref.InitPoint)
	if err != nil {
		s.failOrder(ctx, order.ID)
		return nil, err
	}
	if err := s.orders.AttachPreference(ctx, order.ID, pref.ID); err != nil {
		return nil, err
	}

	return &Result{
		OrderID:      order.ID,
		PreferenceID: pref.ID,
		InitPoint:    pref.InitPoint,
		RedirectURL:  redirect,
		Strategies:   RedirectStrategies,
		Title:        summary.Title,
		AmountCents:  summary.TotalCents,
	}, nil
}

func (s *Service) failOrder(ctx context.Context, orderID uuid.UUID) {
	if _, err := s.orders.MarkFailed(ctx, orderID, orders.SourceCheckout, GatewayFailureStatus); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "mark order failed", err)
	}
}

func (s *Service) backURLs() *mercadopago.BackURLs {
	if s.cfg.FrontendBaseURL == "" {
		return nil
	}
	return &mercadopago.BackURLs{
		Success: s.cfg.FrontendBaseURL + "/sucesso",
		Failure: s.cfg.FrontendBaseURL + "/erro",
		Pending: s.cfg.FrontendBaseURL + "/pendente",
	}
}

// RedirectURL resolves the hosted checkout URL for an order. Orders without
// a preference, or already settled, have none.
func (s *Service) RedirectURL(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.PreferenceID == nil || strings.TrimSpace(*order.PreferenceID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "URL de pagamento indisponível")
	}
	if order.Status != enums.OrderStatusPending {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "pedido já finalizado")
	}
	return NormalizeRedirectURL(PreferenceRedirectURL(*order.PreferenceID))
}

// Fingerprint identifies a checkout by its lines and purchaser; any quantity
// change yields a different value.
func Fingerprint(req Request) string {
	lines := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, line.ProductID.String()+"x"+strconv.Itoa(line.Quantity))
	}
	sort.Strings(lines)
	canonical := strings.Join(lines, ",") + "|" +
		strings.ToLower(strings.TrimSpace(req.PurchaserName)) + "|" +
		strings.ToLower(strings.TrimSpace(req.PurchaserEmail))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
