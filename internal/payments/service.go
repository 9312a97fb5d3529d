package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/angelmondragon/enxoval-backend/internal/checkout"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
)

const (
	DefaultPixExpiration = 30 * time.Minute
	healthTitle          = "Teste Health"
	qrSize               = 256
)

type Config struct {
	NotificationURL string
	FrontendBaseURL string
	PixExpiration   time.Duration
}

type ServiceParams struct {
	Products checkout.ProductLookup
	Orders   *orders.Service
	Gateway  mercadopago.Gateway
	Metrics  *metrics.PaymentMetrics
	Config   Config
	Logger   *logger.Logger
}

// Service is the HTTP-facing side of the payment gateway adapter.
type Service struct {
	products checkout.ProductLookup
	orders   *orders.Service
	gateway  mercadopago.Gateway
	metrics  *metrics.PaymentMetrics
	cfg      Config
	logg     *logger.Logger
	now      func() time.Time
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
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.PixExpiration <= 0 {
		cfg.PixExpiration = DefaultPixExpiration
	}
	cfg.FrontendBaseURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendBaseURL), "/")
	return &Service{
		products: params.Products,
		orders:   params.Orders,
		gateway:  params.Gateway,
		metrics:  params.Metrics,
		cfg:      cfg,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// PreferenceInput is the bare mp-checkout request.
type PreferenceInput struct {
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type PreferenceResult struct {
	InitPoint    string `json:"init_point"`
	PreferenceID string `json:"preference_id"`
}

// CreatePreference creates a preference without touching orders.
func (s *Service) CreatePreference(ctx context.Context, input PreferenceInput) (*PreferenceResult, error) {
	req := mercadopago.PreferenceRequest{
		Title:           input.Title,
		Quantity:        input.Quantity,
		UnitPrice:       input.Amount,
		NotificationURL: s.cfg.NotificationURL,
		BackURLs:        s.backURLs(),
		AutoReturn:      mercadopago.AutoReturnOnPaid,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pref, err := s.gateway.CreatePreference(ctx, req)
	s.metrics.GatewayCall("create_preference", err)
	if err != nil {
		return nil, err
	}
	return &PreferenceResult{InitPoint: pref.InitPoint, PreferenceID: pref.ID}, nil
}

// HealthResult mirrors what the gateway said about a throwaway preference.
type HealthResult struct {
	Status       string `json:"status"`
	StatusHTTP   *int   `json:"status_http"`
	ResponseBody any    `json:"response_body"`
	InitPoint    string `json:"init_point,omitempty"`
	PreferenceID string `json:"preference_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Health never fails; the outcome is described in the result.
func (s *Service) Health(ctx context.Context) *HealthResult {
	pref, err := s.gateway.CreatePreference(ctx, mercadopago.PreferenceRequest{
		Title:      healthTitle,
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(1),
		BackURLs:   s.backURLs(),
		AutoReturn: mercadopago.AutoReturnOnPaid,
	})
	s.metrics.GatewayCall("health", err)
	if err == nil {
		status := http.StatusCreated
		return &HealthResult{
			Status:       "SUCCESS",
			StatusHTTP:   &status,
			ResponseBody: map[string]any{"id": pref.ID, "init_point": pref.InitPoint},
			InitPoint:    pref.InitPoint,
			PreferenceID: pref.ID,
		}
	}

	result := &HealthResult{Status: "ERROR", Error: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		result.Error = typed.Message()
		if typed.Code() == pkgerrors.CodeMissingConfig {
			return result
		}
	}
	var apiErr *mercadopago.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		result.StatusHTTP = &status
		result.ResponseBody = apiErr.Body
	}
	return result
}

// DirectInput is a direct PIX or card payment request.
type DirectInput struct {
	PurchaserName  string                 `json:"purchaser_name"`
	PurchaserEmail string                 `json:"purchaser_email"`
	Method         enums.PaymentMethod    `json:"payment_method"`
	Products       []checkout.LineRequest `json:"products"`
	Installments   int                    `json:"installments,omitempty"`
	CardToken      string                 `json:"card_token,omitempty"`
}

// DirectResult carries either the PIX or the card fields.
type DirectResult struct {
	OrderID        uuid.UUID  `json:"order_id"`
	PaymentID      string     `json:"payment_id"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	PixQRCode      string     `json:"pix_qr_code,omitempty"`
	PixCode        string     `json:"pix_code,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PaymentURL     string     `json:"payment_url,omitempty"`
	ActionRequired bool       `json:"action_required,omitempty"`
	ActionURL      string     `json:"action_url,omitempty"`
}

// CreateDirect validates the lines, creates the pending order and then the
// gateway payment. A gateway failure leaves the order failed.
func (s *Service) CreateDirect(ctx context.Context, input DirectInput) (*DirectResult, error) {
	if strings.TrimSpace(input.PurchaserName) == "" || strings.TrimSpace(input.PurchaserEmail) == "" ||
		input.Method == "" || len(input.Products) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Todos os campos são obrigatórios")
	}
	if !input.Method.IsValid() || input.Method == enums.PaymentMethodCheckoutPro {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "método de pagamento inválido")
	}

	lines, err := checkout.ResolveLines(ctx, s.products, input.Products)
	if err != nil {
		return nil, err
	}
	summary := checkout.Summarize(lines)

	order, err := s.orders.CreatePending(ctx, orders.CreateInput{
		PurchaserName:  input.PurchaserName,
		PurchaserEmail: input.PurchaserEmail,
		Method:         input.Method,
		Lines:          lines,
	})
	if err != nil {
		return nil, err
	}

	req := mercadopago.PaymentRequest{
		Amount:            mercadopago.CentsToUnits(order.AmountCents),
		Description:       summary.Title,
		CardToken:         strings.TrimSpace(input.CardToken),
		ExternalReference: order.ID.String(),
		NotificationURL:   s.cfg.NotificationURL,
		Payer:             mercadopago.Payer{Name: order.PurchaserName, Email: order.PurchaserEmail},
	}
	switch input.Method {
	case enums.PaymentMethodPix:
		expires := s.now().Add(s.cfg.PixExpiration)
		req.MethodID = mercadopago.PixMethodID
		req.Expiration = &expires
	case enums.PaymentMethodCredit:
		req.Installments = input.Installments
	}

	payment, err := s.gateway.CreatePayment(ctx, req)
	s.metrics.GatewayCall("create_payment", err)
	if err != nil {
		if _, failErr := s.orders.MarkFailed(ctx, order.ID, orders.SourceCheckout, checkout.GatewayFailureStatus); failErr != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "mark order failed", failErr)
		}
		return nil, err
	}

	if err := s.orders.AttachPayment(ctx, order.ID, payment.ID, payment.Status); err != nil {
		return nil, err
	}

	out := &DirectResult{
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Amount:    order.AmountCents,
		Status:    payment.Status,
	}
	if input.Method == enums.PaymentMethodPix {
		out.PixQRCode = payment.QRCode
		out.PixCode = payment.QRCodeBase64
		out.ExpiresAt = payment.ExpiresAt
		return out, nil
	}
	out.PaymentURL = payment.ExternalResourceURL
	if payment.ActionRequired() {
		out.ActionRequired = true
		out.ActionURL = payment.ExternalResourceURL
	}
	return out, nil
}

// PixQR renders the PIX copy-paste code of a pending order as a PNG.
func (s *Service) PixQR(ctx context.Context, orderID uuid.UUID) ([]byte, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodPix || order.ExternalPaymentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "código PIX indisponível")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pedido já finalizado")
	}

	payment, err := s.gateway.GetPayment(ctx, *order.ExternalPaymentID)
	s.metrics.GatewayCall("get_payment", err)
	if err != nil {
		return nil, err
	}
	return EncodeQR(payment.QRCode)
}

// EncodeQR renders content as a square PNG.
func EncodeQR(content string) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "código PIX indisponível")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render pix qr code")
	}
	return png, nil
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
