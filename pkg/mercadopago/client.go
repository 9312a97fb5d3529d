package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"

	appconfig "github.com/angelmondragon/enxoval-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const (
	CurrencyBRL      = "BRL"
	AutoReturnOnPaid = "approved"
	PixMethodID      = "pix"
)

// CredentialSource resolves the access token used for a gateway call.
// Implementations read the admin-managed settings row and fall back to env.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Gateway is the payment surface used by checkout, webhooks and cron.
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type preferenceAPI interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentAPI interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// apiFactory builds SDK clients for a token; swapped in tests.
type apiFactory func(token string) (preferenceAPI, paymentAPI, error)

// Client talks to Mercado Pago through the official SDK. When mock mode is
// on it never leaves the process.
type Client struct {
	creds   CredentialSource
	factory apiFactory
	mock    bool
	timeout time.Duration
	logg    *logger.Logger
	now     func() time.Time
}

// NewClient builds a gateway client. creds is required unless mock mode is on.
func NewClient(cfg appconfig.MercadoPagoConfig, creds CredentialSource, logg *logger.Logger) (*Client, error) {
	if creds == nil && !cfg.Mock {
		return nil, fmt.Errorf("mercadopago credential source required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		creds:   creds,
		factory: sdkFactory,
		mock:    cfg.Mock,
		timeout: timeout,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func sdkFactory(token string) (preferenceAPI, paymentAPI, error) {
	cfg, err := config.New(token)
	if err != nil {
		return nil, nil, err
	}
	return preference.NewClient(cfg), payment.NewClient(cfg), nil
}

// Mock reports whether the client returns fake gateway responses.
func (c *Client) Mock() bool {
	return c.mock
}

func (c *Client) apis(ctx context.Context) (preferenceAPI, paymentAPI, error) {
	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeMissingConfig, "token do Mercado Pago não configurado")
	}
	prefAPI, payAPI, err := c.factory(strings.TrimSpace(token))
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeMissingConfig, err, "configuração do Mercado Pago inválida")
	}
	return prefAPI, payAPI, nil
}

// CreatePreference creates a Checkout Pro preference.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if c.mock {
		id := "mock-pref-" + strconv.FormatInt(c.now().UnixNano(), 36)
		return &Preference{
			ID:        id,
			InitPoint: "https://www.mercadopago.com.br/checkout/v1/redirect?pref_id=" + id,
		}, nil
	}

	prefAPI, _, err := c.apis(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := prefAPI.Create(ctx, req.toSDK())
	if err != nil {
		c.logg.Error(ctx, "mercadopago preference failed", err)
		return nil, translateError(err, "falha ao criar preferência no Mercado Pago")
	}
	return &Preference{
		ID:               resp.ID,
		InitPoint:        resp.InitPoint,
		SandboxInitPoint: resp.SandboxInitPoint,
	}, nil
}

// CreatePayment creates a direct (PIX or card) payment.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if c.mock {
		return c.mockPayment(req), nil
	}

	_, payAPI, err := c.apis(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := payAPI.Create(ctx, req.toSDK())
	if err != nil {
		c.logg.Error(ctx, "mercadopago payment failed", err)
		return nil, translateError(err, "falha ao criar pagamento no Mercado Pago")
	}
	return paymentFromSDK(resp), nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id, err := strconv.Atoi(strings.TrimSpace(paymentID))
	if err != nil || id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPayload, "id de pagamento inválido")
	}
	if c.mock {
		return &Payment{ID: paymentID, Status: StatusApproved, StatusDetail: "accredited"}, nil
	}

	_, payAPI, err := c.apis(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := payAPI.Get(ctx, id)
	if err != nil {
		return nil, translateError(err, "falha ao consultar pagamento no Mercado Pago")
	}
	return paymentFromSDK(resp), nil
}

func (c *Client) mockPayment(req PaymentRequest) *Payment {
	now := c.now()
	out := &Payment{
		ID:                strconv.FormatInt(now.UnixNano()%1_000_000_000_000, 10),
		Status:            StatusPending,
		StatusDetail:      "pending_waiting_transfer",
		ExternalReference: req.ExternalReference,
		Amount:            req.Amount,
	}
	if req.MethodID == PixMethodID {
		expires := now.Add(30 * time.Minute)
		if req.Expiration != nil {
			expires = *req.Expiration
		}
		out.QRCode = "00020126580014br.gov.bcb.pix0136mock-" + out.ID + "5204000053039865802BR6304ABCD"
		out.ExpiresAt = &expires
	} else {
		out.Status = StatusApproved
		out.StatusDetail = "accredited"
	}
	return out
}

// APIError carries the gateway's HTTP status and raw body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, e.Body)
}

func translateError(err error, message string) error {
	if err == nil {
		return nil
	}
	var respErr *mperror.ResponseError
	if errors.As(err, &respErr) {
		apiErr := &APIError{StatusCode: respErr.StatusCode, Body: respErr.Message}
		return pkgerrors.Wrap(pkgerrors.CodeGateway, apiErr, message).WithDetails(map[string]any{
			"status": respErr.StatusCode,
			"detail": respErr.Message,
		})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, message).WithDetails(map[string]any{
			"status": http.StatusGatewayTimeout,
			"detail": "timeout",
		})
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, message).WithDetails(map[string]any{
		"status": 0,
		"detail": err.Error(),
	})
}

// CentsToUnits converts integer cents into the decimal currency units the
// gateway expects.
func CentsToUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
