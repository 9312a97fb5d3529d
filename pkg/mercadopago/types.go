package mercadopago

import (
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// Provider payment statuses.
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusAuthorized  = "authorized"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
	StatusDeclined    = "declined"
)

type Payer struct {
	Name  string
	Email string
}

// FirstLast splits the payer name the way the gateway expects it; a single
// word is used for both parts.
func (p Payer) FirstLast() (string, string) {
	parts := strings.Fields(p.Name)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}

type BackURLs struct {
	Success string
	Pending string
	Failure string
}

// PreferenceRequest describes a single-line Checkout Pro preference.
type PreferenceRequest struct {
	Title             string
	Quantity          int
	UnitPrice         decimal.Decimal
	ExternalReference string
	NotificationURL   string
	Payer             *Payer
	BackURLs          *BackURLs
	AutoReturn        string
}

// Validate rejects requests the gateway must never see.
func (r PreferenceRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidPayload, "título é obrigatório")
	}
	if r.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidPayload, "quantidade deve ser maior que zero")
	}
	if !r.UnitPrice.Round(2).IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidPayload, "valor deve ser maior que zero")
	}
	return nil
}

func (r PreferenceRequest) toSDK() preference.Request {
	out := preference.Request{
		Items: []preference.ItemRequest{{
			Title:      strings.TrimSpace(r.Title),
			Quantity:   r.Quantity,
			UnitPrice:  r.UnitPrice.Round(2).InexactFloat64(),
			CurrencyID: CurrencyBRL,
		}},
		ExternalReference: r.ExternalReference,
		NotificationURL:   r.NotificationURL,
		AutoReturn:        r.AutoReturn,
	}
	if r.BackURLs != nil {
		out.BackURLs = &preference.BackURLsRequest{
			Success: r.BackURLs.Success,
			Pending: r.BackURLs.Pending,
			Failure: r.BackURLs.Failure,
		}
	}
	if r.Payer != nil {
		first, last := r.Payer.FirstLast()
		out.Payer = &preference.PayerRequest{
			Name:    first,
			Surname: last,
			Email:   r.Payer.Email,
		}
	}
	return out
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

// PaymentRequest describes a direct payment. MethodID is "pix" for PIX and
// empty for cards, letting the payer pick the brand.
type PaymentRequest struct {
	Amount            decimal.Decimal
	Description       string
	MethodID          string
	Installments      int
	CardToken         string
	ExternalReference string
	NotificationURL   string
	Expiration        *time.Time
	Payer             Payer
}

func (r PaymentRequest) Validate() error {
	if !r.Amount.Round(2).IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidPayload, "valor deve ser maior que zero")
	}
	if strings.TrimSpace(r.Description) == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidPayload, "descrição é obrigatória")
	}
	if strings.TrimSpace(r.Payer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidPayload, "email do pagador é obrigatório")
	}
	return nil
}

func (r PaymentRequest) toSDK() payment.Request {
	first, last := r.Payer.FirstLast()
	out := payment.Request{
		TransactionAmount: r.Amount.Round(2).InexactFloat64(),
		Description:       r.Description,
		PaymentMethodID:   r.MethodID,
		Token:             r.CardToken,
		ExternalReference: r.ExternalReference,
		NotificationURL:   r.NotificationURL,
		DateOfExpiration:  r.Expiration,
		Payer: &payment.PayerRequest{
			Email:     r.Payer.Email,
			FirstName: first,
			LastName:  last,
		},
	}
	if r.Installments > 0 {
		out.Installments = r.Installments
	}
	return out
}

// Payment is the subset of the gateway payment the registry relies on.
type Payment struct {
	ID                  string          `json:"id"`
	Status              string          `json:"status"`
	StatusDetail        string          `json:"status_detail,omitempty"`
	ExternalReference   string          `json:"external_reference,omitempty"`
	Amount              decimal.Decimal `json:"transaction_amount"`
	QRCode              string          `json:"qr_code,omitempty"`
	QRCodeBase64        string          `json:"qr_code_base64,omitempty"`
	TicketURL           string          `json:"ticket_url,omitempty"`
	ExternalResourceURL string          `json:"external_resource_url,omitempty"`
	ExpiresAt           *time.Time      `json:"date_of_expiration,omitempty"`
}

// ActionRequired reports whether a card payment waits on a payer step.
func (p Payment) ActionRequired() bool {
	return p.Status == StatusPending && p.StatusDetail == "pending_waiting_transfer"
}

func paymentFromSDK(resp *payment.Response) *Payment {
	if resp == nil {
		return nil
	}
	out := &Payment{
		ID:                  strconv.Itoa(resp.ID),
		Status:              resp.Status,
		StatusDetail:        resp.StatusDetail,
		ExternalReference:   resp.ExternalReference,
		Amount:              decimal.NewFromFloat(resp.TransactionAmount).Round(2),
		QRCode:              resp.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:        resp.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:           resp.PointOfInteraction.TransactionData.TicketURL,
		ExternalResourceURL: resp.TransactionDetails.ExternalResourceURL,
	}
	if !resp.DateOfExpiration.IsZero() {
		expires := resp.DateOfExpiration
		out.ExpiresAt = &expires
	}
	return out
}
