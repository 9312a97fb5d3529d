package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/api/validators"
	"github.com/angelmondragon/enxoval-backend/internal/checkout"
	"github.com/angelmondragon/enxoval-backend/internal/payments"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type paymentService interface {
	CreatePreference(ctx context.Context, input payments.PreferenceInput) (*payments.PreferenceResult, error)
	Health(ctx context.Context) *payments.HealthResult
	CreateDirect(ctx context.Context, input payments.DirectInput) (*payments.DirectResult, error)
	PixQR(ctx context.Context, orderID uuid.UUID) ([]byte, error)
}

// directProduct accepts both "id" and "product_id".
type directProduct struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type directPaymentRequest struct {
	PurchaserName  string              `json:"purchaser_name"`
	PurchaserEmail string              `json:"purchaser_email"`
	Method         enums.PaymentMethod `json:"payment_method"`
	Products       []directProduct     `json:"products"`
	Installments   int                 `json:"installments,omitempty"`
	CardToken      string              `json:"card_token,omitempty"`
}

func (d directPaymentRequest) toInput() payments.DirectInput {
	lines := make([]checkout.LineRequest, 0, len(d.Products))
	for _, p := range d.Products {
		id := p.ProductID
		if id == uuid.Nil {
			id = p.ID
		}
		lines = append(lines, checkout.LineRequest{ProductID: id, Quantity: p.Quantity})
	}
	return payments.DirectInput{
		PurchaserName:  d.PurchaserName,
		PurchaserEmail: d.PurchaserEmail,
		Method:         d.Method,
		Products:       lines,
		Installments:   d.Installments,
		CardToken:      d.CardToken,
	}
}

func PaymentPreference(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payments.PreferenceInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreatePreference(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentHealth always answers 200; the gateway outcome is in the body.
func PaymentHealth(svc paymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Health(r.Context()))
	}
}

func PaymentDirect(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body directPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateDirect(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func PixQRCode(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		png, err := svc.PixQR(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteBody(w, http.StatusOK, "image/png", png)
	}
}
