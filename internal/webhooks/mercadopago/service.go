package mpwebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
)

const EventTypePayment = "payment"

// Results reported to metrics and logs.
const (
	ResultProcessed = "processed"
	ResultIgnored   = "ignored"
	ResultDuplicate = "duplicate"
	ResultUnchanged = "unchanged"
)

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Event is a Mercado Pago notification body.
type Event struct {
	ID     ID     `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID ID `json:"id"`
	} `json:"data"`
}

// DedupKey is the notification id used for replay protection. It is empty
// when the gateway sent none; such deliveries rely on the conditional order
// transition alone.
func (e Event) DedupKey() string {
	return strings.TrimSpace(string(e.ID))
}

func DecodeEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidPayload, err, "payload inválido")
	}
	return &event, nil
}

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type paymentApplier interface {
	ApplyPaymentStatus(ctx context.Context, update orders.PaymentUpdate) (*orders.TransitionResult, error)
}

type ServiceParams struct {
	Orders  paymentApplier
	Gateway paymentFetcher
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

// Service turns payment notifications into order transitions.
type Service struct {
	orders  paymentApplier
	gateway paymentFetcher
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		orders:  params.Orders,
		gateway: params.Gateway,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// HandleEvent returns the processing result. Non-payment events and
// payments that do not reference an order are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (string, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeInvalidPayload, "payload inválido")
	}
	if event.Type != EventTypePayment {
		s.metrics.WebhookEvent(ResultIgnored)
		return ResultIgnored, nil
	}
	if event.Data.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeInvalidPayload, "id do pagamento ausente")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.DedupKey(),
		"payment_id": string(event.Data.ID),
	})

	payment, err := s.gateway.GetPayment(ctx, string(event.Data.ID))
	s.metrics.GatewayCall("get_payment", err)
	if err != nil {
		return "", err
	}

	orderID, err := uuid.Parse(strings.TrimSpace(payment.ExternalReference))
	if err != nil {
		s.logg.Warn(ctx, "payment without order reference ignored")
		s.metrics.WebhookEvent(ResultIgnored)
		return ResultIgnored, nil
	}

	transition, err := s.orders.ApplyPaymentStatus(ctx, orders.PaymentUpdate{
		OrderID:           orderID,
		ExternalPaymentID: payment.ID,
		ProviderStatus:    payment.Status,
		Source:            orders.SourceWebhook,
		EventID:           event.DedupKey(),
		EventType:         event.Type,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "payment references unknown order")
			s.metrics.WebhookEvent(ResultIgnored)
			return ResultIgnored, nil
		}
		return "", err
	}

	result := ResultUnchanged
	switch {
	case transition.Duplicate:
		result = ResultDuplicate
	case transition.Changed:
		result = ResultProcessed
	}
	s.metrics.WebhookEvent(result)
	return result, nil
}
