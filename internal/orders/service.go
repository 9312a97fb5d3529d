package orders

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/metrics"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

// WebhookProvider is the webhook_events.provider value for Mercado Pago.
const WebhookProvider = "mercadopago"

type ServiceParams struct {
	Repo    Repository
	Tx      db.TxRunner
	Outbox  outbox.Emitter
	Counter PurchaseCounter
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

// Service owns the order lifecycle: pending creation, the single
// pending -> paid|failed transition, and admin reads.
type Service struct {
	repo    Repository
	tx      db.TxRunner
	outbox  outbox.Emitter
	counter PurchaseCounter
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Counter == nil {
		return nil, fmt.Errorf("purchase counter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		counter: params.Counter,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// CreatePending persists a pending order with unit price snapshots and
// queues order_created in the same transaction.
func (s *Service) CreatePending(ctx context.Context, input CreateInput) (*models.Order, error) {
	name := strings.TrimSpace(input.PurchaserName)
	email := strings.TrimSpace(input.PurchaserEmail)
	if name == "" || email == "" || len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Todos os campos são obrigatórios")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email inválido")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "método de pagamento inválido")
	}

	order := &models.Order{
		PurchaserName:  name,
		PurchaserEmail: email,
		PaymentMethod:  input.Method,
		Status:         enums.OrderStatusPending,
	}
	lines := make([]payloads.OrderLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantidade deve ser pelo menos 1")
		}
		order.AmountCents += line.Product.PriceCents * int64(line.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.Product.ID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.Product.PriceCents,
		})
		lines = append(lines, payloads.OrderLine{
			ProductID:      line.Product.ID,
			ProductName:    line.Product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.Product.PriceCents,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				PaymentMethod: order.PaymentMethod,
				AmountCents:   order.AmountCents,
				Items:         lines,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// AttachPreference stores the Checkout Pro preference id.
func (s *Service) AttachPreference(ctx context.Context, orderID uuid.UUID, preferenceID string) error {
	err := s.repo.UpdateFields(ctx, orderID, map[string]any{"preference_id": preferenceID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store preference id")
	}
	return nil
}

// AttachPayment stores the direct payment id and its initial provider status.
func (s *Service) AttachPayment(ctx context.Context, orderID uuid.UUID, paymentID, providerStatus string) error {
	updates := map[string]any{"external_payment_id": paymentID}
	if providerStatus != "" {
		updates["provider_status"] = providerStatus
	}
	if err := s.repo.UpdateFields(ctx, orderID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment id")
	}
	return nil
}

// MarkFailed fails a pending order without a gateway observation, e.g. when
// the gateway call itself failed or the order expired.
func (s *Service) MarkFailed(ctx context.Context, orderID uuid.UUID, source, reason string) (*TransitionResult, error) {
	return s.apply(ctx, PaymentUpdate{OrderID: orderID, ProviderStatus: reason, Source: source}, enums.OrderStatusFailed)
}

// ApplyPaymentStatus maps the provider status and applies the transition in
// one transaction: webhook dedup marker, conditional status update, capped
// purchase increments and the outbox event. Repeated or late observations
// are no-ops.
func (s *Service) ApplyPaymentStatus(ctx context.Context, update PaymentUpdate) (*TransitionResult, error) {
	return s.apply(ctx, update, mercadopago.OrderStatusFor(update.ProviderStatus))
}

func (s *Service) apply(ctx context.Context, update PaymentUpdate, target enums.OrderStatus) (*TransitionResult, error) {
	result := &TransitionResult{OrderID: update.OrderID}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if update.EventID != "" {
			inserted, err := repo.RecordWebhookEvent(ctx, WebhookProvider, update.EventID, update.EventType)
			if err != nil {
				return err
			}
			if !inserted {
				result.Duplicate = true
				return nil
			}
		}

		order, err := repo.FindWithItems(ctx, update.OrderID)
		if err != nil {
			return err
		}
		result.OldStatus = order.Status
		result.NewStatus = order.Status

		updates := map[string]any{}
		if update.ProviderStatus != "" {
			updates["provider_status"] = update.ProviderStatus
		}
		if update.ExternalPaymentID != "" {
			updates["external_payment_id"] = update.ExternalPaymentID
		}
		var paidAt time.Time
		if target == enums.OrderStatusPaid {
			paidAt = s.now().UTC()
			updates["paid_at"] = paidAt
		}

		changed, err := repo.TransitionFromPending(ctx, order.ID, target, updates)
		if err != nil {
			return err
		}
		if !changed || target == enums.OrderStatusPending {
			return nil
		}
		result.Changed = true
		result.NewStatus = target

		if target == enums.OrderStatusPaid {
			for _, item := range order.Items {
				if err := s.counter.IncrementPurchased(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			order.PaidAt = &paidAt
		}
		if update.ExternalPaymentID != "" {
			order.ExternalPaymentID = &update.ExternalPaymentID
		}
		return s.emitTransition(ctx, tx, order, target, update)
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pedido não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment status")
	}

	if result.Changed {
		s.metrics.Transition(string(result.NewStatus), update.Source)
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":        update.OrderID.String(),
			"old_status":      result.OldStatus,
			"new_status":      result.NewStatus,
			"provider_status": update.ProviderStatus,
			"source":          update.Source,
		})
		s.logg.Info(logCtx, "order status changed")
	}
	return result, nil
}

func (s *Service) emitTransition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, update PaymentUpdate) error {
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
	}
	switch target {
	case enums.OrderStatusPaid:
		event.EventType = enums.EventOrderPaid
		data := payloads.OrderPaidEvent{
			OrderID:        order.ID,
			PurchaserName:  order.PurchaserName,
			PurchaserEmail: order.PurchaserEmail,
			PaymentMethod:  order.PaymentMethod,
			AmountCents:    order.AmountCents,
			PaidAt:         *order.PaidAt,
			Source:         update.Source,
			Items:          orderLines(order.Items),
		}
		if order.ExternalPaymentID != nil {
			data.ExternalPaymentID = *order.ExternalPaymentID
		}
		event.Data = data
	case enums.OrderStatusFailed:
		event.EventType = enums.EventOrderFailed
		event.Data = payloads.OrderFailedEvent{
			OrderID:        order.ID,
			PaymentMethod:  order.PaymentMethod,
			AmountCents:    order.AmountCents,
			ProviderStatus: update.ProviderStatus,
			Source:         update.Source,
		}
	default:
		return nil
	}
	return s.outbox.Emit(ctx, tx, event)
}

func orderLines(items []models.OrderItem) []payloads.OrderLine {
	out := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		line := payloads.OrderLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
		}
		out = append(out, line)
	}
	return out
}

// Get returns the order with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindWithItems(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pedido não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Status is the public polling view.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pedido não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &StatusView{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		AmountCents:   order.AmountCents,
		PaidAt:        order.PaidAt,
	}, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	if rows == nil {
		rows = []models.Order{}
	}
	return &ListResult{Orders: rows, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// StalePending lists pending orders older than age.
func (s *Service) StalePending(ctx context.Context, age time.Duration, withPayment bool, limit int) ([]models.Order, error) {
	rows, err := s.repo.FindStalePending(ctx, s.now().UTC().Add(-age), withPayment, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	return rows, nil
}
