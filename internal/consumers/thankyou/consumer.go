// Package thankyou emails purchasers once their order is paid.
package thankyou

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/content"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/registry"
)

const ConsumerName = "thankyou-mailer"

type orderLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type mailer interface {
	Enabled() bool
	SendThankYou(ctx context.Context, toName, toEmail string, vars content.Vars) (bool, error)
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type Consumer struct {
	orders  orderLoader
	mail    mailer
	manager claimer
	logg    *logger.Logger
}

func NewConsumer(orders orderLoader, mail mailer, manager claimer, logg *logger.Logger) (*Consumer, error) {
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if mail == nil {
		return nil, fmt.Errorf("content service required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{orders: orders, mail: mail, manager: manager, logg: logg}, nil
}

func (c *Consumer) Name() string {
	return ConsumerName
}

// Process sends the thank-you email for order_paid events. Delivery that is
// not configured is skipped without claiming the event.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	if eventType != enums.EventOrderPaid {
		return nil
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})
	if !c.mail.Enabled() {
		c.logg.Debug(logCtx, "email delivery disabled, thank-you skipped")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("parse event id: %w", err))
	}
	var payload payloads.OrderPaidEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("decode order_paid payload: %w", err))
	}
	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())

	claimed, err := c.manager.Claim(ctx, ConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		c.logg.Info(logCtx, "thank-you already sent")
		return nil
	}

	order, err := c.orders.Get(ctx, payload.OrderID)
	if err != nil {
		_ = c.manager.Release(ctx, ConsumerName, eventID)
		return fmt.Errorf("load order: %w", err)
	}
	if order.Status != enums.OrderStatusPaid {
		c.logg.Warn(logCtx, "order not paid, thank-you skipped")
		return nil
	}

	sent, err := c.mail.SendThankYou(ctx, order.PurchaserName, order.PurchaserEmail, content.Vars{
		Name:     order.PurchaserName,
		TotalBRL: content.FormatBRL(order.AmountCents),
		OrderID:  order.ID.String(),
	})
	if err != nil {
		c.logg.Error(logCtx, "thank-you email failed", err)
		_ = c.manager.Release(ctx, ConsumerName, eventID)
		return err
	}
	if sent {
		c.logg.Info(logCtx, "thank-you email sent")
	}
	return nil
}
