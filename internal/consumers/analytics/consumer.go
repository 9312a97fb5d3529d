package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/registry"
)

const ConsumerName = "analytics"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer streams order lifecycle events into the contributions table,
// one row per event with the gift lines nested.
type Consumer struct {
	client tableInserter
	table  string
	claims claimer
	logg   *logger.Logger
}

func NewConsumer(client tableInserter, table string, claims claimer, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if claims == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{client: client, table: strings.TrimSpace(table), claims: claims, logg: logg}, nil
}

func (c *Consumer) Name() string {
	return ConsumerName
}

func handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderCreated, enums.EventOrderPaid, enums.EventOrderFailed:
		return true
	}
	return false
}

// Process writes one contribution row. Malformed envelopes are not retried.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})
	if !handles(eventType) {
		c.logg.Debug(logCtx, "event not handled by analytics consumer")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("parse event id: %w", err))
	}
	row, err := buildRow(eventType, envelope)
	if err != nil {
		return registry.NewNonRetryableError(err)
	}
	logCtx = c.logg.WithOrderID(logCtx, row.OrderID)

	claimed, err := c.claims.Claim(ctx, ConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		c.logg.Info(logCtx, "event already ingested")
		return nil
	}

	saver := &cbigquery.StructSaver{Struct: row, InsertID: envelope.EventID}
	if err := c.client.InsertRows(ctx, c.table, []any{saver}); err != nil {
		if relErr := c.claims.Release(ctx, ConsumerName, eventID); relErr != nil {
			c.logg.Warn(logCtx, "idempotency claim not released")
		}
		return fmt.Errorf("insert contribution row: %w", err)
	}
	c.logg.Info(logCtx, "contribution event ingested")
	return nil
}

// PartitionField is the column the contributions table is partitioned on.
const PartitionField = "occurred_at"

// Schema is the contributions table layout derived from the row type.
func Schema() (cbigquery.Schema, error) {
	return cbigquery.InferSchema(contributionRow{})
}

type contributionLine struct {
	ProductID      string `bigquery:"product_id"`
	ProductName    string `bigquery:"product_name"`
	Quantity       int64  `bigquery:"quantity"`
	UnitPriceCents int64  `bigquery:"unit_price_cents"`
}

type contributionRow struct {
	EventID        string                  `bigquery:"event_id"`
	EventType      string                  `bigquery:"event_type"`
	OccurredAt     time.Time               `bigquery:"occurred_at"`
	OrderID        string                  `bigquery:"order_id"`
	PaymentMethod  string                  `bigquery:"payment_method"`
	AmountCents    int64                   `bigquery:"amount_cents"`
	ItemCount      int64                   `bigquery:"item_count"`
	Source         cbigquery.NullString    `bigquery:"source"`
	ProviderStatus cbigquery.NullString    `bigquery:"provider_status"`
	PaidAt         cbigquery.NullTimestamp `bigquery:"paid_at"`
	Lines          []contributionLine      `bigquery:"lines"`
	Payload        cbigquery.NullJSON      `bigquery:"payload"`
}

func buildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*contributionRow, error) {
	row := &contributionRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt,
		Payload:    cbigquery.NullJSON{JSONVal: string(envelope.Data), Valid: len(envelope.Data) > 0},
	}

	var lines []payloads.OrderLine
	switch eventType {
	case enums.EventOrderCreated:
		var p payloads.OrderCreatedEvent
		if err := decode(envelope.Data, &p); err != nil {
			return nil, err
		}
		row.OrderID, row.PaymentMethod, row.AmountCents = p.OrderID.String(), string(p.PaymentMethod), p.AmountCents
		lines = p.Items
	case enums.EventOrderPaid:
		var p payloads.OrderPaidEvent
		if err := decode(envelope.Data, &p); err != nil {
			return nil, err
		}
		row.OrderID, row.PaymentMethod, row.AmountCents = p.OrderID.String(), string(p.PaymentMethod), p.AmountCents
		row.Source = nullString(p.Source)
		row.PaidAt = cbigquery.NullTimestamp{Timestamp: p.PaidAt, Valid: !p.PaidAt.IsZero()}
		lines = p.Items
	case enums.EventOrderFailed:
		var p payloads.OrderFailedEvent
		if err := decode(envelope.Data, &p); err != nil {
			return nil, err
		}
		row.OrderID, row.PaymentMethod, row.AmountCents = p.OrderID.String(), string(p.PaymentMethod), p.AmountCents
		row.Source = nullString(p.Source)
		row.ProviderStatus = nullString(p.ProviderStatus)
	default:
		return nil, fmt.Errorf("unsupported event type %s", eventType)
	}

	for _, line := range lines {
		row.ItemCount += int64(line.Quantity)
		row.Lines = append(row.Lines, contributionLine{
			ProductID:      line.ProductID.String(),
			ProductName:    line.ProductName,
			Quantity:       int64(line.Quantity),
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	return row, nil
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func nullString(v string) cbigquery.NullString {
	v = strings.TrimSpace(v)
	return cbigquery.NullString{StringVal: v, Valid: v != ""}
}
