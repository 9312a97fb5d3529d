package payloads

import (
	"time"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderLine is the item snapshot carried by order events.
type OrderLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// OrderCreatedEvent is emitted when a pending order is persisted at checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountCents   int64               `json:"amount_cents"`
	Items         []OrderLine         `json:"items"`
}

// OrderPaidEvent is emitted once when an order transitions to paid.
type OrderPaidEvent struct {
	OrderID           uuid.UUID           `json:"order_id"`
	PurchaserName     string              `json:"purchaser_name"`
	PurchaserEmail    string              `json:"purchaser_email"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	AmountCents       int64               `json:"amount_cents"`
	ExternalPaymentID string              `json:"external_payment_id,omitempty"`
	PaidAt            time.Time           `json:"paid_at"`
	Source            string              `json:"source"`
	Items             []OrderLine         `json:"items"`
}

// OrderFailedEvent is emitted once when an order transitions to failed.
type OrderFailedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	AmountCents    int64               `json:"amount_cents"`
	ProviderStatus string              `json:"provider_status,omitempty"`
	Source         string              `json:"source"`
}

// GuestbookMessagePostedEvent is emitted when a visitor leaves a message
// awaiting moderation.
type GuestbookMessagePostedEvent struct {
	MessageID  uuid.UUID `json:"message_id"`
	AuthorName string    `json:"author_name"`
}
