package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
)

// Transition sources recorded on events and metrics.
const (
	SourceCheckout  = "checkout"
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
	SourceCron      = "cron"
)

// ProviderStatusExpired marks orders failed by the stale pending sweep.
const ProviderStatusExpired = "expired"

// ListFilters narrow admin order listings and exports; zero values are
// ignored.
type ListFilters struct {
	Search        string              `json:"search,omitempty"`
	Status        enums.OrderStatus   `json:"status,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method,omitempty"`
	DateFrom      *time.Time          `json:"date_from,omitempty"`
	DateTo        *time.Time          `json:"date_to,omitempty"`
}

// Line is one product requested at checkout, priced from the catalogue.
type Line struct {
	Product  models.Product
	Quantity int
}

// CreateInput describes a pending order about to be sent to the gateway.
type CreateInput struct {
	PurchaserName  string
	PurchaserEmail string
	Method         enums.PaymentMethod
	Lines          []Line
}

// PaymentUpdate is a gateway status observation for an order. EventID is set
// for webhook deliveries and deduplicates them.
type PaymentUpdate struct {
	OrderID           uuid.UUID
	ExternalPaymentID string
	ProviderStatus    string
	Source            string
	EventID           string
	EventType         string
}

// TransitionResult reports what ApplyPaymentStatus did.
type TransitionResult struct {
	OrderID   uuid.UUID         `json:"order_id"`
	OldStatus enums.OrderStatus `json:"old_status"`
	NewStatus enums.OrderStatus `json:"new_status"`
	Changed   bool              `json:"changed"`
	Duplicate bool              `json:"duplicate,omitempty"`
}

// StatusView is the public polling payload.
type StatusView struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountCents   int64               `json:"amount_cents"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

type ListResult struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// ExportResult is a rendered CSV export.
type ExportResult struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Count    int    `json:"count"`
}
