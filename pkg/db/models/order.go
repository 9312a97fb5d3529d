package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
)

// Order is a purchaser's contribution, created pending before the gateway
// payment exists.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PurchaserName     string              `gorm:"column:purchaser_name;not null" json:"purchaser_name"`
	PurchaserEmail    string              `gorm:"column:purchaser_email;not null" json:"purchaser_email"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null" json:"payment_method"`
	AmountCents       int64               `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Status            enums.OrderStatus   `gorm:"column:status;not null;default:pending" json:"status"`
	ExternalPaymentID *string             `gorm:"column:external_payment_id" json:"external_payment_id,omitempty"`
	PreferenceID      *string             `gorm:"column:preference_id" json:"preference_id,omitempty"`
	ProviderStatus    *string             `gorm:"column:provider_status" json:"provider_status,omitempty"`
	PaidAt            *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots the unit price at order time.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null" json:"order_id"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Quantity       int       `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Product        *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
