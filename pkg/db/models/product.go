package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxQtyPerCart caps how many units of one product a single cart may hold.
const MaxQtyPerCart = 5

// Product is a gift item with a target quantity and a purchase counter.
type Product struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"column:name;not null" json:"name"`
	Description  *string    `gorm:"column:description" json:"description,omitempty"`
	PriceCents   int64      `gorm:"column:price_cents;not null" json:"price_cents"`
	TargetQty    int        `gorm:"column:target_qty;not null;default:1" json:"target_qty"`
	PurchasedQty int        `gorm:"column:purchased_qty;not null;default:0" json:"purchased_qty"`
	CategoryID   *uuid.UUID `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	ImageURL     *string    `gorm:"column:image_url" json:"image_url,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Remaining is the number of units still missing to reach the target.
func (p Product) Remaining() int {
	if p.PurchasedQty >= p.TargetQty {
		return 0
	}
	return p.TargetQty - p.PurchasedQty
}

// MaxPerCart is the largest quantity a cart may hold for this product.
func (p Product) MaxPerCart() int {
	remaining := p.Remaining()
	if remaining > MaxQtyPerCart {
		return MaxQtyPerCart
	}
	return remaining
}
