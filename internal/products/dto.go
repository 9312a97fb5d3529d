package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
)

// ProductDTO is the catalogue payload returned to clients.
type ProductDTO struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	PriceCents   int64      `json:"price_cents"`
	TargetQty    int        `json:"target_qty"`
	PurchasedQty int        `json:"purchased_qty"`
	Remaining    int        `json:"remaining"`
	MaxPerCart   int        `json:"max_per_cart"`
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	CategoryName *string    `json:"category_name,omitempty"`
	IsActive     bool       `json:"is_active"`
	ImageURL     *string    `json:"image_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toDTO(p models.Product, categoryName *string) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		PriceCents:   p.PriceCents,
		TargetQty:    p.TargetQty,
		PurchasedQty: p.PurchasedQty,
		Remaining:    p.Remaining(),
		MaxPerCart:   p.MaxPerCart(),
		CategoryID:   p.CategoryID,
		CategoryName: categoryName,
		IsActive:     p.IsActive,
		ImageURL:     p.ImageURL,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func rowsToDTOs(rows []ProductRow) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row.Product, row.CategoryName))
	}
	return out
}

// AdminListResult mirrors the admin listing envelope.
type AdminListResult struct {
	Products []ProductDTO `json:"products"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}

// CreateInput holds the validated payload to create a product.
type CreateInput struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description"`
	PriceCents  int64      `json:"price_cents" validate:"gt=0"`
	TargetQty   int        `json:"target_qty" validate:"gte=1"`
	CategoryID  *uuid.UUID `json:"category_id"`
	IsActive    *bool      `json:"is_active"`
	ImageURL    *string    `json:"image_url"`
}

// UpdateInput holds optional mutation values for a product.
type UpdateInput struct {
	Name         *string    `json:"name" validate:"omitempty,max=200"`
	Description  *string    `json:"description"`
	PriceCents   *int64     `json:"price_cents" validate:"omitempty,gt=0"`
	TargetQty    *int       `json:"target_qty" validate:"omitempty,gte=1"`
	PurchasedQty *int       `json:"purchased_qty" validate:"omitempty,gte=0"`
	CategoryID   *uuid.UUID `json:"category_id"`
	IsActive     *bool      `json:"is_active"`
	ImageURL     *string    `json:"image_url"`
}
