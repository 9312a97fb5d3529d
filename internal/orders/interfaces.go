package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error)
	ListAll(ctx context.Context, filters ListFilters) ([]models.Order, error)
	FindStalePending(ctx context.Context, cutoff time.Time, withPayment bool, limit int) ([]models.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	TransitionFromPending(ctx context.Context, id uuid.UUID, to enums.OrderStatus, updates map[string]any) (bool, error)
	RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string) (bool, error)
}

// PurchaseCounter bumps product counters inside the transition transaction.
type PurchaseCounter interface {
	IncrementPurchased(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}
