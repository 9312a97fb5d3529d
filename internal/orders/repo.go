package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its item snapshots.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) filtered(ctx context.Context, filters ListFilters) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if search := strings.ToLower(strings.TrimSpace(filters.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"LOWER(purchaser_name) LIKE ? OR LOWER(purchaser_email) LIKE ? OR LOWER(COALESCE(external_payment_id, '')) LIKE ?",
			like, like, like,
		)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filters.PaymentMethod)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error) {
	query := r.filtered(ctx, filters)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ListAll(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	var rows []models.Order
	if err := r.filtered(ctx, filters).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindStalePending returns pending orders created before cutoff, oldest
// first. withPayment restricts the result to orders that already carry a
// gateway payment id.
func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time, withPayment bool, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusPending).
		Where("created_at < ?", cutoff)
	if withPayment {
		query = query.Where("external_payment_id IS NOT NULL AND external_payment_id <> ''")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TransitionFromPending moves a pending order to the target status. False
// means the order was no longer pending and nothing changed.
func (r *repository) TransitionFromPending(ctx context.Context, id uuid.UUID, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordWebhookEvent inserts the (provider, event_id) marker. False means the
// event was already processed.
func (r *repository) RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	row := &models.WebhookEvent{Provider: provider, EventID: eventID, EventType: eventType}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
