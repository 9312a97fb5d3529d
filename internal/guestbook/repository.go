package guestbook

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List pages messages newest first. A nil approved returns every message.
func (r *Repository) List(ctx context.Context, approved *bool, params pagination.Params) ([]models.GuestbookMessage, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.GuestbookMessage{})
	if approved != nil {
		query = query.Where("approved = ?", *approved)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.GuestbookMessage
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

func (r *Repository) Create(ctx context.Context, msg *models.GuestbookMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GuestbookMessage, error) {
	var msg models.GuestbookMessage
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *Repository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GuestbookMessage{}).
		Where("id = ?", id).
		Update("approved", approved)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.GuestbookMessage{}, "id = ?", id)
	return res.RowsAffected, res.Error
}
