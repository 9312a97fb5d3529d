package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
)

// Repository reads and upserts the singleton settings rows (id = 1).
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// loadSingleton returns false when the row has never been written.
func (r *Repository) loadSingleton(ctx context.Context, dest any) (bool, error) {
	err := r.db.WithContext(ctx).Where("id = ?", models.SingletonID).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// upsert inserts the row or overwrites the listed columns.
func (r *Repository) upsert(ctx context.Context, row any, columns ...string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
	}).Create(row).Error
}

func (r *Repository) Campaign(ctx context.Context) (*models.CampaignSettings, bool, error) {
	var row models.CampaignSettings
	ok, err := r.loadSingleton(ctx, &row)
	return &row, ok, err
}

func (r *Repository) SaveCampaign(ctx context.Context, row *models.CampaignSettings) error {
	row.ID = models.SingletonID
	return r.upsert(ctx, row, "goal_cents")
}

func (r *Repository) Story(ctx context.Context) (*models.StoryContent, bool, error) {
	var row models.StoryContent
	ok, err := r.loadSingleton(ctx, &row)
	return &row, ok, err
}

func (r *Repository) SaveStory(ctx context.Context, row *models.StoryContent) error {
	row.ID = models.SingletonID
	return r.upsert(ctx, row, "content", "couple_photo")
}

func (r *Repository) Template(ctx context.Context) (*models.ThankYouTemplate, bool, error) {
	var row models.ThankYouTemplate
	ok, err := r.loadSingleton(ctx, &row)
	return &row, ok, err
}

func (r *Repository) SaveTemplate(ctx context.Context, row *models.ThankYouTemplate) error {
	row.ID = models.SingletonID
	return r.upsert(ctx, row, "subject", "body")
}

func (r *Repository) MercadoPago(ctx context.Context) (*models.MercadoPagoSettings, bool, error) {
	var row models.MercadoPagoSettings
	ok, err := r.loadSingleton(ctx, &row)
	return &row, ok, err
}

func (r *Repository) SaveMercadoPago(ctx context.Context, row *models.MercadoPagoSettings) error {
	row.ID = models.SingletonID
	return r.upsert(ctx, row, "access_token", "public_key", "webhook_secret")
}
