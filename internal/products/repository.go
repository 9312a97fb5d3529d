package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

// cappedIncrementSQL bumps purchased_qty without ever crossing target_qty.
const cappedIncrementSQL = `
UPDATE products
SET purchased_qty = CASE
      WHEN purchased_qty + ? > target_qty THEN target_qty
      ELSE purchased_qty + ?
    END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

// AdminListFilters are the admin listing knobs; zero values are ignored.
type AdminListFilters struct {
	Search     string
	CategoryID *uuid.UUID
	IsActive   *bool
}

// ProductRow carries the joined category name alongside the product.
type ProductRow struct {
	models.Product `gorm:"embedded"`
	CategoryName   *string `gorm:"column:category_name"`
}

// Repository wires together all product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the requested products keyed by id. Missing ids are simply
// absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ListActive returns the public catalogue ordered by category then name.
func (r *Repository) ListActive(ctx context.Context, categoryID *uuid.UUID) ([]ProductRow, error) {
	query := r.db.WithContext(ctx).
		Table("products").
		Select("products.*, c.name AS category_name").
		Joins("LEFT JOIN categories c ON c.id = products.category_id").
		Where("products.is_active = ?", true)
	if categoryID != nil {
		query = query.Where("products.category_id = ?", *categoryID)
	}
	var rows []ProductRow
	err := query.
		Order("CASE WHEN c.sort_order IS NULL THEN 1 ELSE 0 END, c.sort_order ASC, products.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindDetail loads one product with its category name.
func (r *Repository) FindDetail(ctx context.Context, id uuid.UUID) (*ProductRow, error) {
	var rows []ProductRow
	err := r.db.WithContext(ctx).
		Table("products").
		Select("products.*, c.name AS category_name").
		Joins("LEFT JOIN categories c ON c.id = products.category_id").
		Where("products.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// AdminList pages every product, newest first.
func (r *Repository) AdminList(ctx context.Context, filters AdminListFilters, params pagination.Params) ([]ProductRow, int64, error) {
	params = params.Normalize()
	base := r.db.WithContext(ctx).Table("products")
	if search := strings.TrimSpace(filters.Search); search != "" {
		base = base.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if filters.CategoryID != nil {
		base = base.Where("products.category_id = ?", *filters.CategoryID)
	}
	if filters.IsActive != nil {
		base = base.Where("products.is_active = ?", *filters.IsActive)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ProductRow
	err := base.
		Select("products.*, c.name AS category_name").
		Joins("LEFT JOIN categories c ON c.id = products.category_id").
		Order("products.created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update persists every column of an existing product.
func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete removes the product; it reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetActive toggles visibility for the given ids and returns rows touched.
func (r *Repository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"is_active": active})
	return res.RowsAffected, res.Error
}

// CountByCategory counts products linked to a category.
func (r *Repository) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	return count, err
}

// CountByCategories returns product counts per category id.
func (r *Repository) CountByCategories(ctx context.Context) (map[uuid.UUID]int64, error) {
	type row struct {
		CategoryID uuid.UUID
		Total      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("category_id, COUNT(*) AS total").
		Where("category_id IS NOT NULL").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = r.Total
	}
	return out, nil
}

// IncrementPurchased adds qty to purchased_qty, clamped at target_qty.
func (r *Repository) IncrementPurchased(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(cappedIncrementSQL, qty, qty, id).Error
}

// PurchaseCounter runs capped increments on a caller-owned transaction.
type PurchaseCounter struct{}

func (PurchaseCounter) IncrementPurchased(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	return NewRepository(tx).IncrementPurchased(ctx, id, qty)
}
