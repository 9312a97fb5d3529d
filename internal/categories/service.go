package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// Direction of a reorder request.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// CategoryDTO optionally carries the number of linked products.
type CategoryDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	SortOrder    int       `json:"sort_order"`
	ProductCount *int64    `json:"product_count,omitempty"`
}

// ReorderResult reports whether the swap happened. An extremum is not an
// error.
type ReorderResult struct {
	Moved     bool       `json:"moved"`
	Message   string     `json:"message,omitempty"`
	SortOrder int        `json:"sort_order"`
	SwappedID *uuid.UUID `json:"swapped_with,omitempty"`
}

type productCounter interface {
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	CountByCategories(ctx context.Context) (map[uuid.UUID]int64, error)
}

type Service struct {
	repo     *Repository
	products productCounter
	tx       db.TxRunner
}

func NewService(repo *Repository, products productCounter, tx db.TxRunner) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product counter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, products: products, tx: tx}, nil
}

// List returns categories in display order.
func (s *Service) List(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryDTO{ID: row.ID, Name: row.Name, SortOrder: row.SortOrder})
	}
	return out, nil
}

// ListWithCounts adds product counts for the admin view.
func (s *Service) ListWithCounts(ctx context.Context) ([]CategoryDTO, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.products.CountByCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	for i := range list {
		n := counts[list[i].ID]
		list[i].ProductCount = &n
	}
	return list, nil
}

func (s *Service) Create(ctx context.Context, name string, sortOrder int) (*CategoryDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nome é obrigatório")
	}
	cat := &models.Category{Name: name, SortOrder: sortOrder}
	if err := s.repo.Create(ctx, cat); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return &CategoryDTO{ID: cat.ID, Name: cat.Name, SortOrder: cat.SortOrder}, nil
}

// Update renames the category; sort order is kept unless provided.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name string, sortOrder *int) (*CategoryDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nome é obrigatório")
	}
	cat, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	order := cat.SortOrder
	if sortOrder != nil {
		order = *sortOrder
	}
	if err := s.repo.UpdateFields(ctx, id, name, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
	}
	return &CategoryDTO{ID: id, Name: name, SortOrder: order}, nil
}

// Delete refuses to remove a category that still has products.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Não é possível excluir categoria com %d produto(s)", count)).
			WithDetails(map[string]any{"product_count": count})
	}
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "categoria não encontrada")
	}
	return nil
}

// Reorder swaps sort_order with the nearest neighbour in one transaction.
func (s *Service) Reorder(ctx context.Context, id uuid.UUID, direction Direction) (*ReorderResult, error) {
	if !direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direção deve ser up ou down")
	}
	var result *ReorderResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		neighbor, err := repo.Neighbor(ctx, current.SortOrder, direction == DirectionUp)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load neighbour")
		}
		if neighbor == nil {
			msg := "Não é possível mover para baixo"
			if direction == DirectionUp {
				msg = "Não é possível mover para cima"
			}
			result = &ReorderResult{Moved: false, Message: msg, SortOrder: current.SortOrder}
			return nil
		}
		if err := repo.SetSortOrder(ctx, current.ID, neighbor.SortOrder); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "swap sort order")
		}
		if err := repo.SetSortOrder(ctx, neighbor.ID, current.SortOrder); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "swap sort order")
		}
		swapped := neighbor.ID
		result = &ReorderResult{Moved: true, SortOrder: neighbor.SortOrder, SwappedID: &swapped}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Category, error) {
	cat, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "categoria não encontrada")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return cat, nil
}
