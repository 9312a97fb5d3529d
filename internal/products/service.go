package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

// Service exposes the public catalogue and admin product management.
type Service interface {
	ListActive(ctx context.Context, categoryID *uuid.UUID) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)

	AdminList(ctx context.Context, filters AdminListFilters, params pagination.Params) (*AdminListResult, error)
	Create(ctx context.Context, input CreateInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*ProductDTO, error)
	BulkSetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error)
}

type service struct {
	repo *Repository
}

// NewService constructs a product service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context, categoryID *uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListActive(ctx, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rowsToDTOs(rows), nil
}

// Get returns an active product; inactive products are hidden from the
// public catalogue.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	row, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado")
	}
	dto := toDTO(row.Product, row.CategoryName)
	return &dto, nil
}

func (s *service) AdminList(ctx context.Context, filters AdminListFilters, params pagination.Params) (*AdminListResult, error) {
	params = params.Normalize()
	rows, total, err := s.repo.AdminList(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &AdminListResult{
		Products: rowsToDTOs(rows),
		Total:    total,
		Page:     params.Page,
		Limit:    params.Limit,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nome é obrigatório")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preço deve ser maior que zero")
	}
	if input.TargetQty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantidade desejada deve ser pelo menos 1")
	}
	product := &models.Product{
		Name:        name,
		Description: trimmedOrNil(input.Description),
		PriceCents:  input.PriceCents,
		TargetQty:   input.TargetQty,
		CategoryID:  input.CategoryID,
		IsActive:    true,
		ImageURL:    trimmedOrNil(input.ImageURL),
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	dto := toDTO(*product, nil)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(product, input); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	dto := toDTO(*product, nil)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado")
	}
	return nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.SetActive(ctx, []uuid.UUID{id}, active); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle product")
	}
	product.IsActive = active
	dto := toDTO(*product, nil)
	return &dto, nil
}

func (s *service) BulkSetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ids são obrigatórios")
	}
	n, err := s.repo.SetActive(ctx, ids, active)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk toggle products")
	}
	return n, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func applyUpdate(product *models.Product, input UpdateInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "nome é obrigatório")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = trimmedOrNil(input.Description)
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "preço deve ser maior que zero")
		}
		product.PriceCents = *input.PriceCents
	}
	if input.TargetQty != nil {
		if *input.TargetQty < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantidade desejada deve ser pelo menos 1")
		}
		product.TargetQty = *input.TargetQty
	}
	if input.PurchasedQty != nil {
		product.PurchasedQty = *input.PurchasedQty
	}
	if product.PurchasedQty > product.TargetQty {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantidade comprada não pode exceder a desejada")
	}
	if input.CategoryID != nil {
		if *input.CategoryID == uuid.Nil {
			product.CategoryID = nil
		} else {
			id := *input.CategoryID
			product.CategoryID = &id
		}
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.ImageURL != nil {
		product.ImageURL = trimmedOrNil(input.ImageURL)
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
