package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

const entityProduct = "product"

type productListRequest struct {
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Search     string     `json:"search"`
	CategoryID *uuid.UUID `json:"category_id"`
	IsActive   *bool      `json:"is_active"`
}

type productUpdateRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
	product.UpdateInput
}

type productIDRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

type productToggleRequest struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	IsActive *bool     `json:"is_active" validate:"required"`
}

type productBulkToggleRequest struct {
	IDs      []uuid.UUID `json:"ids" validate:"required,min=1"`
	IsActive *bool       `json:"is_active" validate:"required"`
}

// Products builds the admin product resource.
func Products(svc product.Service, recorder audit.Recorder) *Resource {
	return newResource("products", map[string]Handler{
		"list": typed(func(ctx context.Context, _ Actor, req productListRequest) (any, error) {
			return svc.AdminList(ctx, product.AdminListFilters{
				Search:     req.Search,
				CategoryID: req.CategoryID,
				IsActive:   req.IsActive,
			}, pagination.Params{Page: req.Page, Limit: req.Limit})
		}),
		"create": typed(func(ctx context.Context, actor Actor, req product.CreateInput) (any, error) {
			created, err := svc.Create(ctx, req)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "create_product", entityProduct, created.ID.String(), map[string]any{
				"name":        created.Name,
				"price_cents": created.PriceCents,
			})
			return created, nil
		}),
		"update": typed(func(ctx context.Context, actor Actor, req productUpdateRequest) (any, error) {
			updated, err := svc.Update(ctx, req.ID, req.UpdateInput)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "update_product", entityProduct, updated.ID.String(), map[string]any{
				"name": updated.Name,
			})
			return updated, nil
		}),
		"delete": typed(func(ctx context.Context, actor Actor, req productIDRequest) (any, error) {
			if err := svc.Delete(ctx, req.ID); err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "delete_product", entityProduct, req.ID.String(), nil)
			return map[string]any{"success": true}, nil
		}),
		"toggle_active": typed(func(ctx context.Context, actor Actor, req productToggleRequest) (any, error) {
			updated, err := svc.SetActive(ctx, req.ID, *req.IsActive)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "toggle_product", entityProduct, req.ID.String(), map[string]any{
				"is_active": *req.IsActive,
			})
			return updated, nil
		}),
		"bulk_toggle": typed(func(ctx context.Context, actor Actor, req productBulkToggleRequest) (any, error) {
			affected, err := svc.BulkSetActive(ctx, req.IDs, *req.IsActive)
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(req.IDs))
			for _, id := range req.IDs {
				ids = append(ids, id.String())
			}
			record(ctx, recorder, actor, "bulk_toggle_products", entityProduct, "", map[string]any{
				"ids":       ids,
				"is_active": *req.IsActive,
				"affected":  affected,
			})
			return map[string]any{"updated": affected}, nil
		}),
	})
}
