package admin

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/categories"
)

const entityCategory = "category"

type categoryCreateRequest struct {
	Name      string `json:"name" validate:"required"`
	SortOrder int    `json:"sort_order"`
}

// categoryRef names the target category as category_id; id is accepted too.
type categoryRef struct {
	CategoryID uuid.UUID `json:"category_id" validate:"required_without=ID"`
	ID         uuid.UUID `json:"id"`
}

func (r categoryRef) target() uuid.UUID {
	if r.CategoryID != uuid.Nil {
		return r.CategoryID
	}
	return r.ID
}

type categoryUpdateRequest struct {
	categoryRef
	Name      string `json:"name" validate:"required"`
	SortOrder *int   `json:"sort_order"`
}

type categoryIDRequest struct {
	categoryRef
}

type categoryReorderRequest struct {
	categoryRef
	Direction categories.Direction `json:"direction" validate:"required,oneof=up down"`
}

// Categories builds the admin category resource.
func Categories(svc *categories.Service, recorder audit.Recorder) *Resource {
	return newResource("categories", map[string]Handler{
		"list": func(ctx context.Context, _ Actor, _ json.RawMessage) (any, error) {
			list, err := svc.ListWithCounts(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"categories": list}, nil
		},
		"create": typed(func(ctx context.Context, actor Actor, req categoryCreateRequest) (any, error) {
			created, err := svc.Create(ctx, req.Name, req.SortOrder)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "create_category", entityCategory, created.ID.String(), map[string]any{
				"name": created.Name,
			})
			return created, nil
		}),
		"update": typed(func(ctx context.Context, actor Actor, req categoryUpdateRequest) (any, error) {
			updated, err := svc.Update(ctx, req.target(), req.Name, req.SortOrder)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "update_category", entityCategory, updated.ID.String(), map[string]any{
				"name":       updated.Name,
				"sort_order": updated.SortOrder,
			})
			return updated, nil
		}),
		"delete": typed(func(ctx context.Context, actor Actor, req categoryIDRequest) (any, error) {
			id := req.target()
			if err := svc.Delete(ctx, id); err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "delete_category", entityCategory, id.String(), nil)
			return map[string]any{"success": true}, nil
		}),
		"reorder": typed(func(ctx context.Context, actor Actor, req categoryReorderRequest) (any, error) {
			id := req.target()
			result, err := svc.Reorder(ctx, id, req.Direction)
			if err != nil {
				return nil, err
			}
			if result.Moved {
				record(ctx, recorder, actor, "reorder_category", entityCategory, id.String(), map[string]any{
					"direction":  string(req.Direction),
					"sort_order": result.SortOrder,
				})
			}
			return result, nil
		}),
	})
}
