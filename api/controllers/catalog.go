package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/api/validators"
	"github.com/angelmondragon/enxoval-backend/internal/categories"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/internal/progress"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type catalogReader interface {
	ListActive(ctx context.Context, categoryID *uuid.UUID) ([]product.ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*product.ProductDTO, error)
}

type categoryLister interface {
	List(ctx context.Context) ([]categories.CategoryDTO, error)
}

type progressReader interface {
	Get(ctx context.Context) (*progress.Progress, error)
}

// PublicProducts lists active products, optionally filtered by category_id.
func PublicProducts(svc catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := validators.ParseQueryUUID(r, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListActive(r.Context(), categoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}

func PublicProduct(svc catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func PublicCategories(svc categoryLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": items})
	}
}

func PublicProgress(svc progressReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}
