package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/api/validators"
	"github.com/angelmondragon/enxoval-backend/internal/cart"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type cartService interface {
	Get(ctx context.Context, cartID string) (*cart.View, error)
	Apply(ctx context.Context, cartID string, req cart.ActionRequest) (*cart.View, error)
}

func CartFetch(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), chi.URLParam(r, "cartId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAction applies one reducer action and returns the persisted cart.
func CartAction(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body cart.ActionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Apply(r.Context(), chi.URLParam(r, "cartId"), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
