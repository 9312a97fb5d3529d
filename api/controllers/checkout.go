package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/api/validators"
	"github.com/angelmondragon/enxoval-backend/internal/checkout"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type checkoutService interface {
	Prefetch(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	Submit(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	RedirectURL(ctx context.Context, orderID uuid.UUID) (string, error)
}

type orderStatusReader interface {
	Status(ctx context.Context, id uuid.UUID) (*orders.StatusView, error)
}

func CheckoutPrefetch(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return checkoutHandler(func(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
		return svc.Prefetch(ctx, req)
	}, logg)
}

func CheckoutSubmit(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return checkoutHandler(func(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
		return svc.Submit(ctx, req)
	}, logg)
}

func checkoutHandler(run func(context.Context, checkout.Request) (*checkout.Result, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body checkout.Request
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := run(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), result.OrderID.String())
		logg.Info(logg.WithField(ctx, "prefetched", result.Prefetched), "checkout ready")
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutRedirect serves the navigation page for a pending order. When no
// URL is available the error envelope is returned instead.
func CheckoutRedirect(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := svc.RedirectURL(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := checkout.RenderRedirectPage(target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteBody(w, http.StatusOK, "text/html; charset=utf-8", page)
	}
}

func OrderStatus(svc orderStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Status(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
