package admin

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

const entityOrder = "order"

type orderFilters struct {
	Search        string              `json:"search"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	DateFrom      string              `json:"date_from"`
	DateTo        string              `json:"date_to"`
}

func (f orderFilters) toListFilters() (orders.ListFilters, error) {
	out := orders.ListFilters{
		Search:        strings.TrimSpace(f.Search),
		Status:        f.Status,
		PaymentMethod: f.PaymentMethod,
	}
	if out.Status != "" && !out.Status.IsValid() {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "status inválido")
	}
	if out.PaymentMethod != "" && !out.PaymentMethod.IsValid() {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "método de pagamento inválido")
	}
	from, err := parseDate(f.DateFrom, false)
	if err != nil {
		return out, err
	}
	to, err := parseDate(f.DateTo, true)
	if err != nil {
		return out, err
	}
	out.DateFrom, out.DateTo = from, to
	return out, nil
}

// parseDate accepts YYYY-MM-DD or RFC3339. A bare end date covers the whole
// day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "data inválida").WithDetails(map[string]any{"value": raw})
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

type orderListRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	orderFilters
}

type orderIDRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type orderExportRequest struct {
	Filters *orderFilters `json:"filters"`
	orderFilters
}

type reconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID, source string) (*orders.ReconcileResult, error)
}

// Orders builds the admin order resource.
func Orders(svc *orders.Service, reconcile reconciler, recorder audit.Recorder) *Resource {
	return newResource("orders", map[string]Handler{
		"list": typed(func(ctx context.Context, _ Actor, req orderListRequest) (any, error) {
			filters, err := req.toListFilters()
			if err != nil {
				return nil, err
			}
			return svc.List(ctx, filters, pagination.Params{Page: req.Page, Limit: req.Limit})
		}),
		"get": typed(func(ctx context.Context, _ Actor, req orderIDRequest) (any, error) {
			return svc.Get(ctx, req.OrderID)
		}),
		"reconcile": typed(func(ctx context.Context, actor Actor, req orderIDRequest) (any, error) {
			result, err := reconcile.Reconcile(ctx, req.OrderID, orders.SourceReconcile)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "reconcile_order", entityOrder, req.OrderID.String(), map[string]any{
				"old_status":      string(result.OldStatus),
				"new_status":      string(result.NewStatus),
				"provider_status": result.ProviderStatus,
			})
			return result, nil
		}),
		"export_csv": typed(func(ctx context.Context, actor Actor, req orderExportRequest) (any, error) {
			raw := req.orderFilters
			if req.Filters != nil {
				raw = *req.Filters
			}
			filters, err := raw.toListFilters()
			if err != nil {
				return nil, err
			}
			result, err := svc.ExportCSV(ctx, filters)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "export_orders", entityOrder, "", map[string]any{
				"count":    result.Count,
				"filename": result.Filename,
			})
			return result, nil
		}),
	})
}
