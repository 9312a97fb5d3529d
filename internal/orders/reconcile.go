package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
)

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// ReconcileResult is returned to the admin portal.
type ReconcileResult struct {
	Success        bool                 `json:"success"`
	OldStatus      enums.OrderStatus    `json:"old_status"`
	NewStatus      enums.OrderStatus    `json:"new_status"`
	ProviderStatus string               `json:"provider_status"`
	Changed        bool                 `json:"changed"`
	PaymentData    *mercadopago.Payment `json:"payment_data"`
}

// Reconciler re-queries the gateway for an order's payment and applies the
// same transition the webhook would.
type Reconciler struct {
	orders  *Service
	gateway paymentFetcher
}

func NewReconciler(orders *Service, gateway paymentFetcher) (*Reconciler, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &Reconciler{orders: orders, gateway: gateway}, nil
}

func (r *Reconciler) Reconcile(ctx context.Context, orderID uuid.UUID, source string) (*ReconcileResult, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ExternalPaymentID == nil || strings.TrimSpace(*order.ExternalPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Pedido sem ID de pagamento")
	}

	payment, err := r.gateway.GetPayment(ctx, *order.ExternalPaymentID)
	if err != nil {
		return nil, err
	}

	transition, err := r.orders.ApplyPaymentStatus(ctx, PaymentUpdate{
		OrderID:           order.ID,
		ExternalPaymentID: payment.ID,
		ProviderStatus:    payment.Status,
		Source:            source,
	})
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{
		Success:        true,
		OldStatus:      transition.OldStatus,
		NewStatus:      transition.NewStatus,
		ProviderStatus: payment.Status,
		Changed:        transition.Changed,
		PaymentData:    payment,
	}, nil
}
