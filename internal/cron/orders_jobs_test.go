package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type fakeOrders struct {
	rows        []models.Order
	age         time.Duration
	withPayment bool
	limit       int
}

func (f *fakeOrders) StalePending(_ context.Context, age time.Duration, withPayment bool, limit int) ([]models.Order, error) {
	f.age, f.withPayment, f.limit = age, withPayment, limit
	return f.rows, nil
}

type fakeReconciler struct {
	statuses map[uuid.UUID]enums.OrderStatus
	errs     map[uuid.UUID]error
	calls    []uuid.UUID
	sources  []string
}

func (f *fakeReconciler) Reconcile(_ context.Context, id uuid.UUID, source string) (*orders.ReconcileResult, error) {
	f.calls = append(f.calls, id)
	f.sources = append(f.sources, source)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	status, ok := f.statuses[id]
	if !ok {
		status = enums.OrderStatusPending
	}
	return &orders.ReconcileResult{
		Success:   true,
		OldStatus: enums.OrderStatusPending,
		NewStatus: status,
		Changed:   status != enums.OrderStatusPending,
	}, nil
}

type fakeFailer struct {
	failed  []uuid.UUID
	reasons []string
}

func (f *fakeFailer) MarkFailed(_ context.Context, id uuid.UUID, source, reason string) (*orders.TransitionResult, error) {
	f.failed = append(f.failed, id)
	f.reasons = append(f.reasons, reason)
	return &orders.TransitionResult{OrderID: id, OldStatus: enums.OrderStatusPending, NewStatus: enums.OrderStatusFailed, Changed: true}, nil
}

func orderWithPayment(paymentID string) models.Order {
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}
	if paymentID != "" {
		order.ExternalPaymentID = &paymentID
	}
	return order
}

func TestPaymentReconcileJobContinuesPastFailures(t *testing.T) {
	first, second := orderWithPayment("1"), orderWithPayment("2")
	lister := &fakeOrders{rows: []models.Order{first, second}}
	reconciler := &fakeReconciler{
		statuses: map[uuid.UUID]enums.OrderStatus{second.ID: enums.OrderStatusPaid},
		errs:     map[uuid.UUID]error{first.ID: errors.New("gateway down")},
	}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:     logger.Nop(),
		Orders:     lister,
		Reconciler: reconciler,
	})
	if err != nil {
		t.Fatalf("NewPaymentReconcileJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(reconciler.calls) != 2 {
		t.Fatalf("expected both orders reconciled, got %d", len(reconciler.calls))
	}
	if !lister.withPayment || lister.age != 2*time.Minute || lister.limit != defaultBatchSize {
		t.Fatalf("unexpected query: age=%s withPayment=%v limit=%d", lister.age, lister.withPayment, lister.limit)
	}
	for _, source := range reconciler.sources {
		if source != orders.SourceCron {
			t.Fatalf("expected cron source, got %q", source)
		}
	}
}

func TestPendingOrderExpiryJob(t *testing.T) {
	noPayment := orderWithPayment("")
	approvedLate := orderWithPayment("10")
	stillPending := orderWithPayment("11")
	lister := &fakeOrders{rows: []models.Order{noPayment, approvedLate, stillPending}}
	reconciler := &fakeReconciler{statuses: map[uuid.UUID]enums.OrderStatus{approvedLate.ID: enums.OrderStatusPaid}}
	failer := &fakeFailer{}

	job, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger:     logger.Nop(),
		Orders:     lister,
		Failer:     failer,
		Reconciler: reconciler,
	})
	if err != nil {
		t.Fatalf("NewPendingOrderExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if lister.withPayment || lister.age != 24*time.Hour {
		t.Fatalf("unexpected query: age=%s withPayment=%v", lister.age, lister.withPayment)
	}
	if len(reconciler.calls) != 2 {
		t.Fatalf("expected only orders with a payment id reconciled, got %d", len(reconciler.calls))
	}
	if len(failer.failed) != 2 || failer.failed[0] != noPayment.ID || failer.failed[1] != stillPending.ID {
		t.Fatalf("unexpected failed orders: %v", failer.failed)
	}
	for _, reason := range failer.reasons {
		if reason != ExpiredReason {
			t.Fatalf("expected reason %q, got %q", ExpiredReason, reason)
		}
	}
}

func TestPendingOrderExpiryJobKeepsOrderWhenGatewayUnreachable(t *testing.T) {
	order := orderWithPayment("12")
	reconciler := &fakeReconciler{errs: map[uuid.UUID]error{order.ID: errors.New("timeout")}}
	failer := &fakeFailer{}
	job, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger:     logger.Nop(),
		Orders:     &fakeOrders{rows: []models.Order{order}},
		Failer:     failer,
		Reconciler: reconciler,
	})
	if err != nil {
		t.Fatalf("NewPendingOrderExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(failer.failed) != 0 {
		t.Fatalf("order must stay pending when the gateway cannot be reached")
	}
}
