package cron

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
)

type staleOrderLister interface {
	StalePending(ctx context.Context, age time.Duration, withPayment bool, limit int) ([]models.Order, error)
}

type orderReconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID, source string) (*orders.ReconcileResult, error)
}

type orderFailer interface {
	MarkFailed(ctx context.Context, orderID uuid.UUID, source, reason string) (*orders.TransitionResult, error)
}

const defaultBatchSize = 50
