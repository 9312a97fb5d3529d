package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 24 * time.Hour
	// ExpiredReason is stored as provider_status on expired orders.
	ExpiredReason = "expired"
)

type PendingOrderExpiryJobParams struct {
	Logger     *logger.Logger
	Orders     staleOrderLister
	Failer     orderFailer
	Reconciler orderReconciler
	TTL        time.Duration
	BatchSize  int
}

// NewPendingOrderExpiryJob fails pending orders older than the TTL. Orders
// that reached the gateway are reconciled first so a late approval still
// wins.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Failer == nil {
		return nil, fmt.Errorf("order failer required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &pendingOrderExpiryJob{
		logg:       params.Logger,
		orders:     params.Orders,
		failer:     params.Failer,
		reconciler: params.Reconciler,
		ttl:        ttl,
		batch:      batch,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg       *logger.Logger
	orders     staleOrderLister
	failer     orderFailer
	reconciler orderReconciler
	ttl        time.Duration
	batch      int
}

func (j *pendingOrderExpiryJob) Name() string { return "pending_order_expiry" }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	rows, err := j.orders.StalePending(ctx, j.ttl, false, j.batch)
	if err != nil {
		return fmt.Errorf("list expired orders: %w", err)
	}

	var (
		errs    error
		expired int
	)
	for _, order := range rows {
		done, err := j.expire(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if done {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked": len(rows),
		"expired": expired,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return errs
}

func (j *pendingOrderExpiryJob) expire(ctx context.Context, order models.Order) (bool, error) {
	if order.ExternalPaymentID != nil && strings.TrimSpace(*order.ExternalPaymentID) != "" {
		result, err := j.reconciler.Reconcile(ctx, order.ID, orders.SourceCron)
		if err != nil {
			return false, err
		}
		if result.NewStatus != enums.OrderStatusPending {
			return false, nil
		}
	}
	result, err := j.failer.MarkFailed(ctx, order.ID, orders.SourceCron, ExpiredReason)
	if err != nil {
		return false, err
	}
	return result.Changed, nil
}
