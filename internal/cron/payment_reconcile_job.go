package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const defaultReconcileMinAge = 2 * time.Minute

type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Orders     staleOrderLister
	Reconciler orderReconciler
	MinAge     time.Duration
	BatchSize  int
}

// NewPaymentReconcileJob re-queries the gateway for pending orders that
// already carry a payment id. It covers webhooks that never arrived.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultReconcileMinAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		orders:     params.Orders,
		reconciler: params.Reconciler,
		minAge:     minAge,
		batch:      batch,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	orders     staleOrderLister
	reconciler orderReconciler
	minAge     time.Duration
	batch      int
}

func (j *paymentReconcileJob) Name() string { return "payment_reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	rows, err := j.orders.StalePending(ctx, j.minAge, true, j.batch)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	var (
		errs    error
		changed int
	)
	for _, order := range rows {
		result, err := j.reconciler.Reconcile(ctx, order.ID, orders.SourceCron)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if result.Changed {
			changed++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked": len(rows),
		"changed": changed,
	})
	j.logg.Info(logCtx, "payment reconcile complete")
	return errs
}
