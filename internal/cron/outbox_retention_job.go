package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultPruneBatch      = 500
	// maxPruneBatches bounds one run; leftovers go to the next tick.
	maxPruneBatches = 20
)

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type deadLetterPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	Outbox      publishedPruner
	DeadLetters deadLetterPruner
	Retention   time.Duration
	BatchSize   int
}

// NewOutboxRetentionJob prunes published outbox rows and dead letters older
// than the retention window. Unpublished rows are kept regardless of age.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPruneBatch
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		outbox:      params.Outbox,
		deadLetters: params.DeadLetters,
		retention:   retention,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	outbox      publishedPruner
	deadLetters deadLetterPruner
	retention   time.Duration
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox_retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	published, errPublished := j.prune(ctx, func(ctx context.Context) (int64, error) {
		return j.outbox.DeletePublishedBefore(ctx, cutoff, j.batch)
	})
	var deadLetters int64
	var errDead error
	if j.deadLetters != nil {
		deadLetters, errDead = j.prune(ctx, func(ctx context.Context) (int64, error) {
			return j.deadLetters.DeleteBefore(ctx, cutoff, j.batch)
		})
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"published_deleted":   published,
		"dead_letter_deleted": deadLetters,
	}), "outbox retention cleanup complete")

	if err := multierr.Combine(errPublished, errDead); err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	return nil
}

// prune repeats step while full batches come back.
func (j *outboxRetentionJob) prune(ctx context.Context, step func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for i := 0; i < maxPruneBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := step(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(j.batch) {
			break
		}
	}
	return total, nil
}
