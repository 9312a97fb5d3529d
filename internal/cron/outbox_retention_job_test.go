package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type fakePruner struct {
	remaining int64
	cutoffs   []time.Time
	err       error
}

func (f *fakePruner) take(cutoff time.Time, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	n := min(f.remaining, int64(limit))
	f.remaining -= n
	return n, nil
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	return f.take(cutoff, limit)
}

func (f *fakePruner) DeleteBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	return f.take(cutoff, limit)
}

func newRetentionJob(t *testing.T, outbox, dead *fakePruner) *outboxRetentionJob {
	t.Helper()
	params := OutboxRetentionJobParams{Logger: logger.Nop(), Outbox: outbox, BatchSize: 10}
	if dead != nil {
		params.DeadLetters = dead
	}
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	outbox := &fakePruner{remaining: 25}
	dead := &fakePruner{remaining: 3}
	job := newRetentionJob(t, outbox, dead)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	assert.Zero(t, outbox.remaining)
	assert.Len(t, outbox.cutoffs, 3)
	assert.Equal(t, now.Add(-defaultOutboxRetention), outbox.cutoffs[0])
	assert.Zero(t, dead.remaining)
	assert.Len(t, dead.cutoffs, 1)
}

func TestOutboxRetentionStopsAtBatchCap(t *testing.T) {
	outbox := &fakePruner{remaining: 10 * (maxPruneBatches + 5)}
	job := newRetentionJob(t, outbox, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, outbox.cutoffs, maxPruneBatches)
	assert.EqualValues(t, 50, outbox.remaining)
}

func TestOutboxRetentionReportsBothFailures(t *testing.T) {
	job := newRetentionJob(t, &fakePruner{err: errors.New("outbox down")}, &fakePruner{err: errors.New("dlq down")})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox down")
	assert.Contains(t, err.Error(), "dlq down")
}
