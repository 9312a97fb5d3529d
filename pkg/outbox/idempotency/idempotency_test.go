package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]any
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "enx:idempotency:" + scope + ":" + id
}

func TestClaimOncePerConsumer(t *testing.T) {
	store := newMemoryStore()
	m, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	claimed, err := m.Claim(ctx, "thankyou-mailer", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = m.Claim(ctx, "thankyou-mailer", eventID)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.True(t, claimed, "claims are scoped per consumer")

	key := "enx:idempotency:consumer:thankyou-mailer:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.ttls[key])
	assert.True(t, strings.Contains(store.values[key].(string), "@"))
}

func TestReleaseAllowsRetry(t *testing.T) {
	m, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "analytics", eventID))

	claimed, err := m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimValidatesInput(t *testing.T) {
	store := newMemoryStore()
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = m.Claim(context.Background(), "", uuid.New())
	assert.ErrorIs(t, err, errNoConsumer)
	_, err = m.Claim(context.Background(), "analytics", uuid.Nil)
	assert.ErrorIs(t, err, errNoEventID)

	store.err = errors.New("redis down")
	_, err = m.Claim(context.Background(), "analytics", uuid.New())
	assert.Error(t, err)

	_, err = NewManager(store, -time.Second)
	assert.Error(t, err)
}
