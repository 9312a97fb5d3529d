// Package idempotency lets event consumers handle each envelope once per
// consumer name, even when Pub/Sub redelivers it.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/instance"
	"github.com/angelmondragon/enxoval-backend/pkg/redis"
)

const scopePrefix = "consumer:"

var (
	errNoConsumer = errors.New("consumer name is required")
	errNoEventID  = errors.New("event id is required")
)

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

var _ claimStore = (*redis.Client)(nil)

// Manager records claims as Redis keys that expire after ttl; a zero ttl
// keeps them forever.
type Manager struct {
	store claimStore
	ttl   time.Duration
	owner string
}

func NewManager(store claimStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, owner: instance.GetID()}, nil
}

// Claim returns true when the caller now owns (consumer, eventID) and should
// do the work, false when an earlier delivery already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	value := m.owner + "@" + time.Now().UTC().Format(time.RFC3339)
	return m.store.SetNX(ctx, key, value, m.ttl)
}

// Release drops a claim after a failed attempt so the redelivery can retry.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errNoConsumer
	}
	if eventID == uuid.Nil {
		return "", errNoEventID
	}
	return m.store.IdempotencyKey(scopePrefix+consumer, eventID.String()), nil
}
