package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, uuid.NewString()),
		AttemptCount:  attempts,
	}
}

func paidResolution() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "enxoval-order-events", AggregateType: enums.AggregateOrder},
		Envelope:   outbox.PayloadEnvelope{EventID: uuid.NewString(), OccurredAt: time.Now()},
		Payload:    &payloads.OrderPaidEvent{},
	}
}

func TestDrainBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderEvent(t, enums.EventOrderPaid, 0),
		orderEvent(t, enums.EventOrderPaid, 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: paidResolution()}, &fakeDLQRepo{}, nil)

	stats, err := relay.drainBatch(context.Background())
	if err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if stats.fetched != 2 || stats.published != 1 || stats.retried != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
}

func TestDrainBatchSetsRoutingAttributes(t *testing.T) {
	event := orderEvent(t, enums.EventOrderPaid, 0)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	relay := newTestRelay(t, &fakeRepo{events: []models.OutboxEvent{event}}, pub, &fakeRegistry{resolved: paidResolution()}, &fakeDLQRepo{}, nil)

	if _, err := relay.drainBatch(context.Background()); err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderPaid) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["event_id"] != event.ID.String() {
		t.Fatalf("unexpected event_id %q", attrs["event_id"])
	}
	if !bytes.Equal(pub.sent[0].Data, event.Payload) {
		t.Fatalf("payload must be forwarded unchanged")
	}
}

func TestPublisherIsCreatedOncePerTopic(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderEvent(t, enums.EventOrderCreated, 0),
		orderEvent(t, enums.EventOrderPaid, 0),
	}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{}}}
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: paidResolution()}, &fakeDLQRepo{}, nil)
	created := 0
	relay.newPublisher = func(string) publisher {
		created++
		return pub
	}

	if _, err := relay.drainBatch(context.Background()); err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected publisher created once, got %d", created)
	}
}

func TestDrainBatchDeadLettersUnresolvableEvent(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	dlq := &fakeDLQRepo{}
	relay := newTestRelay(t, &fakeRepo{events: []models.OutboxEvent{event}}, &fakePublisher{},
		&fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}, dlq, nil)

	stats, err := relay.drainBatch(context.Background())
	if err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if stats.deadLettered != 1 {
		t.Fatalf("expected dead-lettered event, got %+v", stats)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestDrainBatchDeadLettersOnMaxAttempts(t *testing.T) {
	event := orderEvent(t, enums.EventOrderFailed, 1)
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	relay := newTestRelay(t, &fakeRepo{events: []models.OutboxEvent{event}}, pub, &fakeRegistry{resolved: paidResolution()}, dlq,
		&config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})

	if _, err := relay.drainBatch(context.Background()); err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", dlq.entries[0].ErrorReason)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("expected doubled base, got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestRelay(t *testing.T, repo outboxRepository, pub publisher, resolver eventResolver, dlq dlqRepository, override *config.OutboxConfig) *Relay {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	relay, err := NewRelay(RelayParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.Nop(),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		DLQ:              dlq,
		Registry:         resolver,
		PublisherFactory: func(string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct relay: %v", err)
	}
	return relay
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
