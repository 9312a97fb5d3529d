// Package consumers fans order events received from Pub/Sub out to the
// worker's consumers.
package consumers

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/registry"
)

// Consumer handles one decoded envelope. Each consumer guards itself with
// the idempotency manager under its own name.
type Consumer interface {
	Name() string
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, body []byte) (*registry.ResolvedEvent, error)
}

// Message is the part of a Pub/Sub message the dispatcher reads.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

type Dispatcher struct {
	registry  decoder
	consumers []Consumer
	logg      *logger.Logger
}

func NewDispatcher(reg decoder, logg *logger.Logger, consumers ...Consumer) (*Dispatcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(consumers) == 0 {
		return nil, fmt.Errorf("at least one consumer required")
	}
	return &Dispatcher{registry: reg, consumers: consumers, logg: logg}, nil
}

// Run receives from subscription until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return fmt.Errorf("subscription required")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if d.Handle(ctx, Message{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes}) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Handle reports whether the message should be acked: on success or on a
// non-retryable error. Any retryable consumer failure nacks the message and
// consumers that already succeeded skip it on redelivery.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	resolved, err := d.registry.Decode(eventType, msg.Data)
	if err != nil {
		d.logg.Error(logCtx, "failed to decode event", err)
		return isNonRetryable(err)
	}

	ack := true
	for _, consumer := range d.consumers {
		if err := consumer.Process(ctx, eventType, resolved.Envelope); err != nil {
			consumerCtx := d.logg.WithField(logCtx, "consumer", consumer.Name())
			if isNonRetryable(err) {
				d.logg.Error(consumerCtx, "consumer dropped event", err)
				continue
			}
			d.logg.Error(consumerCtx, "consumer failed", err)
			ack = false
		}
	}
	return ack
}

func isNonRetryable(err error) bool {
	var target registry.NonRetryableError
	return errors.As(err, &target)
}
