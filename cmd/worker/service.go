package main

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/enxoval-backend/internal/consumers"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type subscriptionSource interface {
	pinger
	OrdersSubscription() *pubsub.Subscriber
}

type eventDispatcher interface {
	Run(ctx context.Context, subscription *pubsub.Subscriber) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	PubSub       subscriptionSource
	Dispatcher   eventDispatcher
	Dependencies map[string]pinger
}

// Service pulls order events and hands them to the consumer dispatcher.
type Service struct {
	logg       *logger.Logger
	pubsub     subscriptionSource
	dispatcher eventDispatcher
	deps       map[string]pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	return &Service{
		logg:       params.Logger,
		pubsub:     params.PubSub,
		dispatcher: params.Dispatcher,
		deps:       params.Dependencies,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	for name, dep := range s.deps {
		if dep == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or the subscription stops.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	subscription := s.pubsub.OrdersSubscription()
	if subscription == nil {
		return errors.New("orders subscription not configured")
	}
	err := s.dispatcher.Run(ctx, subscription)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "order event subscription stopped unexpectedly", err)
		return err
	}
	return ctx.Err()
}

var _ eventDispatcher = (*consumers.Dispatcher)(nil)
