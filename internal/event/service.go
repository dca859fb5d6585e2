package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/catalogops/price-sync/internal/repository"
	"github.com/catalogops/price-sync/internal/storage/mq"
)

// Service consumes price change events and applies them to the record store.
// It holds no state between invocations; every event is handled on its own.
type Service struct {
	logger      *slog.Logger
	mqConsumer  mq.Consumer
	productRepo repository.ProductRepository
}

// New creates a new event service.
func New(
	logger *slog.Logger,
	mqConsumer mq.Consumer,
	productRepo repository.ProductRepository,
) *Service {
	return &Service{
		logger:      logger,
		mqConsumer:  mqConsumer,
		productRepo: productRepo,
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	if err := s.mqConsumer.RegisterHandler(
		TopicProductPriceChanges,
		s.consumePriceChanged,
	); err != nil {
		return nil, fmt.Errorf("register price changed event handler: %w", err)
	}

	mqCleanup, err := s.mqConsumer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mq consumer: %w", err)
	}

	cleanup := func() {
		mqCleanup()
	}

	return cleanup, nil
}

// consumePriceChanged owns the decode-validate-apply sequence for one
// delivery. Decode failures are permanent (discarded per the channel's
// dead-letter policy); store failures propagate so the record is redelivered.
func (s *Service) consumePriceChanged(ctx context.Context, topic string, key, payload []byte) error {
	ev, err := DecodePriceChangedEvent(payload)
	if err != nil {
		return mq.Permanent(fmt.Errorf("decode price changed event: %w", err))
	}

	outcome, err := s.HandlePriceChangedEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("handle price changed event: %w", err)
	}

	s.logger.DebugContext(ctx, "price changed event consumed",
		slog.String("topic", topic),
		slog.String("key", string(key)),
		slog.String("outcome", outcome.String()),
	)

	return nil
}
