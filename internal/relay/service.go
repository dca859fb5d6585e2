package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/catalogops/price-sync/internal/config"
	"github.com/catalogops/price-sync/internal/repository"
	"github.com/catalogops/price-sync/internal/storage/db"
	"github.com/catalogops/price-sync/internal/storage/mq"
	"github.com/catalogops/price-sync/pkg/ptr"
)

// Service polls the outbox and publishes pending messages to the broker.
// Messages sharing a partition key are produced one after another so their
// broker order matches their submission order.
type Service struct {
	cfg           config.Relay
	logger        *slog.Logger
	db            db.DB
	outboxMsgRepo repository.OutboxMsgRepository
	mqProducer    mq.Producer

	stopChan chan struct{}
}

func NewService(
	cfg config.Relay,
	logger *slog.Logger,
	db db.DB,
	outboxMsgRepo repository.OutboxMsgRepository,
	mqProducer mq.Producer,
) *Service {
	return &Service{
		cfg:           cfg,
		logger:        logger.With(slog.String("service", "relay")),
		db:            db,
		outboxMsgRepo: outboxMsgRepo,
		mqProducer:    mqProducer,
		stopChan:      make(chan struct{}),
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		s.run(ctx)
	}()

	return func() {
		close(s.stopChan)
		select {
		case <-stoppedChan:
		case <-time.After(5 * time.Second):
			cancel()
		}
	}
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-time.After(s.cfg.Interval):
			if err := s.relayBatch(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error relaying outbox msgs", slog.Any("error", err))
			}
		}
	}
}

// relayBatch publishes one batch of unprocessed outbox messages inside a
// transaction, then marks each as processed or errored.
func (s *Service) relayBatch(ctx context.Context) error {
	return s.db.WithTx(ctx, func(db db.DB) error {
		outboxMsgs, err := s.outboxMsgRepo.
			WithDB(db).
			ListUnprocessedOutboxMsgs(ctx, repository.ListUnprocessedOutboxMsgsParams{
				//nolint:gosec
				BatchSize: int32(s.cfg.BatchSize),
			})
		if err != nil {
			return fmt.Errorf("list unprocessed outbox msgs: %w", err)
		}

		if len(outboxMsgs) == 0 {
			return nil
		}

		s.logger.InfoContext(ctx, "relaying outbox msgs", slog.Int("count", len(outboxMsgs)))

		items := make([]repository.BulkUpdateOutboxMsgsItem, 0, len(outboxMsgs))
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)

		// one goroutine per partition key: keying alone only fixes the
		// partition, producing concurrently could still invert the order two
		// same-key messages reach the broker in
		for _, group := range groupByPartitionKey(outboxMsgs) {
			msgs := group
			wg.Go(func() {
				for _, msg := range msgs {
					item := s.produceOutboxMsg(ctx, msg)

					mu.Lock()
					items = append(items, item)
					mu.Unlock()
				}
			})
		}

		wg.Wait()

		if err := s.outboxMsgRepo.
			WithDB(db).
			BulkUpdateOutboxMsgs(ctx, repository.BulkUpdateOutboxMsgsParams{
				Items: items,
			}); err != nil {
			return fmt.Errorf("bulk update outbox msgs: %w", err)
		}

		return nil
	})
}

func (s *Service) produceOutboxMsg(ctx context.Context, msg repository.ListUnprocessedOutboxMsgsResult) repository.BulkUpdateOutboxMsgsItem {
	item := repository.BulkUpdateOutboxMsgsItem{ID: msg.ID}

	if err := s.mqProducer.Produce(ctx, mq.ProduceMsg{
		Topic:        msg.Topic,
		Headers:      msg.Headers,
		Payload:      msg.Payload,
		PartitionKey: msg.PartitionKey,
	}); err != nil {
		s.logger.ErrorContext(ctx,
			"error producing message",
			slog.String("outbox_msg_id", msg.ID.String()),
			slog.String("topic", msg.Topic),
			slog.Any("error", err),
		)
		item.Error = ptr.New(err.Error())
	}

	return item
}

// groupByPartitionKey splits a batch into groups that must be produced
// sequentially. The batch is ordered by creation time, so each keyed group
// keeps that order; unkeyed messages carry no ordering contract and become
// groups of one.
func groupByPartitionKey(msgs []repository.ListUnprocessedOutboxMsgsResult) [][]repository.ListUnprocessedOutboxMsgsResult {
	var groups [][]repository.ListUnprocessedOutboxMsgsResult
	keyed := make(map[string]int)

	for _, msg := range msgs {
		if msg.PartitionKey == nil {
			groups = append(groups, []repository.ListUnprocessedOutboxMsgsResult{msg})
			continue
		}

		idx, ok := keyed[*msg.PartitionKey]
		if !ok {
			idx = len(groups)
			keyed[*msg.PartitionKey] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], msg)
	}

	return groups
}
