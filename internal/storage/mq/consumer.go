package mq

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/catalogops/price-sync/internal/config"
)

// HandlerFunc processes a single message. Returning nil or a PermanentError
// commits the record's offset; any other error leaves the offset uncommitted
// so the record is redelivered (at-least-once).
type HandlerFunc func(ctx context.Context, topic string, key, payload []byte) error

type CleanupFunc func()

type Consumer interface {
	RegisterHandler(topic string, handler HandlerFunc) error
	Run(ctx context.Context) (CleanupFunc, error)
}

var _ Consumer = (*KafkaConsumer)(nil)

// recordMarker is the subset of the kgo client used to mark records for
// commit; split out so record dispatch can be tested without a broker.
type recordMarker interface {
	MarkCommitRecords(recs ...*kgo.Record)
}

type KafkaConsumer struct {
	cl       *kgo.Client
	marker   recordMarker
	handlers map[string]HandlerFunc
	log      *slog.Logger
}

// NewKafkaConsumer creates a consumer group client. A group without committed
// offsets starts from the earliest retained message; commits are mark-based
// so a failed handler keeps its record uncommitted.
func NewKafkaConsumer(ctx context.Context, cfg config.Kafka, logger *slog.Logger) (*KafkaConsumer, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Addresses...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitMarks(),
		kgo.AllowAutoTopicCreation(),
		kgo.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := cl.Ping(pingCtx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}

	return &KafkaConsumer{
		cl:       cl,
		marker:   cl,
		handlers: make(map[string]HandlerFunc),
		log:      logger,
	}, nil
}

func (c *KafkaConsumer) RegisterHandler(topic string, handler HandlerFunc) error {
	if _, exists := c.handlers[topic]; exists {
		return fmt.Errorf("handler for topic %s already registered", topic)
	}

	c.cl.AddConsumeTopics(topic)
	c.handlers[topic] = handler
	return nil
}

func (c *KafkaConsumer) Run(ctx context.Context) (CleanupFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	doneChan := make(chan struct{})

	go func() {
		defer close(doneChan)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				fetches := c.cl.PollFetches(ctx)
				if errs := fetches.Errors(); len(errs) > 0 {
					if errs[0].Err == context.Canceled {
						// shutdown in progress
						continue
					}

					c.log.ErrorContext(ctx, "error fetching messages",
						slog.Any("error", errs),
					)
					continue
				}

				rewinds := c.processFetches(ctx, fetches)

				if err := c.cl.CommitMarkedOffsets(ctx); err != nil {
					c.log.ErrorContext(ctx, "error committing marked offsets",
						slog.Any("error", err),
					)
				}

				if len(rewinds) > 0 {
					// seek back so failed records are refetched; buffered
					// records past them are dropped by the seek
					c.cl.SetOffsets(rewinds)
				}
			}
		}
	}()

	cleanup := func() {
		cancel()
		c.cl.Close()
		<-doneChan
	}

	return cleanup, nil
}

// processFetches dispatches every fetched record. The first retryable failure
// of a partition stops handling for the rest of that partition: later records
// must not be marked, or the commit would move past the failed offset and the
// record would never be redelivered. The returned map holds, per partition,
// the offset to seek back to.
func (c *KafkaConsumer) processFetches(ctx context.Context, fetches kgo.Fetches) map[string]map[int32]kgo.EpochOffset {
	var rewinds map[string]map[int32]kgo.EpochOffset

	fetches.EachRecord(func(rec *kgo.Record) {
		if _, failed := rewinds[rec.Topic][rec.Partition]; failed {
			return
		}

		if err := c.handleRecord(ctx, rec); err != nil {
			if rewinds == nil {
				rewinds = map[string]map[int32]kgo.EpochOffset{}
			}
			if rewinds[rec.Topic] == nil {
				rewinds[rec.Topic] = map[int32]kgo.EpochOffset{}
			}
			rewinds[rec.Topic][rec.Partition] = kgo.EpochOffset{
				Epoch:  rec.LeaderEpoch,
				Offset: rec.Offset,
			}
		}
	})

	return rewinds
}

// handleRecord dispatches one record. A nil return means the record's offset
// was marked for commit; an error means the record must be refetched.
func (c *KafkaConsumer) handleRecord(ctx context.Context, rec *kgo.Record) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(fmt.Errorf("panic: %v", rvr))
			span.SetStatus(codes.Error, "panic in handler")

			c.log.ErrorContext(ctx, "panic in message handler",
				slog.String("topic", rec.Topic),
				slog.Any("recover", rvr),
				slog.String("stack", string(debug.Stack())),
			)

			// a handler that panics on these bytes will panic on redelivery
			// too; discard like a permanent error
			c.marker.MarkCommitRecords(rec)
			err = nil
		}
	}()

	fn, exists := c.handlers[rec.Topic]
	if !exists {
		c.log.WarnContext(ctx, "no handler registered for topic",
			slog.String("topic", rec.Topic),
		)
		c.marker.MarkCommitRecords(rec)
		return nil
	}

	switch handleErr := fn(ctx, rec.Topic, rec.Key, rec.Value); {
	case handleErr == nil:
		c.marker.MarkCommitRecords(rec)
		return nil
	case IsPermanent(handleErr):
		// not retryable: discard per dead-letter policy
		c.log.WarnContext(ctx, "discarding message after permanent handler error",
			slog.String("topic", rec.Topic),
			slog.String("key", string(rec.Key)),
			slog.Any("error", handleErr),
		)
		c.marker.MarkCommitRecords(rec)
		return nil
	default:
		// surface so the offset stays uncommitted and the record is refetched
		c.log.ErrorContext(ctx, "error handling message",
			slog.String("topic", rec.Topic),
			slog.String("key", string(rec.Key)),
			slog.Any("error", handleErr),
		)
		return handleErr
	}
}

func (c *KafkaConsumer) Close() {
	c.cl.Close()
}
