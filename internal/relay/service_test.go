package relay_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/price-sync/internal/config"
	"github.com/catalogops/price-sync/internal/relay"
	"github.com/catalogops/price-sync/internal/repository"
	"github.com/catalogops/price-sync/internal/storage/db"
	"github.com/catalogops/price-sync/internal/storage/mq"
	"github.com/catalogops/price-sync/pkg/ptr"
)

type passthroughDB struct{}

var _ db.DB = passthroughDB{}

func (passthroughDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (passthroughDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (passthroughDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (passthroughDB) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (d passthroughDB) WithTx(_ context.Context, txFunc func(db.DB) error) error {
	return txFunc(d)
}

type stubOutboxRepo struct {
	mu      sync.Mutex
	pending []repository.ListUnprocessedOutboxMsgsResult
	updated []repository.BulkUpdateOutboxMsgsItem
}

var _ repository.OutboxMsgRepository = (*stubOutboxRepo)(nil)

func (s *stubOutboxRepo) WithDB(_ db.DB) repository.OutboxMsgRepository { return s }

func (s *stubOutboxRepo) CreateOutboxMsg(_ context.Context, _ repository.CreateOutboxMsgParams) error {
	return nil
}

func (s *stubOutboxRepo) ListUnprocessedOutboxMsgs(_ context.Context, _ repository.ListUnprocessedOutboxMsgsParams) ([]repository.ListUnprocessedOutboxMsgsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending, nil
}

func (s *stubOutboxRepo) BulkUpdateOutboxMsgs(_ context.Context, params repository.BulkUpdateOutboxMsgsParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, params.Items...)
	return nil
}

func (s *stubOutboxRepo) updatedItems() []repository.BulkUpdateOutboxMsgsItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.BulkUpdateOutboxMsgsItem(nil), s.updated...)
}

type capturingProducer struct {
	mu       sync.Mutex
	produced []mq.ProduceMsg
	err      error

	// firstDelay stalls the first Produce call, simulating a broker ack that
	// arrives after later calls have completed
	firstDelay time.Duration
	first      sync.Once
}

var _ mq.Producer = (*capturingProducer)(nil)

func (p *capturingProducer) Produce(_ context.Context, msg mq.ProduceMsg) error {
	if p.firstDelay > 0 {
		p.first.Do(func() { time.Sleep(p.firstDelay) })
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.produced = append(p.produced, msg)
	return nil
}

func (p *capturingProducer) producedMsgs() []mq.ProduceMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mq.ProduceMsg(nil), p.produced...)
}

func runRelayCycle(t *testing.T, outboxRepo *stubOutboxRepo, producer *capturingProducer) {
	t.Helper()

	svc := relay.NewService(
		config.Relay{BatchSize: 10, Interval: 5 * time.Millisecond},
		slog.New(slog.DiscardHandler),
		passthroughDB{},
		outboxRepo,
		producer,
	)

	cleanup := svc.Run(t.Context())
	defer cleanup()

	require.Eventually(t, func() bool {
		return len(outboxRepo.updatedItems()) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayPublishesPendingMsgs(t *testing.T) {
	msgID := uuid.New()
	outboxRepo := &stubOutboxRepo{
		pending: []repository.ListUnprocessedOutboxMsgsResult{{
			ID:           msgID,
			Topic:        "product-price-changes",
			Headers:      map[string]string{"X-Correlation-ID": "abc"},
			Payload:      []byte(`{"productCode":"P100","price":14.50}`),
			PartitionKey: ptr.New("P100"),
		}},
	}
	producer := &capturingProducer{}

	runRelayCycle(t, outboxRepo, producer)

	msgs := producer.producedMsgs()
	require.Len(t, msgs, 1)
	assert.Equal(t, "product-price-changes", msgs[0].Topic)
	require.NotNil(t, msgs[0].PartitionKey)
	assert.Equal(t, "P100", *msgs[0].PartitionKey)

	items := outboxRepo.updatedItems()
	require.Len(t, items, 1)
	assert.Equal(t, msgID, items[0].ID)
	assert.Nil(t, items[0].Error)
}

func TestRelayPreservesPerKeyOrder(t *testing.T) {
	outboxRepo := &stubOutboxRepo{
		pending: []repository.ListUnprocessedOutboxMsgsResult{
			{
				ID:           uuid.New(),
				Topic:        "product-price-changes",
				Payload:      []byte(`{"productCode":"P100","price":14.50}`),
				PartitionKey: ptr.New("P100"),
			},
			{
				ID:           uuid.New(),
				Topic:        "product-price-changes",
				Payload:      []byte(`{"productCode":"P100","price":20.00}`),
				PartitionKey: ptr.New("P100"),
			},
		},
	}
	producer := &capturingProducer{firstDelay: 150 * time.Millisecond}

	runRelayCycle(t, outboxRepo, producer)

	// a slow broker ack on the older message must not let the newer price
	// reach the broker first
	msgs := producer.producedMsgs()
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"productCode":"P100","price":14.50}`, string(msgs[0].Payload))
	assert.Equal(t, `{"productCode":"P100","price":20.00}`, string(msgs[1].Payload))
}

func TestRelayRecordsProduceFailure(t *testing.T) {
	outboxRepo := &stubOutboxRepo{
		pending: []repository.ListUnprocessedOutboxMsgsResult{{
			ID:      uuid.New(),
			Topic:   "product-price-changes",
			Payload: []byte(`{}`),
		}},
	}
	producer := &capturingProducer{err: errors.New("broker unreachable")}

	runRelayCycle(t, outboxRepo, producer)

	items := outboxRepo.updatedItems()
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Error)
	assert.Contains(t, *items[0].Error, "broker unreachable")
}
