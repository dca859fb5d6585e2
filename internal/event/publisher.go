package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/catalogops/price-sync/internal/storage/mq"
	"github.com/catalogops/price-sync/pkg/outbox"
	"github.com/catalogops/price-sync/pkg/ptr"
)

// Publisher submits price change events keyed by product code, so all events
// for one product land on the same partition in submission order. Production
// publishing goes through the outbox relay; this direct publisher exists to
// drive the consumer in tests and tooling, and preserves the same keying
// contract.
type Publisher struct {
	mqProducer mq.Producer
}

func NewPublisher(mqProducer mq.Producer) *Publisher {
	return &Publisher{mqProducer: mqProducer}
}

func (p *Publisher) PublishPriceChanged(ctx context.Context, ev PriceChangedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal price changed event: %w", err)
	}

	msg := mq.ProduceMsg{
		Topic:        TopicProductPriceChanges,
		Headers:      outbox.BuildHeaders(ctx),
		Payload:      payload,
		PartitionKey: ptr.New(ev.ProductCode),
	}
	if err := p.mqProducer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("produce price changed event: %w", err)
	}

	return nil
}
