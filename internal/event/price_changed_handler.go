package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/catalogops/price-sync/internal/apperr"
)

// TopicProductPriceChanges carries price change events keyed by product code,
// as JSON objects {"productCode": string, "price": number}.
const TopicProductPriceChanges = "product-price-changes"

// PriceChangedEvent describes a price change for one product. It is transient:
// consumed per delivery, never persisted.
type PriceChangedEvent struct {
	ProductCode string  `json:"productCode"`
	Price       float64 `json:"price"`
}

// Outcome is the result of applying one price change event. Skipped (no
// matching product) and Rejected (malformed payload) are deliberately
// distinct so callers and tests can tell a no-op from a discard.
type Outcome uint8

const (
	OutcomeApplied Outcome = iota
	OutcomeSkipped
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// priceChangedWire decodes the price into a pointer so an absent price is a
// decode failure rather than a zero-value update.
type priceChangedWire struct {
	ProductCode string   `json:"productCode"`
	Price       *float64 `json:"price"`
}

// DecodePriceChangedEvent parses and structurally validates an event payload.
// Failures classify as apperr.MalformedEventErr and are permanent:
// redelivering the same bytes cannot succeed.
func DecodePriceChangedEvent(payload []byte) (PriceChangedEvent, error) {
	var wire priceChangedWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return PriceChangedEvent{}, apperr.MalformedEventErr.WrapParent(
			fmt.Errorf("unmarshal price changed event: %w", err))
	}

	if wire.ProductCode == "" {
		return PriceChangedEvent{}, apperr.MalformedEventErr.WrapParent(
			errors.New("empty product code"))
	}
	if wire.Price == nil {
		return PriceChangedEvent{}, apperr.MalformedEventErr.WrapParent(
			errors.New("missing price"))
	}

	return PriceChangedEvent{
		ProductCode: wire.ProductCode,
		Price:       *wire.Price,
	}, nil
}

// HandlePriceChangedEvent reconciles one event against the record store:
// look up the product by code and overwrite its price. A lookup miss is a
// successful no-op, so late events for deleted products never error. The
// overwrite is idempotent, which makes redelivery safe without deduplication.
// Store failures are returned to the caller for redelivery.
func (s *Service) HandlePriceChangedEvent(ctx context.Context, ev PriceChangedEvent) (Outcome, error) {
	product, err := s.productRepo.GetProductByCode(ctx, ev.ProductCode)
	if errors.Is(err, apperr.ProductNotFoundErr) {
		s.logger.InfoContext(ctx, "no product for price change, dropping event",
			slog.String("product_code", ev.ProductCode),
		)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("get product by code: %w", err)
	}

	product.Price = ev.Price
	if err := s.productRepo.SaveProduct(ctx, product); err != nil {
		return OutcomeSkipped, fmt.Errorf("save product: %w", err)
	}

	s.logger.InfoContext(ctx, "applied price change",
		slog.String("product_code", ev.ProductCode),
		slog.Float64("price", ev.Price),
	)

	return OutcomeApplied, nil
}
