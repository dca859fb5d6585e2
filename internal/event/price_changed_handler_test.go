package event_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/price-sync/internal/apperr"
	"github.com/catalogops/price-sync/internal/event"
	"github.com/catalogops/price-sync/internal/model"
	"github.com/catalogops/price-sync/internal/repository"
	"github.com/catalogops/price-sync/internal/storage/db"
	"github.com/catalogops/price-sync/internal/storage/mq"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]model.Product
	getErr   error
	saveErr  error
	saves    int
}

var _ repository.ProductRepository = (*fakeProductRepo)(nil)

func newFakeProductRepo(seed ...model.Product) *fakeProductRepo {
	products := make(map[string]model.Product, len(seed))
	for _, p := range seed {
		products[p.Code] = p
	}
	return &fakeProductRepo{products: products}
}

func (f *fakeProductRepo) WithDB(_ db.DB) repository.ProductRepository { return f }

func (f *fakeProductRepo) CreateProduct(_ context.Context, product model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.products[product.Code]; exists {
		return apperr.ProductCodeExistsErr
	}
	f.products[product.Code] = product
	return nil
}

func (f *fakeProductRepo) GetProductByCode(_ context.Context, code string) (model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.Product{}, f.getErr
	}
	product, exists := f.products[code]
	if !exists {
		return model.Product{}, apperr.ProductNotFoundErr
	}
	return product, nil
}

func (f *fakeProductRepo) SaveProduct(_ context.Context, product model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.products[product.Code] = product
	return nil
}

func (f *fakeProductRepo) UpdateProductPrice(ctx context.Context, code string, price float64) error {
	product, err := f.GetProductByCode(ctx, code)
	if err != nil {
		return err
	}
	product.Price = price
	return f.SaveProduct(ctx, product)
}

func (f *fakeProductRepo) ListAllProducts(_ context.Context) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := make([]model.Product, 0, len(f.products))
	for _, p := range f.products {
		products = append(products, p)
	}
	return products, nil
}

func (f *fakeProductRepo) DeleteProductByCode(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.products[code]; !exists {
		return apperr.ProductNotFoundErr
	}
	delete(f.products, code)
	return nil
}

func (f *fakeProductRepo) price(t *testing.T, code string) float64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	product, exists := f.products[code]
	require.True(t, exists, "product %s not in store", code)
	return product.Price
}

func (f *fakeProductRepo) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func newTestService(repo repository.ProductRepository) *event.Service {
	return event.New(slog.New(slog.DiscardHandler), nil, repo)
}

func productP100() model.Product {
	return model.Product{Code: "P100", Name: "Product One", Price: 10.00}
}

func TestHandlePriceChangedEventApplies(t *testing.T) {
	repo := newFakeProductRepo(productP100())
	svc := newTestService(repo)

	outcome, err := svc.HandlePriceChangedEvent(t.Context(), event.PriceChangedEvent{
		ProductCode: "P100",
		Price:       14.50,
	})

	require.NoError(t, err)
	assert.Equal(t, event.OutcomeApplied, outcome)
	assert.InDelta(t, 14.50, repo.price(t, "P100"), 0.001)
}

func TestHandlePriceChangedEventIsIdempotent(t *testing.T) {
	repo := newFakeProductRepo(productP100())
	svc := newTestService(repo)

	ev := event.PriceChangedEvent{ProductCode: "P100", Price: 14.50}

	for range 2 {
		outcome, err := svc.HandlePriceChangedEvent(t.Context(), ev)
		require.NoError(t, err)
		assert.Equal(t, event.OutcomeApplied, outcome)
	}

	// pure overwrite: applying twice must not double or increment
	assert.InDelta(t, 14.50, repo.price(t, "P100"), 0.001)
}

func TestHandlePriceChangedEventSkipsUnknownProduct(t *testing.T) {
	repo := newFakeProductRepo()
	svc := newTestService(repo)

	outcome, err := svc.HandlePriceChangedEvent(t.Context(), event.PriceChangedEvent{
		ProductCode: "GONE",
		Price:       14.50,
	})

	require.NoError(t, err)
	assert.Equal(t, event.OutcomeSkipped, outcome)
	assert.Zero(t, repo.saveCount(), "skip must not write to the store")

	products, err := repo.ListAllProducts(t.Context())
	require.NoError(t, err)
	assert.Empty(t, products, "skip must not create a record")
}

func TestHandlePriceChangedEventAppliesInOrder(t *testing.T) {
	repo := newFakeProductRepo(
		productP100(),
		model.Product{Code: "P200", Name: "Product Two", Price: 5.00},
	)
	svc := newTestService(repo)

	// events for one code apply in publish order; an interleaved event for
	// an unrelated code has no effect on it
	events := []event.PriceChangedEvent{
		{ProductCode: "P100", Price: 14.50},
		{ProductCode: "P200", Price: 99.99},
		{ProductCode: "P100", Price: 20.00},
	}
	for _, ev := range events {
		_, err := svc.HandlePriceChangedEvent(t.Context(), ev)
		require.NoError(t, err)
	}

	assert.InDelta(t, 20.00, repo.price(t, "P100"), 0.001)
	assert.InDelta(t, 99.99, repo.price(t, "P200"), 0.001)
}

func TestHandlePriceChangedEventPropagatesStoreFailure(t *testing.T) {
	repo := newFakeProductRepo(productP100())
	repo.saveErr = errors.New("connection refused")
	svc := newTestService(repo)

	_, err := svc.HandlePriceChangedEvent(t.Context(), event.PriceChangedEvent{
		ProductCode: "P100",
		Price:       14.50,
	})

	require.Error(t, err)
	assert.False(t, mq.IsPermanent(err), "store failures must stay retryable")
	assert.InDelta(t, 10.00, repo.price(t, "P100"), 0.001)
}

func TestHandlePriceChangedEventAcceptsNonPositivePrice(t *testing.T) {
	// the upstream feed performs no domain validation on the event price;
	// zero and negative prices are applied as-is
	repo := newFakeProductRepo(productP100())
	svc := newTestService(repo)

	outcome, err := svc.HandlePriceChangedEvent(t.Context(), event.PriceChangedEvent{
		ProductCode: "P100",
		Price:       -1.00,
	})

	require.NoError(t, err)
	assert.Equal(t, event.OutcomeApplied, outcome)
	assert.InDelta(t, -1.00, repo.price(t, "P100"), 0.001)
}

func TestDecodePriceChangedEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    event.PriceChangedEvent
		wantErr bool
	}{
		{
			name:    "valid",
			payload: `{"productCode":"P100","price":14.50}`,
			want:    event.PriceChangedEvent{ProductCode: "P100", Price: 14.50},
		},
		{
			name:    "non-numeric price",
			payload: `{"productCode":"P100","price":"fourteen"}`,
			wantErr: true,
		},
		{
			name:    "missing price",
			payload: `{"productCode":"P100"}`,
			wantErr: true,
		},
		{
			name:    "empty product code",
			payload: `{"productCode":"","price":14.50}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `price=14.50`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := event.DecodePriceChangedEvent([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.MalformedEventErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}
